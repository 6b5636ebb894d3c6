// Package notify delivers optimized vacancies to the lead by email.
package notify

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"regexp"
	"strings"
	"time"

	"leadgate/internal/models"
	"leadgate/internal/pdf"
)

//go:embed templates/*.html
var templateFS embed.FS

var vacancyTemplate = template.Must(template.ParseFS(templateFS, "templates/optimized_vacancy.html"))

// Phase2Threshold is the usage ordinal from which the demo-focused email is sent.
const Phase2Threshold = 2

// VacancyEmail is everything needed to send one optimized vacancy.
type VacancyEmail struct {
	To           string
	ReportID     string
	UsageCount   int
	Optimization *models.OptimizationResult
}

// Sender delivers optimized vacancy emails.
type Sender interface {
	SendOptimizedVacancy(ctx context.Context, msg VacancyEmail) error
}

// NoOpSender drops every message. Used when email is disabled.
type NoOpSender struct{}

func (NoOpSender) SendOptimizedVacancy(context.Context, VacancyEmail) error {
	return nil
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends HTML email with the vacancy PDF attached.
type SMTPSender struct {
	cfg      models.EmailConfig
	renderer pdf.Renderer
	sendMail sendMailFunc
	now      func() time.Time
}

var _ Sender = (*SMTPSender)(nil)

func NewSMTPSender(cfg models.EmailConfig, renderer pdf.Renderer) *SMTPSender {
	return &SMTPSender{
		cfg:      cfg,
		renderer: renderer,
		sendMail: smtp.SendMail,
		now:      time.Now,
	}
}

// NewSender returns an SMTPSender when email is enabled, otherwise a NoOpSender.
func NewSender(cfg models.EmailConfig, renderer pdf.Renderer) Sender {
	if !cfg.Enabled {
		return NoOpSender{}
	}
	return NewSMTPSender(cfg, renderer)
}

func (s *SMTPSender) SendOptimizedVacancy(ctx context.Context, msg VacancyEmail) error {
	if msg.To == "" || msg.Optimization == nil {
		return errors.New("recipient and optimization are required")
	}

	attachment, err := s.renderer.Render(ctx, msg.Optimization)
	if err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}

	raw, err := s.buildMessage(msg, attachment)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	if err := s.sendMail(addr, auth, envelopeAddress(s.cfg.From), []string{msg.To}, raw); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

type templateData struct {
	Phase2         bool
	UsageCount     int
	JobTitle       string
	Organization   string
	ChangesSummary string
	SiteURL        string
	DemoURL        string
	ReportID       string
	Year           int
}

func (s *SMTPSender) renderBody(msg VacancyEmail) (string, error) {
	data := templateData{
		Phase2:         msg.UsageCount >= Phase2Threshold,
		UsageCount:     msg.UsageCount,
		JobTitle:       msg.Optimization.DisplayTitle(),
		Organization:   msg.Optimization.OrganizationName(),
		ChangesSummary: msg.Optimization.Changes.Summary,
		SiteURL:        s.cfg.SiteURL,
		DemoURL:        s.cfg.DemoURL,
		ReportID:       msg.ReportID,
		Year:           s.now().Year(),
	}

	var body bytes.Buffer
	if err := vacancyTemplate.Execute(&body, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return body.String(), nil
}

func (s *SMTPSender) buildMessage(msg VacancyEmail, attachment []byte) ([]byte, error) {
	body, err := s.renderBody(msg)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	title := msg.Optimization.DisplayTitle()
	headers := []string{
		"From: " + s.cfg.From,
		"To: " + msg.To,
		"Subject: " + mime.QEncoding.Encode("utf-8", "Your optimized vacancy: "+title),
		"Date: " + s.now().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q", mw.Boundary()),
	}
	var out bytes.Buffer
	out.WriteString(strings.Join(headers, "\r\n"))
	out.WriteString("\r\n\r\n")

	htmlPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {`text/html; charset="UTF-8"`},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, err
	}
	if err := writeBase64(htmlPart, []byte(body)); err != nil {
		return nil, err
	}

	if len(attachment) > 0 {
		filename := AttachmentName(title)
		pdfPart, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {fmt.Sprintf("application/pdf; name=%q", filename)},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", filename)},
			"Content-Transfer-Encoding": {"base64"},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64(pdfPart, attachment); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	out.Write(buf.Bytes())
	return out.Bytes(), nil
}

// writeBase64 writes data base64-encoded in 76-character lines.
func writeBase64(w io.Writer, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		if _, err := fmt.Fprintf(w, "%s\r\n", encoded[:76]); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err := fmt.Fprintf(w, "%s\r\n", encoded)
	return err
}

var nonFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s]`)

var whitespace = regexp.MustCompile(`\s+`)

// AttachmentName derives a safe PDF file name from a job title.
func AttachmentName(title string) string {
	name := nonFilenameChars.ReplaceAllString(title, "")
	name = whitespace.ReplaceAllString(strings.TrimSpace(name), "-")
	if name == "" {
		name = "vacancy"
	}
	return name + "-optimized.pdf"
}

// envelopeAddress extracts the bare address from "Name <addr>".
func envelopeAddress(from string) string {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return from
	}
	return addr.Address
}
