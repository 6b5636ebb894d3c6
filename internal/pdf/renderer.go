// Package pdf renders optimized vacancies as printable documents.
package pdf

import (
	"context"
	"errors"
	"strings"

	"leadgate/internal/models"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// Renderer turns an optimization result into a PDF document.
type Renderer interface {
	Render(ctx context.Context, opt *models.OptimizationResult) ([]byte, error)
}

// NoOpRenderer produces no document. Used when attachments are disabled.
type NoOpRenderer struct{}

func (NoOpRenderer) Render(context.Context, *models.OptimizationResult) ([]byte, error) {
	return nil, nil
}

var accent = &props.Color{Red: 37, Green: 99, Blue: 235}

var muted = &props.Color{Red: 100, Green: 116, Blue: 139}

// MarotoRenderer lays out the vacancy as a single-column A4 document.
type MarotoRenderer struct {
	// Footer is printed at the end of the document, e.g. a site URL.
	Footer string
}

var _ Renderer = (*MarotoRenderer)(nil)

func NewMarotoRenderer(footer string) *MarotoRenderer {
	return &MarotoRenderer{Footer: footer}
}

func (r *MarotoRenderer) Render(ctx context.Context, opt *models.OptimizationResult) ([]byte, error) {
	if opt == nil {
		return nil, errors.New("optimization result is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithLeftMargin(20).
		WithRightMargin(20).
		WithTopMargin(20).
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddAutoRow(text.NewCol(12, opt.DisplayTitle(), props.Text{
		Size:  20,
		Style: fontstyle.Bold,
		Align: align.Left,
		Color: accent,
	}))

	if subtitle := subtitleLine(opt); subtitle != "" {
		m.AddAutoRow(text.NewCol(12, subtitle, props.Text{
			Size:  11,
			Top:   2,
			Color: muted,
		}))
	}

	if opt.Content.Hook != "" {
		m.AddAutoRow(text.NewCol(12, opt.Content.Hook, props.Text{
			Size:  12,
			Style: fontstyle.Italic,
			Top:   6,
		}))
	}

	for _, section := range opt.Content.Sections {
		addSection(m, section)
	}

	if opt.Content.DiversityStatement != "" {
		m.AddAutoRow(text.NewCol(12, opt.Content.DiversityStatement, props.Text{
			Size:  9,
			Style: fontstyle.Italic,
			Top:   6,
			Color: muted,
		}))
	}

	if opt.Content.CallToAction != "" {
		m.AddAutoRow(text.NewCol(12, opt.Content.CallToAction, props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Top:   8,
			Color: accent,
		}))
	}

	// Models sometimes return only the markdown body.
	if len(opt.Content.Sections) == 0 && opt.FullTextPlain != "" {
		m.AddAutoRow(text.NewCol(12, opt.FullTextPlain, props.Text{Size: 10, Top: 6}))
	}

	if r.Footer != "" {
		m.AddAutoRow(text.NewCol(12, r.Footer, props.Text{
			Size:  8,
			Top:   12,
			Align: align.Center,
			Color: muted,
		}))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func addSection(m core.Maroto, section models.ContentSection) {
	if section.Header != "" {
		m.AddAutoRow(text.NewCol(12, section.Header, props.Text{
			Size:  13,
			Style: fontstyle.Bold,
			Top:   8,
		}))
	}
	if section.Content != "" {
		m.AddAutoRow(text.NewCol(12, section.Content, props.Text{Size: 10, Top: 2}))
	}
	for _, bullet := range section.Bullets {
		m.AddAutoRow(text.NewCol(12, "• "+bullet, props.Text{Size: 10, Top: 1, Left: 4}))
	}
}

func subtitleLine(opt *models.OptimizationResult) string {
	parts := make([]string, 0, 2)
	if org := opt.OrganizationName(); org != "" {
		parts = append(parts, org)
	}
	if opt.Metadata.Location != nil && *opt.Metadata.Location != "" {
		parts = append(parts, *opt.Metadata.Location)
	}
	return strings.Join(parts, " · ")
}
