// Package models - Usage ledger rows and visitor identity.
package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxFingerprintLength caps the stored browser fingerprint token.
const MaxFingerprintLength = 256

// Lead is one row in the usage ledger: a single successful optimization
// request and the identity signals it arrived with. Leads are never mutated.
type Lead struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	ReportID    string    `json:"report_id"`
	IPAddress   string    `json:"ip_address,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Identity is the (email, IP, fingerprint) triple recognized per request.
// Any component may be empty.
type Identity struct {
	Email       string `json:"email,omitempty"`
	IPAddress   string `json:"ip_address,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// IsEmpty reports whether no identity signal is available at all.
func (i Identity) IsEmpty() bool {
	return i.Email == "" && i.IPAddress == "" && i.Fingerprint == ""
}

// HasDeviceSignal reports whether an IP or fingerprint is present.
func (i Identity) HasDeviceSignal() bool {
	return i.IPAddress != "" || i.Fingerprint != ""
}

// Labels describes the non-empty identifiers for audit output.
func (i Identity) Labels() []string {
	labels := make([]string, 0, 3)
	if i.Email != "" {
		labels = append(labels, "email: "+i.Email)
	}
	if i.IPAddress != "" {
		labels = append(labels, "IP: "+i.IPAddress)
	}
	if i.Fingerprint != "" {
		labels = append(labels, "fingerprint: "+i.Fingerprint)
	}
	return labels
}

// Describe joins Labels for display, or reports that there are none.
func (i Identity) Describe() string {
	labels := i.Labels()
	if len(labels) == 0 {
		return "No identifiers found"
	}
	return strings.Join(labels, ", ")
}

// NormalizeEmail trims and lowercases an email address so that
// capitalization cannot be used to obtain extra free uses.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeFingerprint trims the token, replaces invalid UTF-8 and caps it at
// MaxFingerprintLength bytes without splitting a character.
func NormalizeFingerprint(fp string) string {
	fp = strings.TrimSpace(strings.ToValidUTF8(fp, "\uFFFD"))
	if len(fp) <= MaxFingerprintLength {
		return fp
	}
	cut := MaxFingerprintLength
	for cut > 0 && !utf8.RuneStart(fp[cut]) {
		cut--
	}
	return fp[:cut]
}

// MaskEmail hides the local part of an address for logs: "a***@x.com".
func MaskEmail(email string) string {
	email = strings.ToValidUTF8(email, "\uFFFD")
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	_, size := utf8.DecodeRuneInString(email)
	return email[:size] + "***" + email[at:]
}
