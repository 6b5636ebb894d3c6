// Package identity derives the visitor identity (email, client IP, browser
// fingerprint) from an inbound request. It performs no I/O.
package identity

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"leadgate/internal/models"
)

// UnknownIP keys the analysis limiter when no client address can be determined.
// It is never written to the usage ledger.
const UnknownIP = "unknown"

// FingerprintHeader carries the client-generated browser fingerprint.
const FingerprintHeader = "X-Fingerprint"

// Resolver extracts identity signals from requests.
type Resolver struct {
	// TrustRemoteAddr falls back to the TCP peer address when no proxy header
	// is present. Leave it off behind a load balancer, where the peer is the proxy.
	TrustRemoteAddr bool
}

func NewResolver(trustRemoteAddr bool) *Resolver {
	return &Resolver{TrustRemoteAddr: trustRemoteAddr}
}

// ClientIP returns the best-effort client address or "" when none is known.
// The left-most X-Forwarded-For entry wins, then X-Real-IP.
func (res *Resolver) ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := CanonicalIP(first); ip != "" {
			return ip
		}
	}

	if ip := CanonicalIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	if res.TrustRemoteAddr && r.RemoteAddr != "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		return CanonicalIP(host)
	}

	return ""
}

// LimiterKey is ClientIP with the UnknownIP sentinel in place of "".
func (res *Resolver) LimiterKey(r *http.Request) string {
	if ip := res.ClientIP(r); ip != "" {
		return ip
	}
	return UnknownIP
}

// Fingerprint returns the normalized fingerprint, preferring the body value
// over the header.
func (res *Resolver) Fingerprint(r *http.Request, bodyValue string) string {
	if fp := models.NormalizeFingerprint(bodyValue); fp != "" {
		return fp
	}
	return models.NormalizeFingerprint(r.Header.Get(FingerprintHeader))
}

// Resolve builds the identity for r. email is taken from the request body by
// the caller and is normalized here.
func (res *Resolver) Resolve(r *http.Request, email, bodyFingerprint string) models.Identity {
	return models.Identity{
		Email:       models.NormalizeEmail(email),
		IPAddress:   res.ClientIP(r),
		Fingerprint: res.Fingerprint(r, bodyFingerprint),
	}
}

// CanonicalIP returns the form client addresses are stored in: IPv4-mapped
// IPv6 is unmapped and IPv6 is compressed and lowercased. It returns "" if s
// is not an IP address.
func CanonicalIP(s string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return ""
	}
	return addr.Unmap().String()
}
