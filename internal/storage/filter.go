package storage

import (
	"fmt"
	"strings"

	"leadgate/internal/models"
)

// placeholderFunc renders the nth (1-based) bind parameter for a SQL dialect.
type placeholderFunc func(n int) string

func postgresPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

func sqlitePlaceholder(int) string { return "?" }

// identityFilter builds an OR-joined WHERE clause over the non-empty fields of
// id. It returns an empty clause when no field is set; callers must treat that
// as "match nothing", never as "match everything".
func identityFilter(id models.Identity, ph placeholderFunc) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if id.Email != "" {
		args = append(args, id.Email)
		conds = append(conds, "lower(email) = lower("+ph(len(args))+")")
	}
	if id.IPAddress != "" {
		args = append(args, id.IPAddress)
		conds = append(conds, "ip_address = "+ph(len(args)))
	}
	if id.Fingerprint != "" {
		args = append(args, id.Fingerprint)
		conds = append(conds, "fingerprint = "+ph(len(args)))
	}
	return strings.Join(conds, " OR "), args
}

// nullIfEmpty maps "" to SQL NULL so absent signals never match each other.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
