package store

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

const (
	defaultNameLimit = 20
	maxNameTokens    = 4
	minTokenLength   = 3
)

// nameTokens returns the distinct significant tokens of a normalized name,
// longest first.
func nameTokens(name string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range strings.Fields(name) {
		if len([]rune(tok)) < minTokenLength || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	slices.SortStableFunc(out, func(a, b string) int { return len(b) - len(a) })
	if len(out) > maxNameTokens {
		out = out[:maxNameTokens]
	}
	return out
}

func assignID(id *string, created *time.Time) {
	if *id == "" {
		*id = uuid.New().String()
	}
	if created.IsZero() {
		*created = time.Now().UTC()
	}
}

// wrapWrite wraps a write error, tagging uniqueness violations with ErrConflict.
func wrapWrite(err error, msg string) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return eris.Wrapf(ErrConflict, "%s: %v", msg, err)
	}
	return eris.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
