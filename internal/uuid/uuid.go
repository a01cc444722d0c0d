// Package uuid generates and validates the string identifiers used as primary keys.
package uuid

import (
	"fmt"

	googleuuid "github.com/google/uuid"
)

// New returns a time-ordered UUIDv7 string. Row IDs created later sort later.
func New() string {
	if id, err := googleuuid.NewV7(); err == nil {
		return id.String()
	}
	return googleuuid.NewString()
}

// Parse returns the canonical lowercase form of s.
func Parse(s string) (string, error) {
	id, err := googleuuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id.String(), nil
}

// IsValid reports whether s parses as a UUID in any accepted encoding.
func IsValid(s string) bool {
	return googleuuid.Validate(s) == nil
}

// Unique canonicalizes ids and drops duplicates, keeping first-seen order.
// Entries that do not parse are kept as-is so callers can report them.
func Unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		id, err := Parse(raw)
		if err != nil {
			id = raw
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
