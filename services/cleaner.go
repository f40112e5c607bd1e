package services

import (
	"strings"
	"unicode"

	"places-reviews/utils"
)

// Cleaner normalises free-text queries before they are sent to the lookup.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// CleanQueries trims and collapses whitespace in every query and drops blank
// ones. Order is preserved; duplicates are kept since each one is a separate
// lookup.
func (c *Cleaner) CleanQueries(raw []string) []string {
	result := make([]string, 0, len(raw))

	for i, q := range raw {
		q = normaliseText(q)
		if q == "" {
			c.logger.Warn("[cleaner] Dropping blank query at input position %d", i)
			continue
		}
		result = append(result, q)
	}

	c.logger.Info("[cleaner] Cleaned %d → %d queries (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}

// nameMatches reports whether name is a case-insensitive substring of query.
func nameMatches(name, query string) bool {
	return strings.Contains(strings.ToLower(query), strings.ToLower(name))
}
