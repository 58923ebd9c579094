package importer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoRows is returned when an import receives no data rows.
var ErrNoRows = errors.New("import has no rows")

// maxSampleRows bounds the row numbers listed per template in a missing
// configuration report. Conflicts always list every row.
const maxSampleRows = 5

// Conflict is one new template name whose rows disagree.
type Conflict struct {
	Name   string   `json:"name"`
	Field  string   `json:"field"`
	Values []string `json:"values"`
	Rows   []int    `json:"rows"`
}

// ConflictError rejects an import in which rows propose different
// configurations for the same new template.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	parts := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		parts[i] = fmt.Sprintf("%q has conflicting %s (%s) in rows %s",
			c.Name, c.Field, strings.Join(c.Values, " vs "), joinRows(c.Rows, 0))
	}
	return "conflicting template configuration: " + strings.Join(parts, "; ")
}

// IsConflictError checks whether err is (or wraps) a ConflictError.
func IsConflictError(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// MissingConfig is one new template that cannot be created from the sheet.
type MissingConfig struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Rows   []int  `json:"rows"`
}

// MissingConfigError rejects an import that references new templates
// without a complete configuration.
type MissingConfigError struct {
	Templates []MissingConfig
}

func (e *MissingConfigError) Error() string {
	parts := make([]string, len(e.Templates))
	for i, m := range e.Templates {
		parts[i] = fmt.Sprintf("%q (%s; rows %s)", m.Name, m.Reason, joinRows(m.Rows, maxSampleRows))
	}
	return "templates need configuration in the same sheet (frequency plus day of month or weekday): " +
		strings.Join(parts, "; ")
}

// IsMissingConfigError checks whether err is (or wraps) a MissingConfigError.
func IsMissingConfigError(err error) bool {
	var me *MissingConfigError
	return errors.As(err, &me)
}

// joinRows lists row numbers, cutting the list after limit entries when
// limit is positive.
func joinRows(rows []int, limit int) string {
	shown := rows
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	s := make([]string, len(shown))
	for i, r := range shown {
		s[i] = fmt.Sprint(r)
	}
	out := strings.Join(s, ", ")
	if len(rows) > len(shown) {
		out += fmt.Sprintf(" and %d more", len(rows)-len(shown))
	}
	return out
}
