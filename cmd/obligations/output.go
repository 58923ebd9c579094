package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nhle/obligations/internal/model"
	"github.com/nhle/obligations/internal/normalize"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return withCode(exitDB, fmt.Errorf("json encode: %w", err))
	}
	return nil
}

// table writes tab separated rows as aligned columns.
func table(w io.Writer, header string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func parseDateFlag(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	d, err := normalize.Date(v)
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("invalid --%s: %w", name, err))
	}
	return &d, nil
}

// parsePeriod reads "2025-03" into a year and month.
func parsePeriod(v string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(v))
	if err != nil {
		return 0, 0, withCode(exitUsage, fmt.Errorf("invalid --period %q, want YYYY-MM", v))
	}
	return t.Year(), t.Month(), nil
}

func parseDepartmentFlag(v string) (model.Department, error) {
	d, err := model.ParseDepartment(v)
	if err != nil {
		return "", withCode(exitUsage, fmt.Errorf("invalid --department: %w", err))
	}
	return d, nil
}
