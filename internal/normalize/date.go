package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// spreadsheetEpoch is day zero of the 1900 date system as used by
// Excel and Google Sheets (the 1900 leap-year bug is absorbed by
// starting on Dec 30).
var spreadsheetEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02-01-2006",
	"02/01/2006",
	"2/1/2006",
	"2006/01/02",
}

// Date parses an ISO date, a day-first local date or a spreadsheet serial
// number and returns it as a UTC calendar date.
func Date(raw string) (time.Time, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		return SerialDate(serial)
	}
	return time.Time{}, fmt.Errorf("invalid date: %q", raw)
}

// SerialDate converts a spreadsheet serial day number to a calendar date.
// The fractional time-of-day part is discarded.
func SerialDate(serial float64) (time.Time, error) {
	// 1 = 1900-01-01, 2958465 = 9999-12-31.
	if serial < 1 || serial > 2958465 {
		return time.Time{}, fmt.Errorf("serial date out of range: %v", serial)
	}
	return spreadsheetEpoch.AddDate(0, 0, int(math.Floor(serial))), nil
}
