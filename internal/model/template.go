package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidAnchor = errors.New("invalid anchor")
)

// TaskTemplate is a recurring obligation definition.
type TaskTemplate struct {
	ID         int64      `json:"id" db:"id"`
	Department Department `json:"department" db:"department" validate:"required,department"`
	Name       string     `json:"name" db:"name" validate:"required,max=200"`

	// NameKey is the normalized name used as the natural uniqueness key.
	NameKey string `json:"name_key" db:"name_key" validate:"required"`

	Frequency Frequency `json:"frequency" db:"frequency" validate:"required,frequency"`

	// DayOfMonth is the anchor for MONTHLY templates (1-31).
	DayOfMonth *int `json:"day_of_month,omitempty" db:"day_of_month"`

	// Weekday is the anchor for WEEKLY templates, ISO numbering
	// (1 = Monday ... 7 = Sunday).
	Weekday *int `json:"weekday,omitempty" db:"weekday"`

	Audience       Audience  `json:"audience" db:"audience" validate:"required,audience"`
	DefaultOwnerID *string   `json:"default_owner_id,omitempty" db:"default_owner_id"`
	RequiresFolder bool      `json:"requires_folder" db:"requires_folder"`
	DocumentCode   string    `json:"document_code" db:"document_code"`
	Detail         string    `json:"detail" db:"detail"`
	Active         bool      `json:"active" db:"active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// ValidDayOfMonth reports whether d is a usable MONTHLY anchor.
func ValidDayOfMonth(d int) bool { return d >= 1 && d <= 31 }

// ValidWeekday reports whether d is a usable WEEKLY anchor.
func ValidWeekday(d int) bool { return d >= 1 && d <= 7 }

// CheckAnchor enforces the frequency/anchor invariant.
func CheckAnchor(f Frequency, dayOfMonth, weekday *int) error {
	switch f {
	case FrequencyMonthly:
		if dayOfMonth == nil || !ValidDayOfMonth(*dayOfMonth) {
			return fmt.Errorf("%w: MONTHLY requires a day of month between 1 and 31", ErrInvalidAnchor)
		}
	case FrequencyWeekly:
		if weekday == nil || !ValidWeekday(*weekday) {
			return fmt.Errorf("%w: WEEKLY requires a weekday between 1 and 7", ErrInvalidAnchor)
		}
	case FrequencyOneOff:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFrequency, f)
	}
	return nil
}

// Validate checks field constraints and the anchor invariant.
func (t TaskTemplate) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("template %q: %w", t.Name, err)
	}
	if err := CheckAnchor(t.Frequency, t.DayOfMonth, t.Weekday); err != nil {
		return fmt.Errorf("template %q: %w", t.Name, err)
	}
	return nil
}

// Anchor returns the anchor value relevant to the template's frequency,
// or 0 when the frequency carries none.
func (t TaskTemplate) Anchor() int {
	switch t.Frequency {
	case FrequencyMonthly:
		if t.DayOfMonth != nil {
			return *t.DayOfMonth
		}
	case FrequencyWeekly:
		if t.Weekday != nil {
			return *t.Weekday
		}
	}
	return 0
}
