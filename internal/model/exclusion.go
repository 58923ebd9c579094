package model

import "time"

// ClientExclusion overrides whether a template applies to a client.
//
// Excluded = true means the template does NOT apply to the client from
// EffectiveFrom onward (or always, when EffectiveFrom is nil). A missing
// record, or Excluded = false, means the template applies. Every read path
// uses this polarity.
type ClientExclusion struct {
	ID            string     `json:"id" db:"id"`
	ClientTaxID   string     `json:"client_tax_id" db:"client_tax_id"`
	TemplateID    int64      `json:"template_id" db:"template_id"`
	Excluded      bool       `json:"excluded" db:"is_excluded"`
	EffectiveFrom *time.Time `json:"effective_from,omitempty" db:"effective_from"`
	Reason        string     `json:"reason" db:"reason"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// ExcludesOn reports whether the record suppresses the template on day.
func (e ClientExclusion) ExcludesOn(day time.Time) bool {
	if !e.Excluded {
		return false
	}
	if e.EffectiveFrom == nil {
		return true
	}
	return !DateOnly(*e.EffectiveFrom).After(DateOnly(day))
}
