package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidFrequency  = errors.New("invalid frequency")
	ErrInvalidDepartment = errors.New("invalid department")
	ErrInvalidAudience   = errors.New("invalid audience")
	ErrInvalidPriority   = errors.New("invalid assignment priority")
)

// Frequency determines how a template's due dates are produced per period.
type Frequency string

const (
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyOneOff  Frequency = "ONE_OFF"
)

var frequencyAliases = map[string]Frequency{
	"monthly":  FrequencyMonthly,
	"month":    FrequencyMonthly,
	"mensual":  FrequencyMonthly,
	"weekly":   FrequencyWeekly,
	"week":     FrequencyWeekly,
	"semanal":  FrequencyWeekly,
	"one_off":  FrequencyOneOff,
	"one-off":  FrequencyOneOff,
	"one off":  FrequencyOneOff,
	"once":     FrequencyOneOff,
	"unica":    FrequencyOneOff,
	"única":    FrequencyOneOff,
	"puntual":  FrequencyOneOff,
	"one time": FrequencyOneOff,
}

// ParseFrequency accepts the canonical values and common spreadsheet spellings.
func ParseFrequency(s string) (Frequency, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if f, ok := frequencyAliases[key]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
}

// Periodic reports whether the frequency produces dates in a period sweep.
func (f Frequency) Periodic() bool {
	return f == FrequencyMonthly || f == FrequencyWeekly
}

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyMonthly, FrequencyWeekly, FrequencyOneOff:
		return true
	}
	return false
}

// Department is the operational area owning templates.
type Department string

const (
	DepartmentAccounting Department = "ACCOUNTING"
	DepartmentTax        Department = "TAX"
	DepartmentPayroll    Department = "PAYROLL"
	DepartmentLegal      Department = "LEGAL"
	DepartmentAdmin      Department = "ADMIN"
)

var departmentAliases = map[string]Department{
	"accounting":     DepartmentAccounting,
	"contabilidad":   DepartmentAccounting,
	"tax":            DepartmentTax,
	"taxes":          DepartmentTax,
	"tributario":     DepartmentTax,
	"impuestos":      DepartmentTax,
	"payroll":        DepartmentPayroll,
	"remuneraciones": DepartmentPayroll,
	"rrhh":           DepartmentPayroll,
	"legal":          DepartmentLegal,
	"juridico":       DepartmentLegal,
	"jurídico":       DepartmentLegal,
	"admin":          DepartmentAdmin,
	"administration": DepartmentAdmin,
	"administracion": DepartmentAdmin,
	"administración": DepartmentAdmin,
}

// Departments lists every known department in display order.
func Departments() []Department {
	return []Department{
		DepartmentAccounting,
		DepartmentTax,
		DepartmentPayroll,
		DepartmentLegal,
		DepartmentAdmin,
	}
}

func ParseDepartment(s string) (Department, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if d, ok := departmentAliases[key]; ok {
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDepartment, s)
}

func (d Department) Valid() bool {
	_, err := ParseDepartment(string(d))
	return err == nil
}

// Audience tells whether a template's tasks are presented to the client
// or only tracked internally.
type Audience string

const (
	AudienceClient   Audience = "client-facing"
	AudienceInternal Audience = "internal"
)

var audienceAliases = map[string]Audience{
	"client-facing": AudienceClient,
	"client facing": AudienceClient,
	"client":        AudienceClient,
	"cliente":       AudienceClient,
	"external":      AudienceClient,
	"internal":      AudienceInternal,
	"interno":       AudienceInternal,
	"interna":       AudienceInternal,
}

func ParseAudience(s string) (Audience, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if a, ok := audienceAliases[key]; ok {
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAudience, s)
}

func (a Audience) Valid() bool {
	return a == AudienceClient || a == AudienceInternal
}

// AudienceFilter selects templates by audience during generation.
type AudienceFilter string

const (
	AudienceFilterClient   AudienceFilter = "client-facing"
	AudienceFilterInternal AudienceFilter = "internal"
	AudienceFilterAll      AudienceFilter = "all"
)

func ParseAudienceFilter(s string) (AudienceFilter, error) {
	if strings.EqualFold(strings.TrimSpace(s), string(AudienceFilterAll)) || strings.TrimSpace(s) == "" {
		return AudienceFilterAll, nil
	}
	a, err := ParseAudience(s)
	if err != nil {
		return "", err
	}
	return AudienceFilter(a), nil
}

// Matches reports whether a template with audience a passes the filter.
func (f AudienceFilter) Matches(a Audience) bool {
	return f == AudienceFilterAll || f == "" || Audience(f) == a
}

// AssignmentPriority decides whose owner wins when both the client and
// the template name one.
type AssignmentPriority string

const (
	PriorityClientOwner     AssignmentPriority = "clientOwner"
	PriorityTemplateDefault AssignmentPriority = "templateDefault"
)

func ParseAssignmentPriority(s string) (AssignmentPriority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "clientowner", "client_owner", "client":
		return PriorityClientOwner, nil
	case "templatedefault", "template_default", "template":
		return PriorityTemplateDefault, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}
