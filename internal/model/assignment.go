package model

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of an assigned task.
type Status string

const (
	StatusPending       Status = "PENDING"
	StatusInProgress    Status = "IN_PROGRESS"
	StatusCompleted     Status = "COMPLETED"
	StatusNotApplicable Status = "NOT_APPLICABLE"

	// StatusOverdue is never stored; EffectiveStatus derives it at read time.
	StatusOverdue Status = "OVERDUE"
)

// ActiveStatuses are the stored states an exclusion can move to NOT_APPLICABLE.
var ActiveStatuses = []Status{StatusPending, StatusInProgress}

// Stored reports whether s may be persisted.
func (s Status) Stored() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusNotApplicable:
		return true
	}
	return false
}

// Origin records which path created an assigned task.
type Origin string

const (
	OriginGenerator Origin = "generator"
	OriginImport    Origin = "import"
	OriginManual    Origin = "manual"
)

// AssignedTask is a concrete, dated instance of a template for one client.
// At most one exists per (TemplateID, ClientTaxID, DueDate).
type AssignedTask struct {
	ID          string     `json:"id" db:"id"`
	TemplateID  int64      `json:"template_id" db:"template_id" validate:"required"`
	ClientTaxID string     `json:"client_tax_id" db:"client_tax_id" validate:"required"`
	OwnerID     *string    `json:"owner_id,omitempty" db:"owner_id"`
	DueDate     time.Time  `json:"due_date" db:"due_date"`
	Status      Status     `json:"status" db:"status" validate:"required,status"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	Note        string     `json:"note" db:"note"`
	FolderRef   *string    `json:"folder_ref,omitempty" db:"folder_ref"`
	Origin      Origin     `json:"origin" db:"origin"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// AssignmentKey is the duplicate-suppression key.
type AssignmentKey struct {
	TemplateID  int64
	ClientTaxID string
	DueDate     string
}

func (k AssignmentKey) String() string {
	return fmt.Sprintf("%d/%s/%s", k.TemplateID, k.ClientTaxID, k.DueDate)
}

func (a AssignedTask) Key() AssignmentKey {
	return AssignmentKey{
		TemplateID:  a.TemplateID,
		ClientTaxID: a.ClientTaxID,
		DueDate:     FormatDate(a.DueDate),
	}
}

func (a AssignedTask) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("assigned task %s: %w", a.Key(), err)
	}
	if a.DueDate.IsZero() {
		return fmt.Errorf("assigned task %s: due date is required", a.Key())
	}
	return nil
}

// EffectiveStatus classifies the task at now. Tasks past their due date
// that are neither completed nor inapplicable read as OVERDUE.
func (a AssignedTask) EffectiveStatus(now time.Time) Status {
	switch a.Status {
	case StatusCompleted, StatusNotApplicable:
		return a.Status
	}
	if DateOnly(now).After(DateOnly(a.DueDate)) {
		return StatusOverdue
	}
	return a.Status
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusCompleted || next == StatusNotApplicable
	case StatusInProgress:
		return next == StatusCompleted || next == StatusPending || next == StatusNotApplicable
	case StatusNotApplicable:
		return next == StatusPending
	case StatusCompleted:
		return next == StatusInProgress
	}
	return false
}
