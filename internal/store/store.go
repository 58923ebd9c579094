package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/obligations/internal/model"
)

var (
	// ErrNotFound is returned when a lookup by key matches nothing.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a write violates a natural key.
	ErrDuplicate = errors.New("duplicate")
)

// TemplateFilter controls which task templates ListTemplates returns.
type TemplateFilter struct {
	Department *model.Department
	Frequency  *model.Frequency
	Audience   model.AudienceFilter // "" or "all" matches every audience
	ActiveOnly bool
	IDs        []int64
	NameKeys   []string
}

// ClientFilter controls which clients ListClients returns.
type ClientFilter struct {
	Portfolio  *string
	OwnerID    *string
	TaxIDs     []string
	Query      *string // matched against name and tax id
	ActiveOnly bool
	Limit      int
	Offset     int
}

// ExclusionFilter selects exclusion records. Empty slices do not constrain.
type ExclusionFilter struct {
	ClientTaxIDs []string
	TemplateIDs  []int64
	ExcludedOnly bool
}

// AssignmentFilter controls filtering, sorting, and pagination for
// assigned task queries.
type AssignmentFilter struct {
	Department  *model.Department
	ClientTaxID *string
	TemplateID  *int64
	OwnerID     *string
	Statuses    []model.Status
	DueFrom     *time.Time // inclusive
	DueTo       *time.Time // inclusive

	// OverdueAsOf keeps tasks due before this date that are still
	// PENDING or IN_PROGRESS.
	OverdueAsOf *time.Time

	SortBy   string // "due_date", "created_at", "updated_at", "status", "client_tax_id"
	SortDesc bool
	Limit    int
	Offset   int
}

// TransitionRequest moves every matching task of a (client, template)
// pair between lifecycle states.
type TransitionRequest struct {
	ClientTaxID string
	TemplateID  int64
	From        []model.Status
	To          model.Status

	// DueOnOrAfter limits the transition to tasks due on or after the date.
	DueOnOrAfter *time.Time
}

// RowFailure is a task that could not be written for a reason other than
// the (template, client, due date) uniqueness constraint.
type RowFailure struct {
	Task model.AssignedTask
	Err  error
}

// InsertResult reports the outcome of an idempotent batch insert.
type InsertResult struct {
	// Inserted holds the tasks that were written, with IDs assigned.
	Inserted []model.AssignedTask

	// Duplicates holds tasks skipped because a task with the same
	// (template, client, due date) already existed, either in storage or
	// earlier in the same batch.
	Duplicates []model.AssignedTask

	// Failed holds tasks rejected for any other reason. A failed row never
	// prevents the rest of the batch from being written.
	Failed []RowFailure
}

// Merge appends other's outcome to r.
func (r *InsertResult) Merge(other InsertResult) {
	r.Inserted = append(r.Inserted, other.Inserted...)
	r.Duplicates = append(r.Duplicates, other.Duplicates...)
	r.Failed = append(r.Failed, other.Failed...)
}

// ImportRun is the persisted audit record of one spreadsheet import.
type ImportRun struct {
	ID           string    `json:"id" db:"id"`
	StartedAt    time.Time `json:"started_at" db:"started_at"`
	FinishedAt   time.Time `json:"finished_at" db:"finished_at"`
	RowsTotal    int       `json:"rows_total" db:"rows_total"`
	RowsInvalid  int       `json:"rows_invalid" db:"rows_invalid"`
	TasksCreated int       `json:"tasks_created" db:"tasks_created"`
	TasksSkipped int       `json:"tasks_skipped" db:"tasks_skipped"`
	OK           bool      `json:"ok" db:"ok"`

	// Summary is the JSON encoded per-row report.
	Summary string `json:"summary" db:"summary"`
}

// TemplateStore is the task template catalog.
type TemplateStore interface {
	CreateTemplate(ctx context.Context, t *model.TaskTemplate) error
	GetTemplate(ctx context.Context, id int64) (*model.TaskTemplate, error)
	GetTemplateByKey(ctx context.Context, nameKey string) (*model.TaskTemplate, error)
	ListTemplates(ctx context.Context, filter TemplateFilter) ([]model.TaskTemplate, error)
	DeactivateTemplate(ctx context.Context, id int64) error
}

// ClientStore is the client roster.
type ClientStore interface {
	CreateClient(ctx context.Context, c model.Client) error
	GetClient(ctx context.Context, taxID string) (*model.Client, error)
	ListClients(ctx context.Context, filter ClientFilter) ([]model.Client, error)
	SetClientOwner(ctx context.Context, taxID string, ownerID *string) error
	DeactivateClient(ctx context.Context, taxID string) error
}

// AgentStore is the owner/agent directory.
type AgentStore interface {
	CreateAgent(ctx context.Context, a model.Agent) error
	GetAgent(ctx context.Context, id string) (*model.Agent, error)
	GetAgentByEmail(ctx context.Context, email string) (*model.Agent, error)
}

// ExclusionStore holds per-client template overrides.
type ExclusionStore interface {
	GetExclusion(ctx context.Context, clientTaxID string, templateID int64) (*model.ClientExclusion, error)
	ListExclusions(ctx context.Context, filter ExclusionFilter) ([]model.ClientExclusion, error)
	UpsertExclusion(ctx context.Context, e model.ClientExclusion) (*model.ClientExclusion, error)
}

// AssignmentInserter is the duplicate-skipping batch write shared by every
// generation path.
type AssignmentInserter interface {
	// InsertAssignments writes tasks in one batch. Tasks whose
	// (template, client, due date) already exists are skipped and reported
	// as duplicates rather than failing, so re-running a generation path
	// creates nothing new.
	InsertAssignments(ctx context.Context, tasks []model.AssignedTask) (InsertResult, error)
}

// AssignmentStore holds assigned tasks.
type AssignmentStore interface {
	AssignmentInserter

	GetAssignment(ctx context.Context, id string) (*model.AssignedTask, error)
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]model.AssignedTask, error)
	CountAssignments(ctx context.Context, filter AssignmentFilter) (int, error)
	UpdateAssignmentStatus(ctx context.Context, id string, status model.Status, completedAt *time.Time) error
	TransitionAssignments(ctx context.Context, req TransitionRequest) (int, error)
	SetAssignmentFolder(ctx context.Context, id string, folderRef string) error
}

// ImportRunStore records import audits.
type ImportRunStore interface {
	RecordImportRun(ctx context.Context, run ImportRun) error
	GetImportRun(ctx context.Context, id string) (*ImportRun, error)
}

// Store defines the full persistence interface.
type Store interface {
	TemplateStore
	ClientStore
	AgentStore
	ExclusionStore
	AssignmentStore
	ImportRunStore
	Close() error
}

// InsertInChunks splits tasks into batches of at most size and inserts
// each through InsertAssignments, merging the outcomes.
func InsertInChunks(ctx context.Context, s AssignmentInserter, tasks []model.AssignedTask, size int) (InsertResult, error) {
	var total InsertResult
	if size < 1 {
		size = len(tasks)
	}
	for start := 0; start < len(tasks); start += size {
		end := min(start+size, len(tasks))
		res, err := s.InsertAssignments(ctx, tasks[start:end])
		if err != nil {
			return total, err
		}
		total.Merge(res)
	}
	return total, nil
}
