// Package importer reconciles loosely structured spreadsheet rows into
// clients, templates and assigned tasks.
//
// ImportRows runs in passes. Every row is normalized and every reference
// resolved before anything is written, so a conflict discovered late in
// the sheet still rejects the whole batch.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nhle/obligations/internal/logging"
	"github.com/nhle/obligations/internal/model"
	"github.com/nhle/obligations/internal/store"
)

// Store is the persistence the importer needs.
type Store interface {
	GetClient(ctx context.Context, taxID string) (*model.Client, error)
	CreateClient(ctx context.Context, c model.Client) error
	SetClientOwner(ctx context.Context, taxID string, ownerID *string) error
	GetAgent(ctx context.Context, id string) (*model.Agent, error)
	GetAgentByEmail(ctx context.Context, email string) (*model.Agent, error)
	GetTemplate(ctx context.Context, id int64) (*model.TaskTemplate, error)
	GetTemplateByKey(ctx context.Context, nameKey string) (*model.TaskTemplate, error)
	CreateTemplate(ctx context.Context, t *model.TaskTemplate) error
	store.AssignmentInserter
	RecordImportRun(ctx context.Context, run store.ImportRun) error
}

// Defaults fill in what rows leave out and control how the batch is
// applied.
type Defaults struct {
	// DueDate is used by rows without a due date cell.
	DueDate *time.Time

	// Department and Audience apply to new templates whose rows do not
	// name one. Audience defaults to client-facing.
	Department model.Department
	Audience   model.Audience

	// Portfolio is given to clients created by the import.
	Portfolio string

	// ForceOverrideOwner replaces an existing client's owner with the
	// owner asserted by its rows.
	ForceOverrideOwner bool

	// DryRun reports what would happen without writing anything.
	DryRun bool

	// ChunkSize bounds each task insert batch.
	ChunkSize int

	// Workers bounds concurrent lookups.
	Workers int
}

// ClientStatus describes how a row's client was resolved.
type ClientStatus string

const (
	ClientExisting ClientStatus = "existing"
	ClientCreated  ClientStatus = "created"

	// ClientNotCreated marks a new client that a rejected import did not
	// write.
	ClientNotCreated ClientStatus = "not_created"
)

// OwnerSource names where a row's task owner came from.
type OwnerSource string

const (
	OwnerFromRow    OwnerSource = "row"
	OwnerFromClient OwnerSource = "client"
	OwnerNone       OwnerSource = "none"
)

// RowResult is the audit record of one input row.
type RowResult struct {
	Line  int    `json:"line"`
	Valid bool   `json:"valid"`
	TaxID string `json:"tax_id,omitempty"`

	ClientStatus ClientStatus `json:"client_status,omitempty"`
	OwnerSource  OwnerSource  `json:"owner_source,omitempty"`

	TemplatesRequested int      `json:"templates_requested"`
	TemplatesResolved  int      `json:"templates_resolved"`
	TemplateIDs        []int64  `json:"template_ids,omitempty"`
	NewTemplates       []string `json:"new_templates,omitempty"`

	DueDate string `json:"due_date,omitempty"`
	Staged  int    `json:"staged"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`

	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// Result summarizes an import.
type Result struct {
	OK     bool   `json:"ok"`
	DryRun bool   `json:"dry_run"`
	RunID  string `json:"run_id"`

	RowsTotal   int `json:"rows_total"`
	RowsInvalid int `json:"rows_invalid"`

	Staged  int `json:"staged"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`

	ClientsCreated   []string             `json:"clients_created,omitempty"`
	TemplatesCreated []model.TaskTemplate `json:"templates_created,omitempty"`
	OwnersUpdated    []string             `json:"owners_updated,omitempty"`

	Rows   []RowResult `json:"rows"`
	Errors []string    `json:"errors,omitempty"`

	// Conflicts and MissingConfig explain a rejected import.
	Conflicts     []Conflict      `json:"conflicts,omitempty"`
	MissingConfig []MissingConfig `json:"missing_config,omitempty"`

	CreatedTasks []model.AssignedTask `json:"-"`
}

// Importer runs spreadsheet imports.
type Importer struct {
	store Store
	now   func() time.Time
}

func New(s Store) *Importer {
	return &Importer{store: s, now: time.Now}
}

// ImportRows reconciles rows into the store.
//
// Row-level problems (missing fields, unknown ids or owners) are reported
// in the row's result and never abort the batch. Contradictory or missing
// configuration for a new template rejects the whole import: no client,
// template or task is written and the returned error is a *ConflictError, a
// *MissingConfigError, or both joined. The Result is populated in that case
// too so the caller can see every row.
func (im *Importer) ImportRows(ctx context.Context, rows []Row, d Defaults) (Result, error) {
	if len(rows) == 0 {
		return Result{}, ErrNoRows
	}
	if d.Audience == "" {
		d.Audience = model.AudienceClient
	}
	if d.Workers < 1 {
		d.Workers = 4
	}

	started := im.now().UTC()
	res := Result{RunID: uuid.NewString(), DryRun: d.DryRun, RowsTotal: len(rows)}
	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"run":     res.RunID,
		"rows":    len(rows),
		"dry_run": d.DryRun,
	})

	b := newBatch(rows, d)
	b.normalizeRows()
	if err := b.resolveClients(ctx, im.store); err != nil {
		return Result{}, err
	}
	if err := b.resolveTemplateIDs(ctx, im.store); err != nil {
		return Result{}, err
	}
	if err := b.resolveTemplateNames(ctx, im.store); err != nil {
		return Result{}, err
	}

	if batchErr := b.rejected; batchErr != nil {
		res.Rows = b.rowResults()
		for i := range res.Rows {
			if res.Rows[i].ClientStatus == ClientCreated {
				res.Rows[i].ClientStatus = ClientNotCreated
			}
		}
		res.RowsInvalid = b.invalidCount()
		res.Errors = []string{batchErr.Error()}
		res.Conflicts = b.conflicts
		res.MissingConfig = b.missing
		log.WithError(batchErr).Warn("import rejected")
		im.record(ctx, log, res, started)
		return res, batchErr
	}

	b.stageAssignments()
	res.Staged = len(b.staged)

	if !d.DryRun {
		if err := b.persist(ctx, im.store, log); err != nil {
			return Result{}, err
		}
	}

	res.OK = true
	res.Rows = b.rowResults()
	res.RowsInvalid = b.invalidCount()
	res.ClientsCreated = b.clientsCreated
	res.TemplatesCreated = b.templatesCreated
	res.OwnersUpdated = b.ownersUpdated
	res.CreatedTasks = b.inserted
	for _, r := range res.Rows {
		res.Created += r.Created
		res.Skipped += r.Skipped
		res.Failed += r.Failed
	}

	log.WithFields(logrus.Fields{
		"invalid":           res.RowsInvalid,
		"staged":            res.Staged,
		"created":           res.Created,
		"skipped":           res.Skipped,
		"failed":            res.Failed,
		"clients_created":   len(res.ClientsCreated),
		"templates_created": len(res.TemplatesCreated),
	}).Info("import finished")

	if !d.DryRun {
		im.record(ctx, log, res, started)
	}
	return res, nil
}

// record stores the audit trail. A failure here is logged only; the
// import itself already succeeded or failed on its own terms.
func (im *Importer) record(ctx context.Context, log *logrus.Entry, res Result, started time.Time) {
	if res.DryRun {
		return
	}
	summary, err := encodeSummary(res)
	if err != nil {
		log.WithError(err).Warn("encoding import summary")
		summary = "{}"
	}
	run := store.ImportRun{
		ID:           res.RunID,
		StartedAt:    started,
		FinishedAt:   im.now().UTC(),
		RowsTotal:    res.RowsTotal,
		RowsInvalid:  res.RowsInvalid,
		TasksCreated: res.Created,
		TasksSkipped: res.Skipped,
		OK:           res.OK,
		Summary:      summary,
	}
	if err := im.store.RecordImportRun(ctx, run); err != nil {
		log.WithError(err).Warn("recording import run")
	}
}

// batchError combines the batch-level rejections, or returns nil.
func batchError(conflicts []Conflict, missing []MissingConfig) error {
	var errs []error
	if len(conflicts) > 0 {
		errs = append(errs, &ConflictError{Conflicts: conflicts})
	}
	if len(missing) > 0 {
		errs = append(errs, &MissingConfigError{Templates: missing})
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

func notFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func rowf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
