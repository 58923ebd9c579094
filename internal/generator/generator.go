// Package generator turns the template catalog into dated assigned tasks
// for every serviced client in a period.
package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/obligations/internal/exclusion"
	"github.com/nhle/obligations/internal/logging"
	"github.com/nhle/obligations/internal/model"
	"github.com/nhle/obligations/internal/schedule"
	"github.com/nhle/obligations/internal/store"
)

// Store is the persistence the generator needs.
type Store interface {
	ListTemplates(ctx context.Context, filter store.TemplateFilter) ([]model.TaskTemplate, error)
	ListClients(ctx context.Context, filter store.ClientFilter) ([]model.Client, error)
	store.AssignmentInserter
}

// Exclusions preloads the exclusion records for a run.
type Exclusions interface {
	Preload(ctx context.Context, clientTaxIDs []string, templateIDs []int64) (*exclusion.Index, error)
}

// Options tune a generation run. The zero value is usable.
type Options struct {
	AssignmentPriority model.AssignmentPriority
	Audience           model.AudienceFilter

	// Portfolio restricts the run to clients with this portfolio code.
	// Nil runs over every active client; clients carry no department.
	Portfolio *string

	// Workers bounds concurrent per-client staging. Values below 1 mean 1.
	Workers int

	// ChunkSize bounds each insert batch. Values below 1 insert everything
	// in one batch.
	ChunkSize int
}

// Request names the department and period to generate.
type Request struct {
	Department model.Department
	Year       int
	Month      time.Month
	Options    Options
}

// RunStatus explains the outcome of a run.
type RunStatus string

const (
	StatusGenerated   RunStatus = "generated"
	StatusNoTemplates RunStatus = "no_templates"
	StatusNoClients   RunStatus = "no_clients"
	StatusNothingDue  RunStatus = "nothing_due"
)

// Result summarizes a generation run.
type Result struct {
	Status  RunStatus `json:"status"`
	Message string    `json:"message"`

	Templates int `json:"templates"`
	Clients   int `json:"clients"`

	// Staged counts tuples handed to storage. Excluded counts candidate
	// dates suppressed by an exclusion.
	Staged         int `json:"staged"`
	Excluded       int `json:"excluded"`
	Created        int `json:"created"`
	AlreadyExisted int `json:"already_existed"`
	Failed         int `json:"failed"`

	CreatedTasks []model.AssignedTask `json:"-"`
	Failures     []store.RowFailure   `json:"-"`
}

// Generator produces assigned tasks for a period.
type Generator struct {
	store      Store
	exclusions Exclusions
}

func New(s Store, ex Exclusions) *Generator {
	return &Generator{store: s, exclusions: ex}
}

// GenerateForPeriod stages one task per client, template and due date in
// the period, skipping excluded pairs, and writes them through the
// duplicate-skipping insert. Running it again for the same period creates
// nothing and reports every task as already existing.
//
// An empty template or client set is not an error; the result carries a
// status explaining why nothing was generated.
func (g *Generator) GenerateForPeriod(ctx context.Context, req Request) (Result, error) {
	period := schedule.Period{Year: req.Year, Month: req.Month}
	if !period.Valid() {
		return Result{}, fmt.Errorf("invalid period %d-%d", req.Year, req.Month)
	}
	if !req.Department.Valid() {
		return Result{}, fmt.Errorf("%w: %q", model.ErrInvalidDepartment, req.Department)
	}
	opts := req.Options
	if opts.AssignmentPriority == "" {
		opts.AssignmentPriority = model.PriorityClientOwner
	}
	if opts.Audience == "" {
		opts.Audience = model.AudienceFilterAll
	}

	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"department": req.Department,
		"period":     period.String(),
		"priority":   opts.AssignmentPriority,
		"audience":   opts.Audience,
	})

	dept := req.Department
	templates, err := g.store.ListTemplates(ctx, store.TemplateFilter{
		Department: &dept,
		Audience:   opts.Audience,
		ActiveOnly: true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("loading templates: %w", err)
	}
	templates = periodic(templates)

	res := Result{Templates: len(templates)}
	if len(templates) == 0 {
		res.Status = StatusNoTemplates
		res.Message = fmt.Sprintf("no active periodic templates for %s (audience %s)", req.Department, opts.Audience)
		log.Info(res.Message)
		return res, nil
	}

	clients, err := g.store.ListClients(ctx, store.ClientFilter{Portfolio: opts.Portfolio, ActiveOnly: true})
	if err != nil {
		return Result{}, fmt.Errorf("loading clients: %w", err)
	}
	res.Clients = len(clients)
	if len(clients) == 0 {
		res.Status = StatusNoClients
		res.Message = "no active clients to generate for"
		log.Info(res.Message)
		return res, nil
	}

	taxIDs := make([]string, len(clients))
	for i, c := range clients {
		taxIDs[i] = c.TaxID
	}
	templateIDs := make([]int64, len(templates))
	for i, t := range templates {
		templateIDs[i] = t.ID
	}
	idx, err := g.exclusions.Preload(ctx, taxIDs, templateIDs)
	if err != nil {
		return Result{}, err
	}

	staged, excluded, err := stage(ctx, clients, templates, idx, period, opts)
	if err != nil {
		return Result{}, err
	}
	res.Staged = len(staged)
	res.Excluded = excluded
	if len(staged) == 0 {
		res.Status = StatusNothingDue
		res.Message = "every candidate task is excluded"
		log.WithField("excluded", excluded).Info(res.Message)
		return res, nil
	}

	ins, err := store.InsertInChunks(ctx, g.store, staged, opts.ChunkSize)
	if err != nil {
		return Result{}, fmt.Errorf("persisting generated tasks: %w", err)
	}
	for _, f := range ins.Failed {
		log.WithFields(logrus.Fields{
			"client_tax_id": f.Task.ClientTaxID,
			"template":      f.Task.TemplateID,
			"due_date":      model.FormatDate(f.Task.DueDate),
		}).WithError(f.Err).Warn("task not written")
	}

	res.Status = StatusGenerated
	res.Created = len(ins.Inserted)
	res.AlreadyExisted = len(ins.Duplicates)
	res.Failed = len(ins.Failed)
	res.CreatedTasks = ins.Inserted
	res.Failures = ins.Failed
	res.Message = fmt.Sprintf("created %d, already existed %d", res.Created, res.AlreadyExisted)

	log.WithFields(logrus.Fields{
		"staged":          res.Staged,
		"excluded":        res.Excluded,
		"created":         res.Created,
		"already_existed": res.AlreadyExisted,
		"failed":          res.Failed,
	}).Info("generation finished")
	return res, nil
}

// periodic drops ONE_OFF templates; they are only realized by explicit
// requests such as imports.
func periodic(templates []model.TaskTemplate) []model.TaskTemplate {
	out := templates[:0:0]
	for _, t := range templates {
		if t.Frequency.Periodic() {
			out = append(out, t)
		}
	}
	return out
}

// stage computes the candidate tasks for every client concurrently. The
// output order follows the client order so runs are reproducible.
func stage(
	ctx context.Context,
	clients []model.Client,
	templates []model.TaskTemplate,
	idx *exclusion.Index,
	period schedule.Period,
	opts Options,
) ([]model.AssignedTask, int, error) {
	// Due dates depend only on the template.
	dates := make([][]time.Time, len(templates))
	for i, t := range templates {
		dates[i] = schedule.DueDates(t, period.Year, period.Month)
	}

	perClient := make([][]model.AssignedTask, len(clients))
	excludedPerClient := make([]int, len(clients))

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(max(opts.Workers, 1))
	for ci := range clients {
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c := clients[ci]
			for ti, t := range templates {
				owner := ResolveOwner(opts.AssignmentPriority, c.OwnerID, t.DefaultOwnerID)
				for _, due := range dates[ti] {
					if idx.IsExcluded(c.TaxID, t.ID, due) {
						excludedPerClient[ci]++
						continue
					}
					perClient[ci] = append(perClient[ci], model.AssignedTask{
						TemplateID:  t.ID,
						ClientTaxID: c.TaxID,
						OwnerID:     owner,
						DueDate:     due,
						Status:      model.StatusPending,
						Origin:      model.OriginGenerator,
					})
				}
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, 0, err
	}

	var staged []model.AssignedTask
	excluded := 0
	for ci := range clients {
		staged = append(staged, perClient[ci]...)
		excluded += excludedPerClient[ci]
	}
	return staged, excluded, nil
}

// ResolveOwner picks the owner of a generated task. clientOwner prefers
// the client's agent and falls back to the template default;
// templateDefault does the reverse. Either may yield nil.
func ResolveOwner(priority model.AssignmentPriority, clientOwner, templateDefault *string) *string {
	first, second := clientOwner, templateDefault
	if priority == model.PriorityTemplateDefault {
		first, second = templateDefault, clientOwner
	}
	if first != nil && *first != "" {
		return first
	}
	if second != nil && *second != "" {
		return second
	}
	return nil
}
