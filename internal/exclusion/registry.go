// Package exclusion is the registry of per-client template overrides.
//
// A record with Excluded set means the template does not apply to the
// client from its effective date onward. A missing record, or one with
// Excluded cleared, means the template applies. Generation, listing and
// retroactive status changes all read records through this package so the
// polarity is decided in one place.
package exclusion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/obligations/internal/logging"
	"github.com/nhle/obligations/internal/model"
	"github.com/nhle/obligations/internal/store"
)

// Store is the persistence the registry needs.
type Store interface {
	store.ExclusionStore
	GetClient(ctx context.Context, taxID string) (*model.Client, error)
	GetTemplate(ctx context.Context, id int64) (*model.TaskTemplate, error)
	ListTemplates(ctx context.Context, filter store.TemplateFilter) ([]model.TaskTemplate, error)
	TransitionAssignments(ctx context.Context, req store.TransitionRequest) (int, error)
}

// Registry answers and records exclusion decisions.
type Registry struct {
	store             Store
	reactivateOnClear bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithReactivateOnClear makes SetExclusion move NOT_APPLICABLE tasks back
// to PENDING when an exclusion is lifted. Off by default.
func WithReactivateOnClear(on bool) Option {
	return func(r *Registry) { r.reactivateOnClear = on }
}

func NewRegistry(s Store, opts ...Option) *Registry {
	r := &Registry{store: s}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsExcluded reports whether the template is suppressed for the client on
// the given day.
func (r *Registry) IsExcluded(ctx context.Context, clientTaxID string, templateID int64, on time.Time) (bool, error) {
	e, err := r.store.GetExclusion(ctx, clientTaxID, templateID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up exclusion: %w", err)
	}
	return e.ExcludesOn(on), nil
}

// Preload fetches every record for the cross product of the given clients
// and templates in one query.
func (r *Registry) Preload(ctx context.Context, clientTaxIDs []string, templateIDs []int64) (*Index, error) {
	if len(clientTaxIDs) == 0 || len(templateIDs) == 0 {
		return NewIndex(nil), nil
	}
	records, err := r.store.ListExclusions(ctx, store.ExclusionFilter{
		ClientTaxIDs: clientTaxIDs,
		TemplateIDs:  templateIDs,
		ExcludedOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("preloading exclusions: %w", err)
	}
	return NewIndex(records), nil
}

// SetRequest describes an exclusion change.
type SetRequest struct {
	ClientTaxID   string
	TemplateID    int64
	Excluded      bool
	Reason        string
	EffectiveFrom *time.Time
}

// SetResult reports what SetExclusion changed.
type SetResult struct {
	Exclusion model.ClientExclusion

	// MarkedNotApplicable counts PENDING or IN_PROGRESS tasks moved to
	// NOT_APPLICABLE.
	MarkedNotApplicable int

	// Reactivated counts NOT_APPLICABLE tasks moved back to PENDING.
	Reactivated int
}

// SetExclusion upserts the record for the pair. Excluding moves the pair's
// active tasks due on or after the effective date to NOT_APPLICABLE.
// Lifting a previous exclusion reactivates tasks only when the registry
// was built WithReactivateOnClear.
func (r *Registry) SetExclusion(ctx context.Context, req SetRequest) (SetResult, error) {
	var res SetResult
	if _, err := r.store.GetClient(ctx, req.ClientTaxID); err != nil {
		return res, fmt.Errorf("setting exclusion: %w", err)
	}
	if _, err := r.store.GetTemplate(ctx, req.TemplateID); err != nil {
		return res, fmt.Errorf("setting exclusion: %w", err)
	}

	prev, err := r.store.GetExclusion(ctx, req.ClientTaxID, req.TemplateID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return res, fmt.Errorf("setting exclusion: %w", err)
	}

	var effective *time.Time
	if req.EffectiveFrom != nil {
		d := model.DateOnly(*req.EffectiveFrom)
		effective = &d
	}

	saved, err := r.store.UpsertExclusion(ctx, model.ClientExclusion{
		ClientTaxID:   req.ClientTaxID,
		TemplateID:    req.TemplateID,
		Excluded:      req.Excluded,
		EffectiveFrom: effective,
		Reason:        req.Reason,
	})
	if err != nil {
		return res, fmt.Errorf("setting exclusion: %w", err)
	}
	res.Exclusion = *saved

	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"client_tax_id": req.ClientTaxID,
		"template":      req.TemplateID,
		"excluded":      req.Excluded,
	})

	switch {
	case req.Excluded:
		// Re-applying an exclusion is harmless: only active tasks move.
		n, err := r.store.TransitionAssignments(ctx, store.TransitionRequest{
			ClientTaxID:  req.ClientTaxID,
			TemplateID:   req.TemplateID,
			From:         model.ActiveStatuses,
			To:           model.StatusNotApplicable,
			DueOnOrAfter: effective,
		})
		if err != nil {
			return res, fmt.Errorf("marking tasks not applicable: %w", err)
		}
		res.MarkedNotApplicable = n

	case prev != nil && prev.Excluded && r.reactivateOnClear:
		n, err := r.store.TransitionAssignments(ctx, store.TransitionRequest{
			ClientTaxID:  req.ClientTaxID,
			TemplateID:   req.TemplateID,
			From:         []model.Status{model.StatusNotApplicable},
			To:           model.StatusPending,
			DueOnOrAfter: prev.EffectiveFrom,
		})
		if err != nil {
			return res, fmt.Errorf("reactivating tasks: %w", err)
		}
		res.Reactivated = n
	}

	log.WithFields(logrus.Fields{
		"not_applicable": res.MarkedNotApplicable,
		"reactivated":    res.Reactivated,
	}).Info("exclusion updated")
	return res, nil
}

// Applicability is one row of the per-client template listing.
type Applicability struct {
	Template  model.TaskTemplate
	Applies   bool
	Exclusion *model.ClientExclusion
}

// ApplicableTemplates lists every active template with whether it applies
// to the client on the given day.
func (r *Registry) ApplicableTemplates(ctx context.Context, clientTaxID string, on time.Time) ([]Applicability, error) {
	if _, err := r.store.GetClient(ctx, clientTaxID); err != nil {
		return nil, fmt.Errorf("listing applicable templates: %w", err)
	}
	templates, err := r.store.ListTemplates(ctx, store.TemplateFilter{ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("listing applicable templates: %w", err)
	}
	records, err := r.store.ListExclusions(ctx, store.ExclusionFilter{ClientTaxIDs: []string{clientTaxID}})
	if err != nil {
		return nil, fmt.Errorf("listing applicable templates: %w", err)
	}
	idx := NewIndex(records)

	out := make([]Applicability, 0, len(templates))
	for _, t := range templates {
		a := Applicability{Template: t, Applies: !idx.IsExcluded(clientTaxID, t.ID, on)}
		if e, ok := idx.Get(clientTaxID, t.ID); ok {
			a.Exclusion = &e
		}
		out = append(out, a)
	}
	return out, nil
}
