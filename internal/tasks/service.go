// Package tasks implements the assigned task lifecycle.
package tasks

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

// ErrInvalidTransition is returned when the lifecycle does not allow a
// status change.
var ErrInvalidTransition = errors.New("invalid status transition")

// Store is the persistence the lifecycle needs.
type Store interface {
	GetAssignment(ctx context.Context, id string) (*model.AssignedTask, error)
	ListAssignments(ctx context.Context, filter store.AssignmentFilter) ([]model.AssignedTask, error)
	UpdateAssignmentStatus(ctx context.Context, id string, status model.Status, completedAt *time.Time) error
}

// View is a task as read at a point in time.
type View struct {
	model.AssignedTask
	Effective model.Status `json:"effective_status"`
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(s Store) *Service {
	return &Service{store: s, now: time.Now}
}

// Start moves a task to IN_PROGRESS.
func (s *Service) Start(ctx context.Context, id string) (*model.AssignedTask, error) {
	return s.transition(ctx, id, model.StatusInProgress, nil)
}

// Complete marks a task COMPLETED on the given day. A zero day means today.
func (s *Service) Complete(ctx context.Context, id string, on time.Time) (*model.AssignedTask, error) {
	if on.IsZero() {
		on = s.now()
	}
	on = model.DateOnly(on)
	return s.transition(ctx, id, model.StatusCompleted, &on)
}

// Reopen returns a completed or inapplicable task to work.
func (s *Service) Reopen(ctx context.Context, id string) (*model.AssignedTask, error) {
	t, err := s.store.GetAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	next := model.StatusPending
	if t.Status == model.StatusCompleted {
		next = model.StatusInProgress
	}
	return s.transition(ctx, id, next, nil)
}

// MarkNotApplicable sets a single task aside without touching exclusions.
func (s *Service) MarkNotApplicable(ctx context.Context, id string) (*model.AssignedTask, error) {
	return s.transition(ctx, id, model.StatusNotApplicable, nil)
}

func (s *Service) transition(ctx context.Context, id string, next model.Status, completedAt *time.Time) (*model.AssignedTask, error) {
	t, err := s.store.GetAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == next {
		return t, nil
	}
	if !t.Status.CanTransition(next) {
		return nil, fmt.Errorf("task %s: %s to %s: %w", id, t.Status, next, ErrInvalidTransition)
	}
	if err := s.store.UpdateAssignmentStatus(ctx, id, next, completedAt); err != nil {
		return nil, err
	}

	logging.FromContext(ctx).WithFields(logrus.Fields{
		"task": id,
		"from": t.Status,
		"to":   next,
	}).Info("task status changed")

	t.Status = next
	t.CompletedAt = completedAt
	return t, nil
}

// List returns matching tasks with their effective status.
func (s *Service) List(ctx context.Context, filter store.AssignmentFilter) ([]View, error) {
	list, err := s.store.ListAssignments(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]View, len(list))
	for i, t := range list {
		views[i] = View{AssignedTask: t, Effective: t.EffectiveStatus(now)}
	}
	return views, nil
}

// Overdue lists tasks past their due date that are still open.
func (s *Service) Overdue(ctx context.Context, filter store.AssignmentFilter) ([]View, error) {
	today := model.DateOnly(s.now())
	filter.OverdueAsOf = &today
	return s.List(ctx, filter)
}

// Summary counts tasks matching filter by effective status.
func (s *Service) Summary(ctx context.Context, filter store.AssignmentFilter) (map[model.Status]int, error) {
	filter.Limit, filter.Offset = 0, 0
	views, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make(map[model.Status]int)
	for _, v := range views {
		out[v.Effective]++
	}
	return out, nil
}
