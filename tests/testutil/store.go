package testutil

import (
	"context"
	"testing"

	"github.com/nhle/obligations/internal/model"
	"github.com/nhle/obligations/internal/normalize"
	"github.com/nhle/obligations/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// SeedAgent inserts an active agent and returns it with its generated ID.
func SeedAgent(t *testing.T, s store.Store, name, email string) model.Agent {
	t.Helper()

	ctx := context.Background()
	if err := s.CreateAgent(ctx, model.Agent{Name: name, Email: email, Active: true}); err != nil {
		t.Fatalf("seeding agent %s: %v", email, err)
	}
	a, err := s.GetAgentByEmail(ctx, email)
	if err != nil {
		t.Fatalf("reloading agent %s: %v", email, err)
	}
	return *a
}

// SeedClient inserts an active client. ownerID may be nil.
func SeedClient(t *testing.T, s store.Store, taxID, name string, ownerID *string) model.Client {
	t.Helper()

	c := model.Client{
		TaxID:   normalize.TaxID(taxID),
		Name:    name,
		OwnerID: ownerID,
		Active:  true,
	}
	if err := s.CreateClient(context.Background(), c); err != nil {
		t.Fatalf("seeding client %s: %v", taxID, err)
	}
	return c
}

// SeedMonthlyTemplate inserts an active client-facing MONTHLY template.
func SeedMonthlyTemplate(t *testing.T, s store.Store, dept model.Department, name string, day int) model.TaskTemplate {
	t.Helper()

	tpl := model.TaskTemplate{
		Department: dept,
		Name:       name,
		NameKey:    normalize.NameKey(name),
		Frequency:  model.FrequencyMonthly,
		DayOfMonth: &day,
		Audience:   model.AudienceClient,
		Active:     true,
	}
	if err := s.CreateTemplate(context.Background(), &tpl); err != nil {
		t.Fatalf("seeding template %q: %v", name, err)
	}
	return tpl
}

// SeedWeeklyTemplate inserts an active client-facing WEEKLY template.
// weekday uses ISO numbering, 1 = Monday.
func SeedWeeklyTemplate(t *testing.T, s store.Store, dept model.Department, name string, weekday int) model.TaskTemplate {
	t.Helper()

	tpl := model.TaskTemplate{
		Department: dept,
		Name:       name,
		NameKey:    normalize.NameKey(name),
		Frequency:  model.FrequencyWeekly,
		Weekday:    &weekday,
		Audience:   model.AudienceClient,
		Active:     true,
	}
	if err := s.CreateTemplate(context.Background(), &tpl); err != nil {
		t.Fatalf("seeding template %q: %v", name, err)
	}
	return tpl
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
