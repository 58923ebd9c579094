package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/obligations/internal/model"
	"github.com/nhle/obligations/internal/store"
	"github.com/nhle/obligations/tests/testutil"
)

func setup(t *testing.T) (*Service, []model.AssignedTask) {
	t.Helper()
	s := testutil.NewTestStore(t)
	testutil.SeedClient(t, s, "76086428-5", "Acme SpA", nil)
	tpl := testutil.SeedMonthlyTemplate(t, s, model.DepartmentTax, "VAT Filing", 12)

	ins, err := s.InsertAssignments(context.Background(), []model.AssignedTask{
		{TemplateID: tpl.ID, ClientTaxID: "76086428-5", DueDate: model.Date(2025, time.February, 12)},
		{TemplateID: tpl.ID, ClientTaxID: "76086428-5", DueDate: model.Date(2025, time.March, 12)},
		{TemplateID: tpl.ID, ClientTaxID: "76086428-5", DueDate: model.Date(2025, time.April, 12)},
	})
	require.NoError(t, err)
	require.Len(t, ins.Inserted, 3)

	svc := NewService(s)
	svc.now = func() time.Time { return time.Date(2025, time.March, 20, 15, 0, 0, 0, time.UTC) }
	return svc, ins.Inserted
}

func TestLifecycle(t *testing.T) {
	svc, created := setup(t)
	ctx := context.Background()
	id := created[0].ID

	started, err := svc.Start(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, started.Status)

	again, err := svc.Start(ctx, id)
	require.NoError(t, err, "repeating a transition is a no-op")
	assert.Equal(t, model.StatusInProgress, again.Status)

	done, err := svc.Complete(ctx, id, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, "2025-03-20", model.FormatDate(*done.CompletedAt))

	_, err = svc.MarkNotApplicable(ctx, id)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	reopened, err := svc.Reopen(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, reopened.Status)

	stored, err := svc.store.GetAssignment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, stored.Status)
	assert.Nil(t, stored.CompletedAt)
}

func TestReopenNotApplicable(t *testing.T) {
	svc, created := setup(t)
	ctx := context.Background()

	_, err := svc.MarkNotApplicable(ctx, created[2].ID)
	require.NoError(t, err)
	reopened, err := svc.Reopen(ctx, created[2].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, reopened.Status)
}

func TestUnknownTask(t *testing.T) {
	svc, _ := setup(t)
	_, err := svc.Start(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListDerivesOverdue(t *testing.T) {
	svc, created := setup(t)
	ctx := context.Background()

	views, err := svc.List(ctx, store.AssignmentFilter{})
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, model.StatusOverdue, views[0].Effective)
	assert.Equal(t, model.StatusOverdue, views[1].Effective)
	assert.Equal(t, model.StatusPending, views[2].Effective)
	assert.Equal(t, model.StatusPending, views[0].Status, "overdue is never stored")

	_, err = svc.Complete(ctx, created[0].ID, model.Date(2025, time.March, 1))
	require.NoError(t, err)

	overdue, err := svc.Overdue(ctx, store.AssignmentFilter{})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, created[1].ID, overdue[0].ID)

	summary, err := svc.Summary(ctx, store.AssignmentFilter{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, map[model.Status]int{
		model.StatusCompleted: 1,
		model.StatusOverdue:   1,
		model.StatusPending:   1,
	}, summary)
}
