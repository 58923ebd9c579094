package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/obligations/internal/model"
	"github.com/nhle/obligations/internal/normalize"
	"github.com/nhle/obligations/internal/store"
	"github.com/nhle/obligations/tests/testutil"
)

func TestNewSQLiteStore_MigrationsAreRerunnable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "obligations.db")

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	testutil.SeedClient(t, s, "76.086.428-5", "Acme SpA", nil)
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	c, err := s.GetClient(context.Background(), "76086428-5")
	require.NoError(t, err)
	assert.Equal(t, "Acme SpA", c.Name)
}

func TestTemplates_CreateAndLookup(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	vat := testutil.SeedMonthlyTemplate(t, s, model.DepartmentTax, "VAT Filing", 12)
	require.NotZero(t, vat.ID)
	testutil.SeedWeeklyTemplate(t, s, model.DepartmentAccounting, "Bank Reconciliation", 5)

	got, err := s.GetTemplateByKey(ctx, normalize.NameKey("  vat   FILING "))
	require.NoError(t, err)
	assert.Equal(t, vat.ID, got.ID)
	require.NotNil(t, got.DayOfMonth)
	assert.Equal(t, 12, *got.DayOfMonth)
	assert.Nil(t, got.Weekday)
	assert.True(t, got.Active)

	dept := model.DepartmentTax
	list, err := s.ListTemplates(ctx, store.TemplateFilter{Department: &dept, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "VAT Filing", list[0].Name)

	require.NoError(t, s.DeactivateTemplate(ctx, vat.ID))
	list, err = s.ListTemplates(ctx, store.TemplateFilter{Department: &dept, ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = s.GetTemplate(ctx, 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTemplates_RejectsDuplicateKeyAndBadAnchor(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	testutil.SeedMonthlyTemplate(t, s, model.DepartmentTax, "VAT Filing", 12)

	day := 20
	dup := model.TaskTemplate{
		Department: model.DepartmentTax,
		Name:       "vat filing",
		NameKey:    normalize.NameKey("vat filing"),
		Frequency:  model.FrequencyMonthly,
		DayOfMonth: &day,
		Audience:   model.AudienceClient,
		Active:     true,
	}
	err := s.CreateTemplate(ctx, &dup)
	assert.ErrorIs(t, err, store.ErrDuplicate)

	weekly := model.TaskTemplate{
		Department: model.DepartmentTax,
		Name:       "Weekly Without Anchor",
		NameKey:    normalize.NameKey("Weekly Without Anchor"),
		Frequency:  model.FrequencyWeekly,
		Audience:   model.AudienceClient,
	}
	err = s.CreateTemplate(ctx, &weekly)
	assert.ErrorIs(t, err, model.ErrInvalidAnchor)
}

func TestTemplates_AudienceFilter(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	testutil.SeedMonthlyTemplate(t, s, model.DepartmentTax, "VAT Filing", 12)
	internal := model.TaskTemplate{
		Department: model.DepartmentTax,
		Name:       "Internal Review",
		NameKey:    normalize.NameKey("Internal Review"),
		Frequency:  model.FrequencyOneOff,
		Audience:   model.AudienceInternal,
		Active:     true,
	}
	require.NoError(t, s.CreateTemplate(ctx, &internal))

	all, err := s.ListTemplates(ctx, store.TemplateFilter{Audience: model.AudienceFilterAll})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyInternal, err := s.ListTemplates(ctx, store.TemplateFilter{Audience: model.AudienceFilterInternal})
	require.NoError(t, err)
	require.Len(t, onlyInternal, 1)
	assert.Equal(t, internal.ID, onlyInternal[0].ID)
}

func TestClients_OwnerAndFilters(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	ana := testutil.SeedAgent(t, s, "Ana", "ana@example.com")
	testutil.SeedClient(t, s, "76086428-5", "Acme SpA", &ana.ID)
	testutil.SeedClient(t, s, "11.111.111-1", "Beta Ltda", nil)

	err := s.CreateClient(ctx, model.Client{TaxID: "76086428-5", Name: "Again", Active: true})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	owned, err := s.ListClients(ctx, store.ClientFilter{OwnerID: &ana.ID})
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "76086428-5", owned[0].TaxID)

	q := "beta"
	found, err := s.ListClients(ctx, store.ClientFilter{Query: &q})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "11111111-1", found[0].TaxID)

	require.NoError(t, s.SetClientOwner(ctx, "11111111-1", &ana.ID))
	c, err := s.GetClient(ctx, "11111111-1")
	require.NoError(t, err)
	require.NotNil(t, c.OwnerID)
	assert.Equal(t, ana.ID, *c.OwnerID)

	require.NoError(t, s.DeactivateClient(ctx, "11111111-1"))
	active, err := s.ListClients(ctx, store.ClientFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 1)

	err = s.SetClientOwner(ctx, "99999999-9", nil)
	assert.ErrorIs(t, err, store.ErrNotFound)

	byEmail, err := s.GetAgentByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, ana.ID, byEmail.ID)
}

func TestExclusions_UpsertReplacesRecord(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	c := testutil.SeedClient(t, s, "76086428-5", "Acme SpA", nil)
	tpl := testutil.SeedMonthlyTemplate(t, s, model.DepartmentTax, "VAT Filing", 12)

	_, err := s.GetExclusion(ctx, c.TaxID, tpl.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	from := model.Date(2025, time.March, 1)
	first, err := s.UpsertExclusion(ctx, model.ClientExclusion{
		ClientTaxID:   c.TaxID,
		TemplateID:    tpl.ID,
		Excluded:      true,
		EffectiveFrom: &from,
		Reason:        "closed business",
	})
	require.NoError(t, err)
	assert.True(t, first.Excluded)
	require.NotNil(t, first.EffectiveFrom)
	assert.True(t, from.Equal(*first.EffectiveFrom))

	second, err := s.UpsertExclusion(ctx, model.ClientExclusion{
		ClientTaxID: c.TaxID,
		TemplateID:  tpl.ID,
		Excluded:    false,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.False(t, second.Excluded)
	assert.Nil(t, second.EffectiveFrom)

	excluded, err := s.ListExclusions(ctx, store.ExclusionFilter{ExcludedOnly: true})
	require.NoError(t, err)
	assert.Empty(t, excluded)

	all, err := s.ListExclusions(ctx, store.ExclusionFilter{ClientTaxIDs: []string{c.TaxID}})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func newTask(tpl model.TaskTemplate, client model.Client, due time.Time) model.AssignedTask {
	return model.AssignedTask{TemplateID: tpl.ID, ClientTaxID: client.TaxID, DueDate: due}
}

func TestInsertAssignments_SkipsDuplicates(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	c := testutil.SeedClient(t, s, "76086428-5", "Acme SpA", nil)
	tpl := testutil.SeedMonthlyTemplate(t, s, model.DepartmentTax, "VAT Filing", 12)
	due := model.Date(2025, time.March, 12)

	res, err := s.InsertAssignments(ctx, []model.AssignedTask{
		newTask(tpl, c, due),
		newTask(tpl, c, due),
	})
	require.NoError(t, err)
	assert.Len(t, res.Inserted, 1)
	assert.Len(t, res.Duplicates, 1)
	assert.Empty(t, res.Failed)
	assert.Equal(t, model.StatusPending, res.Inserted[0].Status)
	assert.NotEmpty(t, res.Inserted[0].ID)

	res, err = s.InsertAssignments(ctx, []model.AssignedTask{newTask(tpl, c, due)})
	require.NoError(t, err)
	assert.Empty(t, res.Inserted)
	assert.Len(t, res.Duplicates, 1)

	n, err := s.CountAssignments(ctx, store.AssignmentFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsertAssignments_IsolatesFailedRows(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	c := testutil.SeedClient(t, s, "76086428-5", "Acme SpA", nil)
	tpl := testutil.SeedMonthlyTemplate(t, s, model.DepartmentTax, "VAT Filing", 12)
	ghost := model.Client{TaxID: "11111111-1"}

	res, err := s.InsertAssignments(ctx, []model.AssignedTask{
		newTask(tpl, c, model.Date(2025, time.January, 12)),
		newTask(tpl, ghost, model.Date(2025, time.January, 12)),
		{TemplateID: tpl.ID, ClientTaxID: c.TaxID},
		newTask(tpl, c, model.Date(2025, time.February, 12)),
	})
	require.NoError(t, err)
	assert.Len(t, res.Inserted, 2)
	require.Len(t, res.Failed, 2)
	assert.Equal(t, "11111111-1", res.Failed[0].Task.ClientTaxID)
	assert.Error(t, res.Failed[0].Err)

	n, err := s.CountAssignments(ctx, store.AssignmentFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestInsertInChunks_MergesOutcomes(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	c := testutil.SeedClient(t, s, "76086428-5", "Acme SpA", nil)
	tpl := testutil.SeedWeeklyTemplate(t, s, model.DepartmentAccounting, "Bank Reconciliation", 1)

	var tasks []model.AssignedTask
	for d := 1; d <= 7; d++ {
		tasks = append(tasks, newTask(tpl, c, model.Date(2025, time.March, d)))
	}
	tasks = append(tasks, newTask(tpl, c, model.Date(2025, time.March, 1)))

	res, err := store.InsertInChunks(ctx, s, tasks, 3)
	require.NoError(t, err)
	assert.Len(t, res.Inserted, 7)
	assert.Len(t, res.Duplicates, 1)
}

// batchRecorder satisfies only the insert port.
type batchRecorder struct {
	sizes []int
}

func (r *batchRecorder) InsertAssignments(_ context.Context, tasks []model.AssignedTask) (store.InsertResult, error) {
	r.sizes = append(r.sizes, len(tasks))
	return store.InsertResult{Inserted: tasks}, nil
}

func TestInsertInChunks_NeedsOnlyTheInserter(t *testing.T) {
	var _ store.AssignmentInserter = (*store.SQLiteStore)(nil)

	rec := &batchRecorder{}
	tasks := make([]model.AssignedTask, 5)

	res, err := store.InsertInChunks(context.Background(), rec, tasks, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, rec.sizes)
	assert.Len(t, res.Inserted, 5)

	rec.sizes = nil
	_, err = store.InsertInChunks(context.Background(), rec, tasks, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{5}, rec.sizes)
}

func TestListAssignments_Filters(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	ana := testutil.SeedAgent(t, s, "Ana", "ana@example.com")
	acme := testutil.SeedClient(t, s, "76086428-5", "Acme SpA", nil)
	beta := testutil.SeedClient(t, s, "11111111-1", "Beta Ltda", nil)
	vat := testutil.SeedMonthlyTemplate(t, s, model.DepartmentTax, "VAT Filing", 12)
	monthClose := testutil.SeedMonthlyTemplate(t, s, model.DepartmentAccounting, "Monthly Close", 31)

	owned := newTask(vat, acme, model.Date(2025, time.January, 12))
	owned.OwnerID = &ana.ID
	_, err := s.InsertAssignments(ctx, []model.AssignedTask{
		owned,
		newTask(vat, beta, model.Date(2025, time.February, 12)),
		newTask(monthClose, acme, model.Date(2025, time.January, 31)),
	})
	require.NoError(t, err)

	tax := model.DepartmentTax
	got, err := s.ListAssignments(ctx, store.AssignmentFilter{Department: &tax})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2025-01-12", model.FormatDate(got[0].DueDate))
	assert.Equal(t, "2025-02-12", model.FormatDate(got[1].DueDate))

	got, err = s.ListAssignments(ctx, store.AssignmentFilter{OwnerID: &ana.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, acme.TaxID, got[0].ClientTaxID)

	from := model.Date(2025, time.January, 20)
	to := model.Date(2025, time.January, 31)
	got, err = s.ListAssignments(ctx, store.AssignmentFilter{DueFrom: &from, DueTo: &to})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, monthClose.ID, got[0].TemplateID)

	asOf := model.Date(2025, time.February, 1)
	got, err = s.ListAssignments(ctx, store.AssignmentFilter{OverdueAsOf: &asOf})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.ListAssignments(ctx, store.AssignmentFilter{SortBy: "due_date", SortDesc: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2025-02-12", model.FormatDate(got[0].DueDate))

	n, err := s.CountAssignments(ctx, store.AssignmentFilter{ClientTaxID: &acme.TaxID, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTransitionAssignments_RespectsStatusAndDate(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	c := testutil.SeedClient(t, s, "76086428-5", "Acme SpA", nil)
	tpl := testutil.SeedMonthlyTemplate(t, s, model.DepartmentTax, "VAT Filing", 12)

	res, err := s.InsertAssignments(ctx, []model.AssignedTask{
		newTask(tpl, c, model.Date(2025, time.January, 12)),
		newTask(tpl, c, model.Date(2025, time.February, 12)),
		newTask(tpl, c, model.Date(2025, time.March, 12)),
	})
	require.NoError(t, err)
	require.Len(t, res.Inserted, 3)

	done := time.Now().UTC()
	require.NoError(t, s.UpdateAssignmentStatus(ctx, res.Inserted[2].ID, model.StatusCompleted, &done))

	from := model.Date(2025, time.February, 1)
	n, err := s.TransitionAssignments(ctx, store.TransitionRequest{
		ClientTaxID:  c.TaxID,
		TemplateID:   tpl.ID,
		From:         model.ActiveStatuses,
		To:           model.StatusNotApplicable,
		DueOnOrAfter: &from,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	jan, err := s.GetAssignment(ctx, res.Inserted[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, jan.Status)

	feb, err := s.GetAssignment(ctx, res.Inserted[1].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotApplicable, feb.Status)

	mar, err := s.GetAssignment(ctx, res.Inserted[2].ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, mar.Status)
	assert.NotNil(t, mar.CompletedAt)
}

func TestUpdateAssignmentStatus_RejectsDerivedStatus(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	err := s.UpdateAssignmentStatus(ctx, "missing", model.StatusOverdue, nil)
	assert.Error(t, err)

	err = s.UpdateAssignmentStatus(ctx, "missing", model.StatusCompleted, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetAssignmentFolder(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	c := testutil.SeedClient(t, s, "76086428-5", "Acme SpA", nil)
	tpl := testutil.SeedMonthlyTemplate(t, s, model.DepartmentTax, "VAT Filing", 12)
	res, err := s.InsertAssignments(ctx, []model.AssignedTask{newTask(tpl, c, model.Date(2025, time.March, 12))})
	require.NoError(t, err)
	require.Len(t, res.Inserted, 1)

	require.NoError(t, s.SetAssignmentFolder(ctx, res.Inserted[0].ID, "folder-123"))
	got, err := s.GetAssignment(ctx, res.Inserted[0].ID)
	require.NoError(t, err)
	require.NotNil(t, got.FolderRef)
	assert.Equal(t, "folder-123", *got.FolderRef)
}

func TestImportRuns_RecordAndGet(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	start := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	run := store.ImportRun{
		ID:           "run-1",
		StartedAt:    start,
		FinishedAt:   start.Add(2 * time.Second),
		RowsTotal:    10,
		RowsInvalid:  1,
		TasksCreated: 8,
		TasksSkipped: 1,
		OK:           true,
		Summary:      `{"rows":[]}`,
	}
	require.NoError(t, s.RecordImportRun(ctx, run))

	got, err := s.GetImportRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 8, got.TasksCreated)
	assert.True(t, got.OK)
	assert.True(t, start.Equal(got.StartedAt))
	assert.Equal(t, `{"rows":[]}`, got.Summary)

	_, err = s.GetImportRun(ctx, "run-2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
