package model_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/obligations/internal/model"
)

func intp(v int) *int { return &v }

func TestParseEnums(t *testing.T) {
	for in, want := range map[string]model.Frequency{
		"Mensual":  model.FrequencyMonthly,
		" weekly ": model.FrequencyWeekly,
		"ONE_OFF":  model.FrequencyOneOff,
		"única":    model.FrequencyOneOff,
	} {
		got, err := model.ParseFrequency(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := model.ParseFrequency("yearly")
	assert.ErrorIs(t, err, model.ErrInvalidFrequency)

	dep, err := model.ParseDepartment("Tributario")
	require.NoError(t, err)
	assert.Equal(t, model.DepartmentTax, dep)
	_, err = model.ParseDepartment("marketing")
	assert.ErrorIs(t, err, model.ErrInvalidDepartment)

	aud, err := model.ParseAudience("Interno")
	require.NoError(t, err)
	assert.Equal(t, model.AudienceInternal, aud)

	f, err := model.ParseAudienceFilter("")
	require.NoError(t, err)
	assert.True(t, f.Matches(model.AudienceInternal))
	f, err = model.ParseAudienceFilter("client-facing")
	require.NoError(t, err)
	assert.False(t, f.Matches(model.AudienceInternal))

	p, err := model.ParseAssignmentPriority("templateDefault")
	require.NoError(t, err)
	assert.Equal(t, model.PriorityTemplateDefault, p)
	_, err = model.ParseAssignmentPriority("random")
	assert.ErrorIs(t, err, model.ErrInvalidPriority)
}

func TestCheckAnchor(t *testing.T) {
	tests := []struct {
		name    string
		freq    model.Frequency
		day     *int
		weekday *int
		wantErr error
	}{
		{"monthly ok", model.FrequencyMonthly, intp(31), nil, nil},
		{"monthly missing day", model.FrequencyMonthly, nil, intp(1), model.ErrInvalidAnchor},
		{"monthly day 0", model.FrequencyMonthly, intp(0), nil, model.ErrInvalidAnchor},
		{"weekly ok", model.FrequencyWeekly, nil, intp(7), nil},
		{"weekly day 8", model.FrequencyWeekly, nil, intp(8), model.ErrInvalidAnchor},
		{"one-off needs nothing", model.FrequencyOneOff, nil, nil, nil},
		{"unknown frequency", model.Frequency("DAILY"), nil, nil, model.ErrInvalidFrequency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := model.CheckAnchor(tt.freq, tt.day, tt.weekday)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestTemplateValidate(t *testing.T) {
	tpl := model.TaskTemplate{
		Department: model.DepartmentTax,
		Name:       "VAT Filing",
		NameKey:    "vat filing",
		Frequency:  model.FrequencyMonthly,
		DayOfMonth: intp(12),
		Audience:   model.AudienceClient,
	}
	require.NoError(t, tpl.Validate())
	assert.Equal(t, 12, tpl.Anchor())

	bad := tpl
	bad.Department = "MARKETING"
	assert.Error(t, bad.Validate())

	bad = tpl
	bad.DayOfMonth = nil
	assert.ErrorIs(t, bad.Validate(), model.ErrInvalidAnchor)
}

func TestExcludesOn(t *testing.T) {
	from := model.Date(2025, time.March, 15)
	e := model.ClientExclusion{Excluded: true, EffectiveFrom: &from}

	assert.False(t, e.ExcludesOn(model.Date(2025, time.March, 14)))
	assert.True(t, e.ExcludesOn(model.Date(2025, time.March, 15)))
	assert.True(t, e.ExcludesOn(time.Date(2025, time.March, 15, 23, 0, 0, 0, time.UTC)))

	always := model.ClientExclusion{Excluded: true}
	assert.True(t, always.ExcludesOn(model.Date(1990, time.January, 1)))

	lifted := model.ClientExclusion{Excluded: false, EffectiveFrom: &from}
	assert.False(t, lifted.ExcludesOn(model.Date(2030, time.January, 1)))
}

func TestAssignedTaskStatus(t *testing.T) {
	task := model.AssignedTask{DueDate: model.Date(2025, time.March, 12), Status: model.StatusPending}

	assert.Equal(t, model.StatusPending, task.EffectiveStatus(time.Date(2025, time.March, 12, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, model.StatusOverdue, task.EffectiveStatus(model.Date(2025, time.March, 13)))

	task.Status = model.StatusCompleted
	assert.Equal(t, model.StatusCompleted, task.EffectiveStatus(model.Date(2026, time.January, 1)))

	assert.True(t, model.StatusPending.CanTransition(model.StatusInProgress))
	assert.True(t, model.StatusNotApplicable.CanTransition(model.StatusPending))
	assert.False(t, model.StatusCompleted.CanTransition(model.StatusNotApplicable))
	assert.False(t, model.StatusPending.CanTransition(model.StatusOverdue))
	assert.False(t, model.StatusOverdue.Stored())
}

func TestAssignedTaskValidate(t *testing.T) {
	task := model.AssignedTask{TemplateID: 1, ClientTaxID: "76086428-5", Status: model.StatusPending}
	assert.Error(t, task.Validate(), "due date is required")

	task.DueDate = model.Date(2025, time.March, 12)
	assert.NoError(t, task.Validate())
	assert.Equal(t, "1/76086428-5/2025-03-12", task.Key().String())

	task.Status = model.StatusOverdue
	assert.Error(t, task.Validate())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := model.LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 500, cfg.Import.ChunkSize)
	assert.Equal(t, string(model.PriorityClientOwner), cfg.Generation.AssignmentPriority)
	assert.False(t, cfg.Exclusions.ReactivateOnClear)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /tmp/x.db
generation:
  assignment_priority: templateDefault
  audience: internal
import:
  chunk_size: 50
exclusions:
  reactivate_on_clear: true
`), 0o600))
	t.Setenv("OBLIGATIONS_LOG_LEVEL", "debug")

	cfg, err = model.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	assert.Equal(t, "templateDefault", cfg.Generation.AssignmentPriority)
	assert.Equal(t, "internal", cfg.Generation.Audience)
	assert.Equal(t, 50, cfg.Import.ChunkSize)
	assert.True(t, cfg.Exclusions.ReactivateOnClear)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_RejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("import:\n  chunk_size: 0\n"), 0o600))
	_, err := model.LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := model.LoadConfig(path)
	require.NoError(t, err)
	cfg.Drive.ParentFolderID = "parent-1"

	require.NoError(t, model.SaveConfig(path, cfg))
	loaded, err := model.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "parent-1", loaded.Drive.ParentFolderID)
}
