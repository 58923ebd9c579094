package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/obligations/internal/model"
)

const templateColumns = `id, department, name, name_key, frequency, day_of_month, weekday,
	audience, default_owner_id, requires_folder, document_code, detail, active,
	created_at, updated_at`

// CreateTemplate validates and inserts a template, setting t.ID.
// A template whose natural name key already exists yields ErrDuplicate.
func (s *SQLiteStore) CreateTemplate(ctx context.Context, t *model.TaskTemplate) error {
	if err := t.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO task_templates (
			department, name, name_key, frequency, day_of_month, weekday,
			audience, default_owner_id, requires_folder, document_code, detail, active,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Department, t.Name, t.NameKey, t.Frequency, t.DayOfMonth, t.Weekday,
		t.Audience, t.DefaultOwnerID, boolToInt(t.RequiresFolder), t.DocumentCode, t.Detail,
		boolToInt(t.Active), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("creating template %q: %w", t.NameKey, ErrDuplicate)
		}
		return fmt.Errorf("creating template %q: %w", t.NameKey, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading template id: %w", err)
	}
	t.ID = id
	return nil
}

// GetTemplate retrieves a single template by ID.
func (s *SQLiteStore) GetTemplate(ctx context.Context, id int64) (*model.TaskTemplate, error) {
	var t model.TaskTemplate
	err := s.db.GetContext(ctx, &t,
		"SELECT "+templateColumns+" FROM task_templates WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting template %d: %w", id, err)
	}
	return &t, nil
}

// GetTemplateByKey retrieves a template by its normalized name key.
func (s *SQLiteStore) GetTemplateByKey(ctx context.Context, nameKey string) (*model.TaskTemplate, error) {
	var t model.TaskTemplate
	err := s.db.GetContext(ctx, &t,
		"SELECT "+templateColumns+" FROM task_templates WHERE name_key = ?", nameKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("template %q: %w", nameKey, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting template %q: %w", nameKey, err)
	}
	return &t, nil
}

// ListTemplates retrieves templates matching the filter ordered by
// department and name.
func (s *SQLiteStore) ListTemplates(ctx context.Context, filter TemplateFilter) ([]model.TaskTemplate, error) {
	query, args := buildTemplateQuery(filter)

	var templates []model.TaskTemplate
	if err := s.db.SelectContext(ctx, &templates, query, args...); err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	return templates, nil
}

// DeactivateTemplate clears the active flag. Existing assigned tasks are
// left untouched.
func (s *SQLiteStore) DeactivateTemplate(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE task_templates SET active = 0, updated_at = ? WHERE id = ?",
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("deactivating template %d: %w", id, err)
	}
	return checkAffected(res, fmt.Sprintf("template %d", id))
}

// buildTemplateQuery constructs the SQL query and args for a TemplateFilter.
func buildTemplateQuery(filter TemplateFilter) (string, []interface{}) {
	var c conditions
	if filter.Department != nil {
		c.add("department = ?", string(*filter.Department))
	}
	if filter.Frequency != nil {
		c.add("frequency = ?", string(*filter.Frequency))
	}
	if filter.Audience != "" && filter.Audience != model.AudienceFilterAll {
		c.add("audience = ?", string(filter.Audience))
	}
	if filter.ActiveOnly {
		c.add("active = 1")
	}
	c.in("id", int64Args(filter.IDs))
	c.in("name_key", stringArgs(filter.NameKeys))

	return "SELECT " + templateColumns + " FROM task_templates" + c.where() +
		" ORDER BY department, name", c.args
}
