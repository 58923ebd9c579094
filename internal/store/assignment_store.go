package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nhle/obligations/internal/model"
)

// assignmentRow mirrors assigned_tasks; due_date is a plain date string.
type assignmentRow struct {
	ID          string     `db:"id"`
	TemplateID  int64      `db:"template_id"`
	ClientTaxID string     `db:"client_tax_id"`
	OwnerID     *string    `db:"owner_id"`
	DueDate     string     `db:"due_date"`
	Status      string     `db:"status"`
	CompletedAt *time.Time `db:"completed_at"`
	Note        string     `db:"note"`
	FolderRef   *string    `db:"folder_ref"`
	Origin      string     `db:"origin"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func (r assignmentRow) toModel() (model.AssignedTask, error) {
	due, err := model.ParseDate(r.DueDate)
	if err != nil {
		return model.AssignedTask{}, fmt.Errorf("parsing due_date of task %s: %w", r.ID, err)
	}
	return model.AssignedTask{
		ID:          r.ID,
		TemplateID:  r.TemplateID,
		ClientTaxID: r.ClientTaxID,
		OwnerID:     r.OwnerID,
		DueDate:     due,
		Status:      model.Status(r.Status),
		CompletedAt: r.CompletedAt,
		Note:        r.Note,
		FolderRef:   r.FolderRef,
		Origin:      model.Origin(r.Origin),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

const assignmentColumns = `assigned_tasks.id, assigned_tasks.template_id, assigned_tasks.client_tax_id,
	assigned_tasks.owner_id, assigned_tasks.due_date, assigned_tasks.status, assigned_tasks.completed_at,
	assigned_tasks.note, assigned_tasks.folder_ref, assigned_tasks.origin,
	assigned_tasks.created_at, assigned_tasks.updated_at`

// InsertAssignments writes the batch in a single transaction. A row that
// collides with an existing (template, client, due date) is skipped; a row
// rejected for any other reason is reported in Failed and the remaining
// rows are still written. Only infrastructure errors abort the batch.
func (s *SQLiteStore) InsertAssignments(ctx context.Context, tasks []model.AssignedTask) (InsertResult, error) {
	var res InsertResult
	if len(tasks) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("beginning assignment batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO assigned_tasks (
			id, template_id, client_tax_id, owner_id, due_date, status,
			completed_at, note, folder_ref, origin, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(template_id, client_tax_id, due_date) DO NOTHING`)
	if err != nil {
		return res, fmt.Errorf("preparing assignment insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, task := range tasks {
		if task.ID == "" {
			task.ID = uuid.New().String()
		}
		if task.Status == "" {
			task.Status = model.StatusPending
		}
		if task.Origin == "" {
			task.Origin = model.OriginGenerator
		}
		task.DueDate = model.DateOnly(task.DueDate)
		task.CreatedAt = now
		task.UpdatedAt = now

		if err := task.Validate(); err != nil {
			res.Failed = append(res.Failed, RowFailure{Task: task, Err: err})
			continue
		}

		inserted, err := insertAssignment(ctx, stmt, task)
		if err != nil {
			if ctx.Err() != nil {
				return InsertResult{}, ctx.Err()
			}
			res.Failed = append(res.Failed, RowFailure{Task: task, Err: err})
			continue
		}
		if inserted {
			res.Inserted = append(res.Inserted, task)
		} else {
			res.Duplicates = append(res.Duplicates, task)
		}
	}

	if err := tx.Commit(); err != nil {
		return InsertResult{}, fmt.Errorf("committing assignment batch: %w", err)
	}
	return res, nil
}

func insertAssignment(ctx context.Context, stmt *sqlx.Stmt, t model.AssignedTask) (bool, error) {
	result, err := stmt.ExecContext(ctx,
		t.ID, t.TemplateID, t.ClientTaxID, t.OwnerID, model.FormatDate(t.DueDate), t.Status,
		t.CompletedAt, t.Note, t.FolderRef, t.Origin, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("inserting task %s: %w", t.Key(), err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading affected rows for task %s: %w", t.Key(), err)
	}
	return rows > 0, nil
}

// GetAssignment retrieves a single assigned task by ID.
func (s *SQLiteStore) GetAssignment(ctx context.Context, id string) (*model.AssignedTask, error) {
	var row assignmentRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+assignmentColumns+" FROM assigned_tasks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}
	t, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListAssignments retrieves assigned tasks matching the filter.
func (s *SQLiteStore) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]model.AssignedTask, error) {
	query, args := buildAssignmentQuery("SELECT "+assignmentColumns, filter, true)

	var rows []assignmentRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}

	tasks := make([]model.AssignedTask, 0, len(rows))
	for _, r := range rows {
		t, err := r.toModel()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// CountAssignments returns the number of tasks matching the filter,
// ignoring limit and offset.
func (s *SQLiteStore) CountAssignments(ctx context.Context, filter AssignmentFilter) (int, error) {
	query, args := buildAssignmentQuery("SELECT COUNT(*)", filter, false)

	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("counting tasks: %w", err)
	}
	return count, nil
}

// UpdateAssignmentStatus sets a task's stored status. completedAt is
// recorded as given, so callers clear it by passing nil.
func (s *SQLiteStore) UpdateAssignmentStatus(ctx context.Context, id string, status model.Status, completedAt *time.Time) error {
	if !status.Stored() {
		return fmt.Errorf("status %q cannot be stored", status)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE assigned_tasks SET status = ?, completed_at = ?, updated_at = ? WHERE id = ?",
		status, completedAt, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating status of task %s: %w", id, err)
	}
	return checkAffected(res, "task "+id)
}

// TransitionAssignments moves every task of the pair currently in one of
// req.From to req.To and returns how many changed.
func (s *SQLiteStore) TransitionAssignments(ctx context.Context, req TransitionRequest) (int, error) {
	if !req.To.Stored() {
		return 0, fmt.Errorf("status %q cannot be stored", req.To)
	}
	if len(req.From) == 0 {
		return 0, nil
	}

	var c conditions
	c.add("client_tax_id = ?", req.ClientTaxID)
	c.add("template_id = ?", req.TemplateID)
	from := make([]interface{}, len(req.From))
	for i, st := range req.From {
		from[i] = string(st)
	}
	c.in("status", from)
	if req.DueOnOrAfter != nil {
		c.add("due_date >= ?", model.FormatDate(*req.DueOnOrAfter))
	}

	args := append([]interface{}{req.To, time.Now().UTC()}, c.args...)
	res, err := s.db.ExecContext(ctx,
		"UPDATE assigned_tasks SET status = ?, updated_at = ?"+c.where(), args...)
	if err != nil {
		return 0, fmt.Errorf("transitioning tasks of %s/%d: %w", req.ClientTaxID, req.TemplateID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return int(n), nil
}

// SetAssignmentFolder records the deliverable folder reference of a task.
func (s *SQLiteStore) SetAssignmentFolder(ctx context.Context, id string, folderRef string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE assigned_tasks SET folder_ref = ?, updated_at = ? WHERE id = ?",
		folderRef, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("setting folder of task %s: %w", id, err)
	}
	return checkAffected(res, "task "+id)
}

var assignmentSortColumns = map[string]string{
	"due_date":      "assigned_tasks.due_date",
	"created_at":    "assigned_tasks.created_at",
	"updated_at":    "assigned_tasks.updated_at",
	"status":        "assigned_tasks.status",
	"client_tax_id": "assigned_tasks.client_tax_id",
}

// buildAssignmentQuery constructs the SQL query and args for an
// AssignmentFilter. Ordering and pagination are only applied when paged.
func buildAssignmentQuery(selectClause string, filter AssignmentFilter, paged bool) (string, []interface{}) {
	var c conditions
	from := " FROM assigned_tasks"
	if filter.Department != nil {
		from += " INNER JOIN task_templates ON task_templates.id = assigned_tasks.template_id"
		c.add("task_templates.department = ?", string(*filter.Department))
	}

	if filter.ClientTaxID != nil {
		c.add("assigned_tasks.client_tax_id = ?", *filter.ClientTaxID)
	}
	if filter.TemplateID != nil {
		c.add("assigned_tasks.template_id = ?", *filter.TemplateID)
	}
	if filter.OwnerID != nil {
		if *filter.OwnerID == "" {
			c.add("assigned_tasks.owner_id IS NULL")
		} else {
			c.add("assigned_tasks.owner_id = ?", *filter.OwnerID)
		}
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]interface{}, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		c.in("assigned_tasks.status", statuses)
	}
	if filter.DueFrom != nil {
		c.add("assigned_tasks.due_date >= ?", model.FormatDate(*filter.DueFrom))
	}
	if filter.DueTo != nil {
		c.add("assigned_tasks.due_date <= ?", model.FormatDate(*filter.DueTo))
	}
	if filter.OverdueAsOf != nil {
		c.add("assigned_tasks.due_date < ?", model.FormatDate(*filter.OverdueAsOf))
		c.add("assigned_tasks.status IN (?, ?)", string(model.StatusPending), string(model.StatusInProgress))
	}

	query := selectClause + from + c.where()
	if !paged {
		return query, c.args
	}

	sortCol, ok := assignmentSortColumns[filter.SortBy]
	if !ok {
		sortCol = assignmentSortColumns["due_date"]
	}
	dir := "ASC"
	if filter.SortDesc {
		dir = "DESC"
	}
	query += " ORDER BY " + sortCol + " " + dir + ", assigned_tasks.client_tax_id, assigned_tasks.template_id"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}
	return query, c.args
}
