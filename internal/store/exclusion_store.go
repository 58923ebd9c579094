package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/obligations/internal/model"
)

// exclusionRow mirrors client_exclusions; effective_from is stored as a
// plain date string.
type exclusionRow struct {
	ID            string    `db:"id"`
	ClientTaxID   string    `db:"client_tax_id"`
	TemplateID    int64     `db:"template_id"`
	Excluded      bool      `db:"is_excluded"`
	EffectiveFrom *string   `db:"effective_from"`
	Reason        string    `db:"reason"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r exclusionRow) toModel() (model.ClientExclusion, error) {
	e := model.ClientExclusion{
		ID:          r.ID,
		ClientTaxID: r.ClientTaxID,
		TemplateID:  r.TemplateID,
		Excluded:    r.Excluded,
		Reason:      r.Reason,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.EffectiveFrom != nil && *r.EffectiveFrom != "" {
		d, err := model.ParseDate(*r.EffectiveFrom)
		if err != nil {
			return model.ClientExclusion{}, fmt.Errorf("parsing effective_from of exclusion %s: %w", r.ID, err)
		}
		e.EffectiveFrom = &d
	}
	return e, nil
}

const exclusionColumns = `id, client_tax_id, template_id, is_excluded, effective_from, reason,
	created_at, updated_at`

// GetExclusion retrieves the record for a (client, template) pair.
func (s *SQLiteStore) GetExclusion(ctx context.Context, clientTaxID string, templateID int64) (*model.ClientExclusion, error) {
	var row exclusionRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+exclusionColumns+" FROM client_exclusions WHERE client_tax_id = ? AND template_id = ?",
		clientTaxID, templateID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("exclusion %s/%d: %w", clientTaxID, templateID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting exclusion %s/%d: %w", clientTaxID, templateID, err)
	}
	e, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListExclusions retrieves exclusion records matching the filter.
func (s *SQLiteStore) ListExclusions(ctx context.Context, filter ExclusionFilter) ([]model.ClientExclusion, error) {
	var c conditions
	c.in("client_tax_id", stringArgs(filter.ClientTaxIDs))
	c.in("template_id", int64Args(filter.TemplateIDs))
	if filter.ExcludedOnly {
		c.add("is_excluded = 1")
	}

	var rows []exclusionRow
	query := "SELECT " + exclusionColumns + " FROM client_exclusions" + c.where() +
		" ORDER BY client_tax_id, template_id"
	if err := s.db.SelectContext(ctx, &rows, query, c.args...); err != nil {
		return nil, fmt.Errorf("querying exclusions: %w", err)
	}

	out := make([]model.ClientExclusion, 0, len(rows))
	for _, r := range rows {
		e, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// UpsertExclusion inserts or updates the record for the pair and returns
// the stored version.
func (s *SQLiteStore) UpsertExclusion(ctx context.Context, e model.ClientExclusion) (*model.ClientExclusion, error) {
	if e.ClientTaxID == "" || e.TemplateID <= 0 {
		return nil, fmt.Errorf("exclusion requires a client and a template")
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	var effective *string
	if e.EffectiveFrom != nil {
		d := model.FormatDate(*e.EffectiveFrom)
		effective = &d
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO client_exclusions (
			id, client_tax_id, template_id, is_excluded, effective_from, reason, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_tax_id, template_id) DO UPDATE SET
			is_excluded = excluded.is_excluded,
			effective_from = excluded.effective_from,
			reason = excluded.reason,
			updated_at = excluded.updated_at`,
		e.ID, e.ClientTaxID, e.TemplateID, boolToInt(e.Excluded), effective, e.Reason, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting exclusion %s/%d: %w", e.ClientTaxID, e.TemplateID, err)
	}
	return s.GetExclusion(ctx, e.ClientTaxID, e.TemplateID)
}
