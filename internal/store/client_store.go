package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/obligations/internal/model"
)

const clientColumns = "tax_id, name, portfolio, owner_id, active, created_at, updated_at"

// CreateClient inserts a new client. The tax ID must already be normalized.
func (s *SQLiteStore) CreateClient(ctx context.Context, c model.Client) error {
	if err := c.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (tax_id, name, portfolio, owner_id, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.TaxID, c.Name, c.Portfolio, c.OwnerID, boolToInt(c.Active), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("creating client %s: %w", c.TaxID, ErrDuplicate)
		}
		return fmt.Errorf("creating client %s: %w", c.TaxID, err)
	}
	return nil
}

// GetClient retrieves a single client by tax ID.
func (s *SQLiteStore) GetClient(ctx context.Context, taxID string) (*model.Client, error) {
	var c model.Client
	err := s.db.GetContext(ctx, &c,
		"SELECT "+clientColumns+" FROM clients WHERE tax_id = ?", taxID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %s: %w", taxID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting client %s: %w", taxID, err)
	}
	return &c, nil
}

// ListClients retrieves clients matching the filter ordered by name.
func (s *SQLiteStore) ListClients(ctx context.Context, filter ClientFilter) ([]model.Client, error) {
	var c conditions
	if filter.Portfolio != nil {
		c.add("portfolio = ?", *filter.Portfolio)
	}
	if filter.OwnerID != nil {
		c.add("owner_id = ?", *filter.OwnerID)
	}
	if filter.ActiveOnly {
		c.add("active = 1")
	}
	if filter.Query != nil && strings.TrimSpace(*filter.Query) != "" {
		q := "%" + strings.TrimSpace(*filter.Query) + "%"
		c.add("(name LIKE ? OR tax_id LIKE ?)", q, q)
	}
	c.in("tax_id", stringArgs(filter.TaxIDs))

	query := "SELECT " + clientColumns + " FROM clients" + c.where() + " ORDER BY name, tax_id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	var clients []model.Client
	if err := s.db.SelectContext(ctx, &clients, query, c.args...); err != nil {
		return nil, fmt.Errorf("querying clients: %w", err)
	}
	return clients, nil
}

// SetClientOwner replaces the client's owning agent. A nil ownerID
// leaves the client unassigned.
func (s *SQLiteStore) SetClientOwner(ctx context.Context, taxID string, ownerID *string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE clients SET owner_id = ?, updated_at = ? WHERE tax_id = ?",
		ownerID, time.Now().UTC(), taxID)
	if err != nil {
		return fmt.Errorf("setting owner of client %s: %w", taxID, err)
	}
	return checkAffected(res, "client "+taxID)
}

// DeactivateClient marks a client as no longer serviced.
func (s *SQLiteStore) DeactivateClient(ctx context.Context, taxID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE clients SET active = 0, updated_at = ? WHERE tax_id = ?",
		time.Now().UTC(), taxID)
	if err != nil {
		return fmt.Errorf("deactivating client %s: %w", taxID, err)
	}
	return checkAffected(res, "client "+taxID)
}

// CreateAgent inserts a new agent. Generates a UUID if ID is empty.
func (s *SQLiteStore) CreateAgent(ctx context.Context, a model.Agent) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if err := a.Validate(); err != nil {
		return err
	}
	a.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO agents (id, name, email, active, created_at) VALUES (?, ?, ?, ?, ?)",
		a.ID, a.Name, strings.TrimSpace(a.Email), boolToInt(a.Active), a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("creating agent %s: %w", a.Email, ErrDuplicate)
		}
		return fmt.Errorf("creating agent %s: %w", a.Email, err)
	}
	return nil
}

// GetAgent retrieves an agent by ID.
func (s *SQLiteStore) GetAgent(ctx context.Context, id string) (*model.Agent, error) {
	var a model.Agent
	err := s.db.GetContext(ctx, &a,
		"SELECT id, name, email, active, created_at FROM agents WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("agent %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting agent %s: %w", id, err)
	}
	return &a, nil
}

// GetAgentByEmail retrieves an agent by email, case-insensitively.
func (s *SQLiteStore) GetAgentByEmail(ctx context.Context, email string) (*model.Agent, error) {
	email = strings.TrimSpace(email)
	var a model.Agent
	err := s.db.GetContext(ctx, &a,
		"SELECT id, name, email, active, created_at FROM agents WHERE email = ? COLLATE NOCASE", email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("agent %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting agent %s: %w", email, err)
	}
	return &a, nil
}
