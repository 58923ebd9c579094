package model

import (
	"fmt"
	"time"
)

// Client is a serviced company identified by its normalized tax ID (RUT).
type Client struct {
	TaxID     string  `json:"tax_id" db:"tax_id" validate:"required"`
	Name      string  `json:"name" db:"name" validate:"required,max=300"`
	Portfolio string  `json:"portfolio" db:"portfolio"`
	OwnerID   *string `json:"owner_id,omitempty" db:"owner_id"`

	// Active is false once the firm stops servicing the client.
	// Clients are never hard-deleted.
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (c Client) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("client %s: %w", c.TaxID, err)
	}
	return nil
}

// Agent is a staff member who can own clients and tasks.
type Agent struct {
	ID        string    `json:"id" db:"id" validate:"required"`
	Name      string    `json:"name" db:"name" validate:"required"`
	Email     string    `json:"email" db:"email" validate:"required,email"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (a Agent) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("agent %s: %w", a.Email, err)
	}
	return nil
}
