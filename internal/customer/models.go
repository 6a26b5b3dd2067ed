// Package customer defines local customer records and their store.
package customer

import (
	"context"
	"errors"
	"time"
)

// Customer is a local field-service customer. QuickBooksID is set the first
// time the customer is synced to QuickBooks and is never cleared or
// regenerated afterwards; a non-empty value means "already synchronized".
type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Notes   string `json:"notes"`

	QuickBooksID       string     `json:"quickbooks_id,omitempty"`
	QuickBooksSyncedAt *time.Time `json:"quickbooks_synced_at,omitempty"`
}

// Synced reports whether the customer already has a QuickBooks counterpart.
func (c *Customer) Synced() bool {
	return c.QuickBooksID != ""
}

// ErrNotFound is returned when a customer id does not exist.
var ErrNotFound = errors.New("customer not found")

// Store persists customers. GetByID returns ErrNotFound for unknown ids.
type Store interface {
	Create(ctx context.Context, c *Customer) error
	GetByID(ctx context.Context, id string) (*Customer, error)
	List(ctx context.Context) ([]Customer, error)
	// SetRemoteID records the QuickBooks id and sync time on the customer.
	SetRemoteID(ctx context.Context, id, quickbooksID string, syncedAt time.Time) error
}
