package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eGGnogSC/fsserver/internal/customer"
)

// Compile-time interface satisfaction check.
var _ customer.Store = (*CustomerRepo)(nil)

// CustomerRepo is the SQLite implementation of the customer store.
type CustomerRepo struct {
	db *DB
}

// NewCustomerRepo creates a new CustomerRepo.
func NewCustomerRepo(db *DB) *CustomerRepo {
	return &CustomerRepo{db: db}
}

// Create inserts a customer, generating an id when none is set.
func (r *CustomerRepo) Create(ctx context.Context, c *customer.Customer) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	const query = `INSERT INTO customers (id, name, email, phone, address, notes) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.Writer.ExecContext(ctx, query, c.ID, c.Name, c.Email, c.Phone, c.Address, c.Notes)
	if err != nil {
		return fmt.Errorf("create customer %q: %w", c.ID, err)
	}
	return nil
}

// GetByID retrieves a customer, returning customer.ErrNotFound for unknown ids.
func (r *CustomerRepo) GetByID(ctx context.Context, id string) (*customer.Customer, error) {
	const query = `SELECT id, name, email, phone, address, notes, quickbooks_id, quickbooks_synced_at
		FROM customers WHERE id = ?`

	c, err := scanCustomer(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customer.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get customer %q: %w", id, err)
	}
	return c, nil
}

// List returns all customers ordered by name.
func (r *CustomerRepo) List(ctx context.Context) ([]customer.Customer, error) {
	const query = `SELECT id, name, email, phone, address, notes, quickbooks_id, quickbooks_synced_at
		FROM customers ORDER BY name`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var customers []customer.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		customers = append(customers, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}

	return customers, nil
}

// SetRemoteID records the QuickBooks id and sync time for a customer.
func (r *CustomerRepo) SetRemoteID(ctx context.Context, id, quickbooksID string, syncedAt time.Time) error {
	const query = `UPDATE customers SET quickbooks_id = ?, quickbooks_synced_at = ? WHERE id = ?`
	res, err := r.db.Writer.ExecContext(ctx, query, quickbooksID, syncedAt.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("set remote id for customer %q: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set remote id for customer %q: %w", id, err)
	}
	if affected == 0 {
		return customer.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*customer.Customer, error) {
	var c customer.Customer
	var quickbooksID, syncedAt sql.NullString

	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Notes, &quickbooksID, &syncedAt); err != nil {
		return nil, err
	}

	if quickbooksID.Valid {
		c.QuickBooksID = quickbooksID.String
	}
	if syncedAt.Valid {
		t, err := time.Parse(time.RFC3339, syncedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse quickbooks_synced_at: %w", err)
		}
		c.QuickBooksSyncedAt = &t
	}

	return &c, nil
}
