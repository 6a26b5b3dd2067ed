package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eGGnogSC/fsserver/internal/job"
)

// Compile-time interface satisfaction check.
var _ job.Store = (*JobRepo)(nil)

// JobRepo is the SQLite implementation of the job store.
type JobRepo struct {
	db *DB
}

// NewJobRepo creates a new JobRepo.
func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

// Create inserts a job and its line items in one transaction.
func (r *JobRepo) Create(ctx context.Context, j *job.Job) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	if j.Status == "" {
		j.Status = job.StatusQuoted
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create job %q: %w", j.ID, err)
	}
	defer tx.Rollback()

	const insertJob = `INSERT INTO jobs
		(id, customer_id, status, job_type, description, quoted_amount, actual_amount,
		 created_at, scheduled_at, completed_at, technician_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, insertJob,
		j.ID, j.CustomerID, j.Status, j.JobType, j.Description, j.QuotedAmount,
		nullFloat(j.ActualAmount), j.CreatedAt.Format(time.RFC3339),
		nullTime(j.ScheduledAt), nullTime(j.CompletedAt), nullString(j.TechnicianID))
	if err != nil {
		return fmt.Errorf("create job %q: %w", j.ID, err)
	}

	const insertLine = `INSERT INTO line_items (id, job_id, description, material_cost, labor_hours, labor_cost)
		VALUES (?, ?, ?, ?, ?, ?)`
	for i := range j.LineItems {
		li := &j.LineItems[i]
		if li.ID == "" {
			li.ID = uuid.NewString()
		}
		li.JobID = j.ID
		if _, err := tx.ExecContext(ctx, insertLine, li.ID, li.JobID, li.Description, li.MaterialCost, li.LaborHours, li.LaborCost); err != nil {
			return fmt.Errorf("create line item %q: %w", li.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create job %q: %w", j.ID, err)
	}
	return nil
}

// GetByID loads a job with its customer name and line items, returning
// job.ErrNotFound for unknown ids.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*job.Job, error) {
	const query = `SELECT j.id, j.customer_id, c.name, j.status, j.job_type, j.description,
			j.quoted_amount, j.actual_amount, j.created_at, j.scheduled_at, j.completed_at, j.technician_id
		FROM jobs j JOIN customers c ON c.id = j.customer_id
		WHERE j.id = ?`

	j, err := scanJob(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, job.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %q: %w", id, err)
	}

	if err := r.loadLineItems(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// ListByCustomer returns a customer's jobs, newest first, with line items.
func (r *JobRepo) ListByCustomer(ctx context.Context, customerID string) ([]job.Job, error) {
	const query = `SELECT j.id, j.customer_id, c.name, j.status, j.job_type, j.description,
			j.quoted_amount, j.actual_amount, j.created_at, j.scheduled_at, j.completed_at, j.technician_id
		FROM jobs j JOIN customers c ON c.id = j.customer_id
		WHERE j.customer_id = ?
		ORDER BY j.created_at DESC`

	rows, err := r.db.Reader.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("list jobs for customer %q: %w", customerID, err)
	}
	defer rows.Close()

	var jobs []job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}

	for i := range jobs {
		if err := r.loadLineItems(ctx, &jobs[i]); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

func (r *JobRepo) loadLineItems(ctx context.Context, j *job.Job) error {
	const query = `SELECT id, job_id, description, material_cost, labor_hours, labor_cost
		FROM line_items WHERE job_id = ? ORDER BY id`

	rows, err := r.db.Reader.QueryContext(ctx, query, j.ID)
	if err != nil {
		return fmt.Errorf("load line items for job %q: %w", j.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var li job.LineItem
		if err := rows.Scan(&li.ID, &li.JobID, &li.Description, &li.MaterialCost, &li.LaborHours, &li.LaborCost); err != nil {
			return fmt.Errorf("scan line item: %w", err)
		}
		j.LineItems = append(j.LineItems, li)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate line items: %w", err)
	}
	return nil
}

func scanJob(row rowScanner) (*job.Job, error) {
	var j job.Job
	var actualAmount sql.NullFloat64
	var createdAt string
	var scheduledAt, completedAt, technicianID sql.NullString

	err := row.Scan(&j.ID, &j.CustomerID, &j.CustomerName, &j.Status, &j.JobType, &j.Description,
		&j.QuotedAmount, &actualAmount, &createdAt, &scheduledAt, &completedAt, &technicianID)
	if err != nil {
		return nil, err
	}

	j.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	if actualAmount.Valid {
		j.ActualAmount = &actualAmount.Float64
	}
	if technicianID.Valid {
		j.TechnicianID = technicianID.String
	}
	if scheduledAt.Valid {
		t, err := time.Parse(time.RFC3339, scheduledAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse scheduled_at: %w", err)
		}
		j.ScheduledAt = &t
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		j.CompletedAt = &t
	}

	return &j, nil
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
