// Package job defines local field-service jobs and their store.
package job

import (
	"context"
	"errors"
	"time"
)

// Status of a job in the local system.
type Status string

const (
	StatusQuoted     Status = "quoted"
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Job is a unit of field-service work for a customer, billed through its
// line items.
type Job struct {
	ID           string     `json:"id"`
	CustomerID   string     `json:"customer_id"`
	CustomerName string     `json:"customer_name"`
	Status       Status     `json:"status"`
	JobType      string     `json:"job_type"`
	Description  string     `json:"description"`
	QuotedAmount float64    `json:"quoted_amount"`
	ActualAmount *float64   `json:"actual_amount,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	TechnicianID string     `json:"technician_id,omitempty"`
	LineItems    []LineItem `json:"line_items"`
}

// LineItem is one billable piece of a job.
type LineItem struct {
	ID           string  `json:"id"`
	JobID        string  `json:"job_id"`
	Description  string  `json:"description"`
	MaterialCost float64 `json:"material_cost"`
	LaborHours   int     `json:"labor_hours"`
	LaborCost    float64 `json:"labor_cost"`
}

// Total is the line's billed amount.
func (li LineItem) Total() float64 {
	return li.MaterialCost + li.LaborCost
}

// TotalCost is the sum of the job's line item totals.
func (j *Job) TotalCost() float64 {
	var total float64
	for _, li := range j.LineItems {
		total += li.Total()
	}
	return total
}

// ErrNotFound is returned when a job id does not exist.
var ErrNotFound = errors.New("job not found")

// Store persists jobs. GetByID loads the job with its line items and the
// customer name, and returns ErrNotFound for unknown ids.
type Store interface {
	Create(ctx context.Context, j *Job) error
	GetByID(ctx context.Context, id string) (*Job, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Job, error)
}
