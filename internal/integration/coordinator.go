// Package integration sends local billing data to QuickBooks, lazily syncing
// customers on first use.
package integration

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/eGGnogSC/fsserver/internal/customer"
	"github.com/eGGnogSC/fsserver/internal/job"
	"github.com/eGGnogSC/fsserver/pkg/qbclient"
)

// TokenSource produces currently valid access tokens and the realm they are
// bound to. Satisfied by *auth.Manager.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	RealmID() string
}

// RemoteClient is the slice of the QuickBooks API the coordinator needs.
// Satisfied by *qbclient.Client.
type RemoteClient interface {
	CreateCustomer(ctx context.Context, token, realmID, name, email, phone string) (string, error)
	CreateInvoice(ctx context.Context, token, realmID string, job qbclient.JobRequest) (string, error)
	CreateEstimate(ctx context.Context, token, realmID string, job qbclient.JobRequest) (string, error)
	TestConnection(ctx context.Context, token, realmID string) (bool, error)
	ListInvoices(ctx context.Context, token, realmID string) ([]qbclient.Invoice, error)
}

// Coordinator guarantees a QuickBooks counterpart exists for a local customer
// before billing against it, and fails the whole operation when any step
// fails: no invoice or estimate is ever created for an un-synced customer,
// and no retry queue is kept.
type Coordinator struct {
	tokens    TokenSource
	remote    RemoteClient
	customers customer.Store
	jobs      job.Store
	now       func() time.Time
}

// NewCoordinator creates a sync coordinator.
func NewCoordinator(tokens TokenSource, remote RemoteClient, customers customer.Store, jobs job.Store) *Coordinator {
	return &Coordinator{
		tokens:    tokens,
		remote:    remote,
		customers: customers,
		jobs:      jobs,
		now:       time.Now,
	}
}

// EnsureCustomerSynced returns the QuickBooks id for the local customer,
// creating the remote customer on first use and persisting the returned id.
// A customer that already carries a QuickBooks id is returned as-is with no
// network calls. On any failure the local record is left without a remote id
// so a later attempt retries the creation.
//
// Two concurrent calls for the same un-synced customer can both create a
// remote customer; the second persisted id wins. Accepted for now: job sends
// for one customer are rare enough that serializing them is not worth a
// per-customer lock.
func (c *Coordinator) EnsureCustomerSynced(ctx context.Context, customerID string) (string, error) {
	local, err := c.customers.GetByID(ctx, customerID)
	if err != nil {
		return "", fmt.Errorf("failed to load customer %q: %w", customerID, err)
	}

	if local.Synced() {
		return local.QuickBooksID, nil
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to sync customer %q: %w", customerID, err)
	}

	quickbooksID, err := c.remote.CreateCustomer(ctx, token, c.tokens.RealmID(), local.Name, local.Email, local.Phone)
	if err != nil {
		return "", fmt.Errorf("failed to create customer %q in QuickBooks: %w", local.Name, err)
	}

	if err := c.customers.SetRemoteID(ctx, customerID, quickbooksID, c.now()); err != nil {
		return "", fmt.Errorf("failed to persist QuickBooks id for customer %q: %w", customerID, err)
	}

	log.Printf("Synced customer %s to QuickBooks as %s", customerID, quickbooksID)
	return quickbooksID, nil
}

// SendJob bills a job to QuickBooks as an invoice (or an estimate when
// asInvoice is false) and returns the QuickBooks-assigned id. The job's
// customer is synced first; any failure along the way aborts the send. The
// job record itself is never mutated.
func (c *Coordinator) SendJob(ctx context.Context, jobID string, asInvoice bool) (string, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to send job %q: %w", jobID, err)
	}

	j, err := c.jobs.GetByID(ctx, jobID)
	if err != nil {
		return "", fmt.Errorf("failed to load job %q: %w", jobID, err)
	}

	quickbooksID, err := c.EnsureCustomerSynced(ctx, j.CustomerID)
	if err != nil {
		return "", fmt.Errorf("failed to send job %q: %w", jobID, err)
	}

	request := buildJobRequest(j, quickbooksID, c.now())

	realmID := c.tokens.RealmID()
	if asInvoice {
		id, err := c.remote.CreateInvoice(ctx, token, realmID, request)
		if err != nil {
			return "", fmt.Errorf("failed to create invoice for job %q: %w", jobID, err)
		}
		return id, nil
	}

	id, err := c.remote.CreateEstimate(ctx, token, realmID, request)
	if err != nil {
		return "", fmt.Errorf("failed to create estimate for job %q: %w", jobID, err)
	}
	return id, nil
}

// TestConnection reports whether QuickBooks is reachable with the current
// credentials. Any failure counts as "not connected".
func (c *Coordinator) TestConnection(ctx context.Context) bool {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return false
	}

	ok, err := c.remote.TestConnection(ctx, token, c.tokens.RealmID())
	if err != nil {
		log.Printf("QuickBooks connection test failed: %v", err)
		return false
	}
	return ok
}

// ListInvoices returns recent QuickBooks invoices.
func (c *Coordinator) ListInvoices(ctx context.Context) ([]qbclient.Invoice, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	invoices, err := c.remote.ListInvoices(ctx, token, c.tokens.RealmID())
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

// buildJobRequest maps a local job to the QuickBooks request view. Line items
// map 1:1; the total is the sum of line item costs.
func buildJobRequest(j *job.Job, quickbooksCustomerID string, now time.Time) qbclient.JobRequest {
	jobDate := now
	if j.ScheduledAt != nil {
		jobDate = *j.ScheduledAt
	}

	request := qbclient.JobRequest{
		RemoteCustomerID: quickbooksCustomerID,
		CustomerName:     j.CustomerName,
		JobType:          j.JobType,
		Description:      j.Description,
		TotalAmount:      j.TotalCost(),
		JobDate:          jobDate,
	}

	for _, li := range j.LineItems {
		request.LineItems = append(request.LineItems, qbclient.LineItemRequest{
			Description: li.Description,
			Quantity:    1,
			UnitCost:    li.Total(),
			Total:       li.Total(),
		})
	}

	return request
}
