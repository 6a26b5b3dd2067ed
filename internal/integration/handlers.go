package integration

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/eGGnogSC/fsserver/internal/auth"
	"github.com/eGGnogSC/fsserver/internal/customer"
	"github.com/eGGnogSC/fsserver/internal/job"
)

// Handler provides HTTP handlers for the QuickBooks integration surface.
type Handler struct {
	coordinator *Coordinator
}

// NewHandler creates a new integration handler.
func NewHandler(coordinator *Coordinator) *Handler {
	return &Handler{coordinator: coordinator}
}

// sendJobRequest is the POST body for SendJobHandler. AsInvoice defaults to
// true when the body is empty.
type sendJobRequest struct {
	AsInvoice *bool `json:"as_invoice"`
}

// SendJobHandler sends a job to QuickBooks as an invoice or estimate.
func (h *Handler) SendJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	asInvoice := true
	var body sendJobRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.AsInvoice != nil {
		asInvoice = *body.AsInvoice
	}

	quickbooksID, err := h.coordinator.SendJob(r.Context(), jobID, asInvoice)
	if err != nil {
		h.writeError(w, err)
		return
	}

	kind := "invoice"
	if !asInvoice {
		kind = "estimate"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":        "success",
		"type":          kind,
		"quickbooks_id": quickbooksID,
	})
}

// SyncCustomerHandler ensures a customer exists in QuickBooks.
func (h *Handler) SyncCustomerHandler(w http.ResponseWriter, r *http.Request) {
	customerID := mux.Vars(r)["id"]

	quickbooksID, err := h.coordinator.EnsureCustomerSynced(r.Context(), customerID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":        "success",
		"quickbooks_id": quickbooksID,
	})
}

// InvoicesHandler lists recent QuickBooks invoices.
func (h *Handler) InvoicesHandler(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.coordinator.ListInvoices(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"invoices": invoices,
	})
}

// TestConnectionHandler reports whether QuickBooks is reachable.
func (h *Handler) TestConnectionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"connected": h.coordinator.TestConnection(r.Context()),
	})
}

// writeError maps coordinator errors onto HTTP statuses precise enough for a
// client to tell "fix your request" from "reconnect" from "retry later".
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, customer.ErrNotFound), errors.Is(err, job.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, auth.ErrNoCredentials), errors.Is(err, auth.ErrRefreshRejected):
		http.Error(w, "QuickBooks authentication required, visit /quickbooks/connect", http.StatusUnauthorized)
	case errors.Is(err, auth.ErrRefreshUnavailable):
		http.Error(w, "QuickBooks temporarily unavailable, retry later", http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
