package routes

import (
	"github.com/gorilla/mux"

	"github.com/eGGnogSC/fsserver/internal/auth"
	"github.com/eGGnogSC/fsserver/internal/integration"
)

// RegisterQuickBooksAuthRoutes registers the OAuth connection flow. These
// stay outside the /api middleware so an operator can reconnect after the
// refresh token expires.
func RegisterQuickBooksAuthRoutes(router *mux.Router, handler *auth.Handler) {
	router.HandleFunc("/quickbooks/connect", handler.ConnectHandler).Methods("GET")
	router.HandleFunc("/quickbooks/callback", handler.CallbackHandler).Methods("GET")
	router.HandleFunc("/quickbooks/status", handler.StatusHandler).Methods("GET")
	router.HandleFunc("/quickbooks/disconnect", handler.DisconnectHandler).Methods("POST")
}

// RegisterIntegrationRoutes registers the sync endpoints on a subrouter that
// already enforces a live QuickBooks connection.
func RegisterIntegrationRoutes(router *mux.Router, handler *integration.Handler) {
	router.HandleFunc("/quickbooks/jobs/{id}/send", handler.SendJobHandler).Methods("POST")
	router.HandleFunc("/quickbooks/customers/{id}/sync", handler.SyncCustomerHandler).Methods("POST")
	router.HandleFunc("/quickbooks/invoices", handler.InvoicesHandler).Methods("GET")
	router.HandleFunc("/quickbooks/test-connection", handler.TestConnectionHandler).Methods("GET")
}
