// Package routes maps URL paths onto handlers.
package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/eGGnogSC/fsserver/internal/auth"
	"github.com/eGGnogSC/fsserver/internal/integration"
)

// SetupRoutes configures the router. OAuth flow endpoints are public;
// the /api routes require a live QuickBooks connection.
func SetupRoutes(
	router *mux.Router,
	manager *auth.Manager,
	authHandler *auth.Handler,
	integrationHandler *integration.Handler,
) {
	RegisterQuickBooksAuthRoutes(router, authHandler)

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(auth.RequireConnection(manager))
	RegisterIntegrationRoutes(apiRouter, integrationHandler)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")
}
