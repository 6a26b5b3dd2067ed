package auth

import (
	"errors"
	"net/http"
)

// RequireConnection gates a route on a usable QuickBooks connection: a valid
// access token must be obtainable and a realm must be bound. Permanent
// credential failures answer 401 with a reconnect hint; transient failures
// answer 503 so clients retry.
func RequireConnection(manager *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, err := manager.AccessToken(r.Context())
			if err != nil {
				if errors.Is(err, ErrRefreshUnavailable) {
					http.Error(w, "QuickBooks temporarily unavailable, retry later", http.StatusServiceUnavailable)
					return
				}
				http.Error(w, "QuickBooks authentication required, visit /quickbooks/connect", http.StatusUnauthorized)
				return
			}

			if manager.RealmID() == "" {
				http.Error(w, "QuickBooks company not connected", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
