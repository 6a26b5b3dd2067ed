package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

// Handler provides HTTP handlers for the QuickBooks connect flow.
type Handler struct {
	manager  *Manager
	sessions *sessions.CookieStore
}

// NewHandler creates a new auth handler.
func NewHandler(manager *Manager, sessionStore *sessions.CookieStore) *Handler {
	return &Handler{
		manager:  manager,
		sessions: sessionStore,
	}
}

// generateState creates a secure random state for OAuth.
func (h *Handler) generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// ConnectHandler initiates the QuickBooks authorization flow.
func (h *Handler) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	state, err := h.generateState()
	if err != nil {
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}

	// Save state in session for verification on callback
	session := h.session(r)
	session.Values["qb_state"] = state
	session.Values["qb_state_expiry"] = time.Now().Add(10 * time.Minute).Unix()
	if err := session.Save(r, w); err != nil {
		http.Error(w, "Failed to save session", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, h.manager.AuthorizationURL(state), http.StatusFound)
}

// CallbackHandler handles the OAuth callback from QuickBooks, exchanging the
// authorization code for a credential record bound to the callback's realm.
func (h *Handler) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code := query.Get("code")
	state := query.Get("state")
	realmID := query.Get("realmId")

	if code == "" || state == "" {
		http.Error(w, "Invalid callback parameters", http.StatusBadRequest)
		return
	}

	session := h.session(r)
	savedState, ok := session.Values["qb_state"].(string)
	if !ok || savedState != state {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	expiry, ok := session.Values["qb_state_expiry"].(int64)
	if !ok || time.Now().Unix() > expiry {
		http.Error(w, "State parameter expired", http.StatusBadRequest)
		return
	}

	delete(session.Values, "qb_state")
	delete(session.Values, "qb_state_expiry")
	if err := session.Save(r, w); err != nil {
		http.Error(w, "Failed to save session", http.StatusInternalServerError)
		return
	}

	if err := h.manager.Exchange(r.Context(), code, realmID); err != nil {
		http.Error(w, "Failed to exchange code for token: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "success",
		"realm_id": realmID,
	})
}

// DisconnectHandler revokes QuickBooks tokens and clears the stored record.
func (h *Handler) DisconnectHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Disconnect(r.Context()); err != nil {
		http.Error(w, "Failed to disconnect: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "success",
	})
}

// StatusHandler returns the connection status.
func (h *Handler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	creds := h.manager.Credentials()
	if creds.AccessToken == "" && creds.RefreshToken == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"connected": false,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connected":  true,
		"realm_id":   creds.RealmID,
		"expires_at": creds.ExpiresAt,
	})
}

func (h *Handler) session(r *http.Request) *sessions.Session {
	session, _ := h.sessions.Get(r, "qb-auth-session")
	return session
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
