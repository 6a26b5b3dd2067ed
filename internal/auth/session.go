package auth

import (
	"net/http"

	"github.com/gorilla/sessions"
)

// NewSessionStore builds the cookie store used to carry OAuth state across
// the connect redirect.
func NewSessionStore(secret []byte) *sessions.CookieStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   3600, // State only needs to survive the consent redirect.
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}
