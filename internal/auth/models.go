package auth

import (
	"context"
	"errors"
	"time"
)

// Credentials is the current QuickBooks credential record: the short-lived
// access token, the refresh token used to obtain new access tokens, and the
// company (realm) the tokens are bound to. The Manager owns the one live
// instance; nothing else mutates it.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	RealmID      string    `json:"realm_id"`
}

// CredentialStore persists the credential record across restarts. There is a
// single record per deployment; Load returns (nil, nil) when none is stored.
type CredentialStore interface {
	Load(ctx context.Context) (*Credentials, error)
	Save(ctx context.Context, creds *Credentials) error
	Delete(ctx context.Context) error
}

// OAuthConfig holds OAuth 2.0 configuration for the QuickBooks app.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scope        string
	AuthURL      string
	TokenURL     string
	APIBaseURL   string
}

// Sentinel errors for the token lifecycle. Callers distinguish them with
// errors.Is to decide between "reconnect required" and "retry later".
var (
	// ErrNoCredentials means no access or refresh token is configured at
	// all. This is a configuration problem, not a transient one.
	ErrNoCredentials = errors.New("quickbooks credentials not configured")

	// ErrRefreshRejected means the token endpoint rejected the refresh
	// token (invalid_grant or similar). Re-authentication is required.
	ErrRefreshRejected = errors.New("quickbooks refresh token rejected")

	// ErrRefreshUnavailable means the token endpoint could not be reached
	// or answered with a server error. Safe to retry later.
	ErrRefreshUnavailable = errors.New("quickbooks token endpoint unavailable")
)

// tokenResponse is the JSON body returned by the QuickBooks token endpoint.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// tokenError is the JSON body returned by the token endpoint on failure.
type tokenError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}
