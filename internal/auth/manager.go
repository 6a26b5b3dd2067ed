package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// freshnessMargin is how long before expiry a cached access token is already
// treated as stale. QuickBooks access tokens live an hour; refreshing five
// minutes early keeps in-flight API calls from racing the expiry.
const freshnessMargin = 5 * time.Minute

// FailureNotifier is alerted when a refresh fails permanently and an operator
// has to re-authenticate. Delivery is best effort.
type FailureNotifier interface {
	TokenRefreshFailed(ctx context.Context, cause error) error
}

// Manager owns the QuickBooks credential record and hands out currently valid
// access tokens, refreshing transparently when the cached token is stale.
//
// All reads and writes of the record happen under one mutex, and the refresh
// network call itself runs while the mutex is held: concurrent callers block
// behind a single refresh instead of each firing their own. Refreshes happen
// about once per token lifetime, so the added wait is negligible.
type Manager struct {
	config   OAuthConfig
	store    CredentialStore
	notifier FailureNotifier

	mu    sync.Mutex
	creds Credentials

	httpClient *http.Client
	now        func() time.Time
}

// NewManager creates a token manager seeded with the given credential record.
// store persists refreshed tokens and may be a MemoryStore; notifier may be
// nil to disable refresh-failure alerting.
func NewManager(config OAuthConfig, seed Credentials, store CredentialStore, notifier FailureNotifier) *Manager {
	return &Manager{
		config:     config,
		store:      store,
		notifier:   notifier,
		creds:      seed,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

// AccessToken returns a currently valid access token, refreshing it first if
// the cached one is absent or within the freshness margin of expiry. Errors
// wrap ErrNoCredentials, ErrRefreshRejected or ErrRefreshUnavailable.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.creds.AccessToken == "" && m.creds.RefreshToken == "" {
		return "", ErrNoCredentials
	}

	if m.creds.AccessToken != "" && m.now().Before(m.creds.ExpiresAt.Add(-freshnessMargin)) {
		return m.creds.AccessToken, nil
	}

	if err := m.refreshLocked(ctx); err != nil {
		return "", err
	}

	return m.creds.AccessToken, nil
}

// RealmID returns the company id the current credentials are bound to.
func (m *Manager) RealmID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds.RealmID
}

// Credentials returns a copy of the current credential record, for status
// reporting. The copy is a snapshot; it is not kept in sync.
func (m *Manager) Credentials() Credentials {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds
}

// ConnectionOK reports whether a valid access token can currently be
// produced. Any failure counts as "not connected".
func (m *Manager) ConnectionOK(ctx context.Context) bool {
	token, err := m.AccessToken(ctx)
	if err != nil {
		log.Printf("QuickBooks connection check failed: %v", err)
		return false
	}
	return token != ""
}

// refreshLocked exchanges the refresh token for a new access token. The
// caller must hold m.mu. On success the credential record is replaced
// atomically and persisted best-effort; on failure it is left untouched.
func (m *Manager) refreshLocked(ctx context.Context) error {
	if m.creds.RefreshToken == "" {
		return fmt.Errorf("no refresh token available: %w", ErrNoCredentials)
	}

	log.Printf("Access token stale, refreshing")

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", m.creds.RefreshToken)

	token, err := m.executeTokenRequest(ctx, data)
	if err != nil {
		if errors.Is(err, ErrRefreshRejected) {
			m.notifyRefreshFailure(err)
		}
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	m.creds.AccessToken = token.AccessToken
	m.creds.ExpiresAt = m.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	// QuickBooks rotates refresh tokens; keep the old one if none came back.
	if token.RefreshToken != "" {
		m.creds.RefreshToken = token.RefreshToken
	}

	m.persistLocked(ctx)

	log.Printf("Successfully refreshed access token, valid until %s", m.creds.ExpiresAt.Format(time.RFC3339))
	return nil
}

// Exchange trades an authorization code from the OAuth callback for a fresh
// credential record, replacing whatever was held before.
func (m *Manager) Exchange(ctx context.Context, code, realmID string) error {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", m.config.RedirectURI)

	token, err := m.executeTokenRequest(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.creds = Credentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    m.now().Add(time.Duration(token.ExpiresIn) * time.Second),
		RealmID:      realmID,
	}

	m.persistLocked(ctx)
	return nil
}

// AuthorizationURL builds the QuickBooks consent page URL for the given
// anti-forgery state.
func (m *Manager) AuthorizationURL(state string) string {
	u, _ := url.Parse(m.config.AuthURL)
	q := u.Query()

	q.Set("client_id", m.config.ClientID)
	q.Set("response_type", "code")
	q.Set("scope", m.config.Scope)
	q.Set("redirect_uri", m.config.RedirectURI)
	q.Set("state", state)

	u.RawQuery = q.Encode()
	return u.String()
}

// Disconnect revokes both tokens with QuickBooks and clears the credential
// record and store.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.creds.AccessToken != "" {
		if err := m.revokeToken(ctx, m.creds.AccessToken); err != nil {
			return err
		}
	}
	if m.creds.RefreshToken != "" {
		if err := m.revokeToken(ctx, m.creds.RefreshToken); err != nil {
			return err
		}
	}

	m.creds = Credentials{}
	if err := m.store.Delete(ctx); err != nil {
		return fmt.Errorf("failed to clear credential store: %w", err)
	}

	return nil
}

// persistLocked writes the current record to the credential store. Losing the
// write is survivable (the next refresh recreates it), so failures only log.
func (m *Manager) persistLocked(ctx context.Context) {
	creds := m.creds
	if err := m.store.Save(ctx, &creds); err != nil {
		log.Printf("Warning: failed to persist refreshed credentials: %v", err)
	}
}

// executeTokenRequest performs a form-encoded, basic-auth POST against the
// token endpoint and classifies failures into the sentinel errors.
func (m *Manager) executeTokenRequest(ctx context.Context, data url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}

	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Add("Accept", "application/json")
	req.SetBasicAuth(m.config.ClientID, m.config.ClientSecret)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w: %v", ErrRefreshUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("token endpoint returned status %d: %w", resp.StatusCode, ErrRefreshUnavailable)
		}

		var terr tokenError
		if jsonErr := json.Unmarshal(body, &terr); jsonErr == nil && terr.Error != "" {
			return nil, fmt.Errorf("token endpoint rejected request (%s): %s: %w", terr.Error, terr.Description, ErrRefreshRejected)
		}
		return nil, fmt.Errorf("token endpoint returned status %d: %s: %w", resp.StatusCode, body, ErrRefreshRejected)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	return &token, nil
}

// revokeToken revokes a single token with QuickBooks. Caller holds m.mu.
func (m *Manager) revokeToken(ctx context.Context, token string) error {
	data := url.Values{}
	data.Set("token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.APIBaseURL+"/oauth2/v1/tokens/revoke", strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create revoke request: %w", err)
	}

	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(m.config.ClientID, m.config.ClientSecret)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("revoke request failed with status %d: %s", resp.StatusCode, body)
	}

	return nil
}

// notifyRefreshFailure alerts the notifier in a detached goroutine. The
// caller's error path is never blocked or altered; notifier errors and panics
// are logged and dropped.
func (m *Manager) notifyRefreshFailure(cause error) {
	if m.notifier == nil {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Panic in refresh-failure notifier: %v", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := m.notifier.TokenRefreshFailed(ctx, cause); err != nil {
			log.Printf("Failed to deliver token refresh alert: %v", err)
		}
	}()
}
