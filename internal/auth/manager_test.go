package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingNotifier counts refresh-failure alerts and signals on delivery so
// tests can wait for the detached notifier goroutine.
type recordingNotifier struct {
	mu        sync.Mutex
	calls     int
	delivered chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{delivered: make(chan struct{}, 8)}
}

func (n *recordingNotifier) TokenRefreshFailed(ctx context.Context, cause error) error {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
	n.delivered <- struct{}{}
	return nil
}

func (n *recordingNotifier) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func (n *recordingNotifier) waitForDelivery(t *testing.T) {
	t.Helper()
	select {
	case <-n.delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("notifier was not invoked")
	}
}

// newTestManager wires a Manager against an httptest token endpoint and
// returns it with the endpoint's request counter.
func newTestManager(t *testing.T, seed Credentials, notifier FailureNotifier, handler http.HandlerFunc) (*Manager, *int64) {
	t.Helper()

	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	config := OAuthConfig{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		TokenURL:     server.URL,
		APIBaseURL:   server.URL,
	}

	return NewManager(config, seed, NewMemoryStore(), notifier), &requests
}

func refreshSuccess(accessToken, refreshToken string, expiresIn int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"refresh_token":%q,"token_type":"bearer","expires_in":%d}`,
			accessToken, refreshToken, expiresIn)
	}
}

func TestAccessTokenUsesFreshCachedToken(t *testing.T) {
	seed := Credentials{
		AccessToken:  "T1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	manager, requests := newTestManager(t, seed, nil, refreshSuccess("T2", "R2", 3600))

	token, err := manager.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T1", token)
	assert.EqualValues(t, 0, atomic.LoadInt64(requests), "fresh token must not trigger a network call")
}

func TestAccessTokenRefreshesExpiredToken(t *testing.T) {
	seed := Credentials{
		AccessToken:  "T1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Add(-time.Minute),
		RealmID:      "realm-1",
	}
	manager, requests := newTestManager(t, seed, nil, refreshSuccess("T2", "", 3600))

	before := time.Now()
	token, err := manager.AccessToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "T2", token)
	assert.EqualValues(t, 1, atomic.LoadInt64(requests))

	creds := manager.Credentials()
	assert.Equal(t, "T2", creds.AccessToken)
	assert.Equal(t, "R1", creds.RefreshToken, "refresh token kept when endpoint does not rotate it")
	assert.Equal(t, "realm-1", creds.RealmID)
	assert.WithinDuration(t, before.Add(3600*time.Second), creds.ExpiresAt, 5*time.Second)
}

func TestAccessTokenRefreshesWithinFreshnessMargin(t *testing.T) {
	// Expiry is in the future but inside the 5-minute margin.
	seed := Credentials{
		AccessToken:  "T1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Add(2 * time.Minute),
	}
	manager, requests := newTestManager(t, seed, nil, refreshSuccess("T2", "R2", 3600))

	token, err := manager.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "T2", token)
	assert.EqualValues(t, 1, atomic.LoadInt64(requests))

	creds := manager.Credentials()
	assert.Equal(t, "R2", creds.RefreshToken, "rotated refresh token must replace the old one")
}

func TestAccessTokenConcurrentCallersSingleRefresh(t *testing.T) {
	seed := Credentials{
		AccessToken:  "T1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}
	manager, requests := newTestManager(t, seed, nil, refreshSuccess("T2", "R2", 3600))

	const callers = 25
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)

	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = manager.AccessToken(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "T2", tokens[i])
	}
	assert.EqualValues(t, 1, atomic.LoadInt64(requests), "concurrent callers must share one refresh")
}

func TestAccessTokenRefreshPersistsToStore(t *testing.T) {
	seed := Credentials{
		AccessToken:  "T1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}
	manager, _ := newTestManager(t, seed, nil, refreshSuccess("T2", "R2", 3600))

	_, err := manager.AccessToken(context.Background())
	require.NoError(t, err)

	stored, err := manager.store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "T2", stored.AccessToken)
	assert.Equal(t, "R2", stored.RefreshToken)
}

func TestAccessTokenInvalidGrantIsPermanentAndNotifies(t *testing.T) {
	seed := Credentials{
		AccessToken:  "T1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}
	notifier := newRecordingNotifier()
	manager, requests := newTestManager(t, seed, notifier, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Incorrect or invalid refresh token"}`)
	})

	_, err := manager.AccessToken(context.Background())
	require.ErrorIs(t, err, ErrRefreshRejected)
	assert.EqualValues(t, 1, atomic.LoadInt64(requests))

	notifier.waitForDelivery(t)
	assert.Equal(t, 1, notifier.callCount(), "notifier must fire exactly once per failed refresh")

	// The credential record is left untouched for a later retry or reconnect.
	creds := manager.Credentials()
	assert.Equal(t, "T1", creds.AccessToken)
	assert.Equal(t, "R1", creds.RefreshToken)
}

func TestAccessTokenServerErrorIsTransient(t *testing.T) {
	seed := Credentials{
		AccessToken:  "T1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}
	notifier := newRecordingNotifier()
	manager, _ := newTestManager(t, seed, notifier, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	_, err := manager.AccessToken(context.Background())
	require.ErrorIs(t, err, ErrRefreshUnavailable)
	assert.Equal(t, 0, notifier.callCount(), "transient failures must not alert")

	creds := manager.Credentials()
	assert.Equal(t, "R1", creds.RefreshToken)
}

func TestAccessTokenUnreachableEndpointIsTransient(t *testing.T) {
	seed := Credentials{
		AccessToken:  "T1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}
	manager, _ := newTestManager(t, seed, nil, refreshSuccess("T2", "R2", 3600))
	manager.config.TokenURL = "http://127.0.0.1:1/bearer" // nothing listens here

	_, err := manager.AccessToken(context.Background())
	require.ErrorIs(t, err, ErrRefreshUnavailable)
}

func TestAccessTokenNoCredentialsConfigured(t *testing.T) {
	manager, requests := newTestManager(t, Credentials{}, nil, refreshSuccess("T2", "R2", 3600))

	_, err := manager.AccessToken(context.Background())
	require.ErrorIs(t, err, ErrNoCredentials)
	assert.EqualValues(t, 0, atomic.LoadInt64(requests), "configuration errors must not hit the network")
}

func TestAccessTokenNoRefreshTokenConfigured(t *testing.T) {
	seed := Credentials{
		AccessToken: "T1",
		ExpiresAt:   time.Now().Add(-time.Minute),
	}
	manager, requests := newTestManager(t, seed, nil, refreshSuccess("T2", "R2", 3600))

	_, err := manager.AccessToken(context.Background())
	require.ErrorIs(t, err, ErrNoCredentials)
	assert.EqualValues(t, 0, atomic.LoadInt64(requests))
}

func TestAccessTokenRefreshSendsBasicAuthForm(t *testing.T) {
	seed := Credentials{
		AccessToken:  "T1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}

	var gotGrant, gotRefresh, gotUser, gotPass string
	manager, _ := newTestManager(t, seed, nil, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotGrant = r.PostForm.Get("grant_type")
		gotRefresh = r.PostForm.Get("refresh_token")
		gotUser, gotPass, _ = r.BasicAuth()
		refreshSuccess("T2", "R2", 3600)(w, r)
	})

	_, err := manager.AccessToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "refresh_token", gotGrant)
	assert.Equal(t, "R1", gotRefresh)
	assert.Equal(t, "test-client", gotUser)
	assert.Equal(t, "test-secret", gotPass)
}

func TestExchangeReplacesCredentialRecord(t *testing.T) {
	manager, _ := newTestManager(t, Credentials{}, nil, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "code-123", r.PostForm.Get("code"))
		refreshSuccess("T-new", "R-new", 3600)(w, r)
	})

	err := manager.Exchange(context.Background(), "code-123", "realm-42")
	require.NoError(t, err)

	creds := manager.Credentials()
	assert.Equal(t, "T-new", creds.AccessToken)
	assert.Equal(t, "R-new", creds.RefreshToken)
	assert.Equal(t, "realm-42", creds.RealmID)
	assert.Equal(t, "realm-42", manager.RealmID())
}

func TestConnectionOK(t *testing.T) {
	fresh := Credentials{
		AccessToken:  "T1",
		RefreshToken: "R1",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	manager, _ := newTestManager(t, fresh, nil, refreshSuccess("T2", "R2", 3600))
	assert.True(t, manager.ConnectionOK(context.Background()))

	empty, _ := newTestManager(t, Credentials{}, nil, refreshSuccess("T2", "R2", 3600))
	assert.False(t, empty.ConnectionOK(context.Background()))
}
