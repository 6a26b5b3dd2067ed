// Package infrastructure wires application dependencies together.
package infrastructure

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/eGGnogSC/fsserver/config"
	"github.com/eGGnogSC/fsserver/infrastructure/redis"
	"github.com/eGGnogSC/fsserver/internal/auth"
	"github.com/eGGnogSC/fsserver/internal/integration"
	"github.com/eGGnogSC/fsserver/internal/notify"
	"github.com/eGGnogSC/fsserver/internal/storage/sqlite"
	"github.com/eGGnogSC/fsserver/pkg/qbclient"
)

// Container holds the application's constructed dependencies.
type Container struct {
	AuthManager *auth.Manager
	Coordinator *integration.Coordinator

	AuthHandler        *auth.Handler
	IntegrationHandler *integration.Handler

	DB          *sqlite.DB
	RedisClient goredis.UniversalClient
	RedisHealth *redis.HealthChecker
}

// NewContainer initializes the database, the credential store, the token
// manager and the sync coordinator. Redis is optional; without it credentials
// live only in memory and are lost on restart.
func NewContainer(ctx context.Context, cfg config.Config) (*Container, error) {
	container := &Container{}

	db, err := sqlite.NewDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	container.DB = db

	if err := sqlite.RunMigrations(db.Writer); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	customerRepo := sqlite.NewCustomerRepo(db)
	jobRepo := sqlite.NewJobRepo(db)

	credentialStore, err := container.buildCredentialStore(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	oauthConfig := auth.OAuthConfig{
		ClientID:     cfg.QuickBooks.ClientID,
		ClientSecret: cfg.QuickBooks.ClientSecret,
		RedirectURI:  cfg.QuickBooks.RedirectURI,
		Scope:        cfg.QuickBooks.Scope,
		AuthURL:      cfg.QuickBooks.AuthURL,
		TokenURL:     cfg.QuickBooks.TokenURL,
		APIBaseURL:   cfg.QuickBooks.APIBaseURL,
	}

	seed := seedCredentials(ctx, cfg, credentialStore)

	reconnectURL := strings.TrimSuffix(cfg.QuickBooks.RedirectURI, "/callback")
	notifier := notify.NewEmailNotifier(cfg.Notify.AdminEmail, reconnectURL)

	container.AuthManager = auth.NewManager(oauthConfig, seed, credentialStore, notifier)

	qbClient := qbclient.NewClient(cfg.QuickBooks.APIBaseURL)
	container.Coordinator = integration.NewCoordinator(container.AuthManager, qbClient, customerRepo, jobRepo)

	sessionStore := auth.NewSessionStore([]byte(cfg.QuickBooks.SessionSecret))
	container.AuthHandler = auth.NewHandler(container.AuthManager, sessionStore)
	container.IntegrationHandler = integration.NewHandler(container.Coordinator)

	return container, nil
}

// buildCredentialStore returns a Redis-backed store behind a local fallback
// when Redis is configured, and a plain in-memory store otherwise.
func (c *Container) buildCredentialStore(ctx context.Context, cfg config.Config) (auth.CredentialStore, error) {
	if !cfg.Redis.Enabled() {
		log.Println("redis not configured, using in-memory credential store")
		return auth.NewMemoryStore(), nil
	}

	opts := redis.DefaultOptions(cfg.Redis.Addresses)
	opts.Password = cfg.Redis.Password
	opts.DB = cfg.Redis.DB

	client, err := redis.NewClient(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}
	c.RedisClient = client
	c.RedisHealth = redis.NewHealthChecker(client, 30*time.Second)
	c.RedisHealth.Start(ctx)

	redisStore := auth.NewRedisStore(client, cfg.Redis.KeyPrefix)
	fallback := auth.NewFallbackStore(redisStore, c.RedisHealth.IsHealthy)
	fallback.StartReplication(ctx, time.Minute)
	return fallback, nil
}

// seedCredentials prefers persisted credentials over the configured seed
// tokens, so a rotated refresh token survives a restart.
func seedCredentials(ctx context.Context, cfg config.Config, store auth.CredentialStore) auth.Credentials {
	if persisted, err := store.Load(ctx); err != nil {
		log.Printf("failed to load persisted credentials: %v", err)
	} else if persisted != nil {
		log.Println("loaded QuickBooks credentials from store")
		return *persisted
	}

	return auth.Credentials{
		AccessToken:  cfg.QuickBooks.AccessToken,
		RefreshToken: cfg.QuickBooks.RefreshToken,
		ExpiresAt:    cfg.QuickBooks.AccessTokenExpiry,
		RealmID:      cfg.QuickBooks.RealmID,
	}
}

// Shutdown closes external connections.
func (c *Container) Shutdown() {
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			log.Printf("error closing redis connection: %v", err)
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			log.Printf("error closing database: %v", err)
		}
	}
}
