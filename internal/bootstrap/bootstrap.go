// Package bootstrap builds the dependencies shared by the connector
// service and the one-shot sync CLI.
package bootstrap

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/qbo-connector/internal/publisher"
	"github.com/Checker-Finance/qbo-connector/internal/quickbooks"
	"github.com/Checker-Finance/qbo-connector/internal/rate"
	internalsecrets "github.com/Checker-Finance/qbo-connector/internal/secrets"
	"github.com/Checker-Finance/qbo-connector/internal/store"
	"github.com/Checker-Finance/qbo-connector/pkg/config"
	"github.com/Checker-Finance/qbo-connector/pkg/model"
	"github.com/Checker-Finance/qbo-connector/pkg/secrets"
)

// NewOAuthAppCache returns the cache OAuthConfig resolves the app secret
// into. The caller owns its cleaner.
func NewOAuthAppCache(cfg *config.Config) *secrets.Cache[internalsecrets.OAuthApp] {
	return secrets.NewCache[internalsecrets.OAuthApp](cfg.CacheTTL)
}

// OAuthConfig assembles the Intuit app registration. When QBO_SECRET_NAME is
// set the client id and secret come from AWS Secrets Manager; provider may be
// nil, in which case one is created for cfg.AWSRegion.
func OAuthConfig(ctx context.Context, cfg *config.Config, provider secrets.Provider, cache *secrets.Cache[internalsecrets.OAuthApp], logger *zap.Logger) (quickbooks.Config, error) {
	qc := quickbooks.Config{
		ClientID:     cfg.QBOClientID,
		ClientSecret: cfg.QBOClientSecret,
		RedirectURI:  cfg.QBORedirectURI,
		Environment:  cfg.QBOEnvironment,
		Scopes:       cfg.QBOScopes,
	}

	if cfg.QBOSecretName != "" {
		if provider == nil {
			p, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
			if err != nil {
				return qc, fmt.Errorf("create secrets provider: %w", err)
			}
			provider = p
		}
		if cache == nil {
			cache = NewOAuthAppCache(cfg)
		}
		resolver := internalsecrets.NewResolver(logger, provider, cache)
		app, err := resolver.Resolve(ctx, cfg.QBOSecretName, internalsecrets.ParseOAuthApp)
		if err != nil {
			return qc, err
		}
		qc.ClientID = app.ClientID
		qc.ClientSecret = app.ClientSecret
		if app.RedirectURI != "" {
			qc.RedirectURI = app.RedirectURI
		}
	}

	if err := qc.Validate(); err != nil {
		return qc, err
	}
	return qc, nil
}

// CookieKey returns the AES key used to encrypt browser cookies. Outside dev a
// configured key is required; in dev a random key is generated, so cookies do
// not survive a restart.
func CookieKey(cfg *config.Config, logger *zap.Logger) (string, error) {
	key := cfg.QBOCookieKey
	if key == "" {
		if cfg.Env != "dev" {
			return "", errors.New("QBO_COOKIE_KEY is required outside dev")
		}
		logger.Warn("bootstrap.cookie_key_generated")
		return encryptcookie.GenerateKey(), nil
	}
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("QBO_COOKIE_KEY is not base64: %w", err)
	}
	switch len(raw) {
	case 16, 24, 32:
		return key, nil
	default:
		return "", fmt.Errorf("QBO_COOKIE_KEY must decode to 16, 24 or 32 bytes, got %d", len(raw))
	}
}

// OpenStore connects the Redis + Postgres hybrid store.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*store.HybridStore, error) {
	return store.NewHybrid(ctx, store.RedisConfig{
		Addr:     cfg.RedisAddr,
		DB:       cfg.RedisDB,
		Password: cfg.RedisPass,
	}, cfg.DatabaseURL, store.PGPoolConfig{
		MaxConns:          int32(cfg.PGMaxConns),
		MinConns:          int32(cfg.PGMinConns),
		MaxConnLifetime:   cfg.PGMaxConnLifetime,
		MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
		HealthCheckPeriod: cfg.PGHealthCheckPeriod,
	}, logger)
}

// RateManager paces outbound calls per realm.
func RateManager(cfg *config.Config) *rate.Manager {
	return rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.QBORequestsPerSecond,
		Burst:             cfg.QBOBurst,
	})
}

// SessionFactory returns a constructor for per-realm sessions that share one
// executor and persist refreshed tokens to creds.
func SessionFactory(logger *zap.Logger, qc quickbooks.Config, oauth *quickbooks.OAuthClient, rateMgr *rate.Manager, creds quickbooks.CredentialStore) func(model.CredentialBundle) *quickbooks.Session {
	exec := quickbooks.NewExecutor(logger, rateMgr, &http.Client{Timeout: 30 * time.Second})
	return func(b model.CredentialBundle) *quickbooks.Session {
		return quickbooks.NewSession(logger, b, oauth, exec, qc.BaseURL(), quickbooks.WithCredentialStore(creds))
	}
}

// Notifier selects the event backend from EVENTS_BACKEND.
func Notifier(cfg *config.Config, log *zap.Logger) (publisher.Notifier, error) {
	switch cfg.EventsBackend {
	case "nats":
		nc, err := nats.Connect(cfg.NATSURL, nats.Name(cfg.ServiceName))
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		pub, err := publisher.NewNATS(nc, cfg.EventsSubject, cfg.ServiceName, log)
		if err != nil {
			nc.Close()
			return nil, err
		}
		return pub, nil
	case "rabbitmq":
		pub, err := publisher.NewRabbit(cfg.RabbitMQURL, cfg.EventsSubject, cfg.ServiceName, log)
		if err != nil {
			return nil, err
		}
		return pub, nil
	case "", "none":
		return publisher.Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.EventsBackend)
	}
}
