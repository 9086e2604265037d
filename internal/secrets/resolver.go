package secrets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	pkgsecrets "github.com/Checker-Finance/qbo-connector/pkg/secrets"
)

// Resolver resolves typed configuration from a secrets Provider, caching
// parsed results locally to reduce API calls. It is generic over the
// resolved type T.
type Resolver[T any] struct {
	logger   *zap.Logger
	provider pkgsecrets.Provider
	cache    *pkgsecrets.Cache[T]
}

// NewResolver constructs a caching secret resolver.
func NewResolver[T any](logger *zap.Logger, provider pkgsecrets.Provider, cache *pkgsecrets.Cache[T]) *Resolver[T] {
	return &Resolver[T]{
		logger:   logger,
		provider: provider,
		cache:    cache,
	}
}

// Resolve fetches or returns the cached T stored under secretName.
// parse extracts T from the raw secret map; it should validate required fields.
func (r *Resolver[T]) Resolve(ctx context.Context, secretName string, parse func(map[string]string) (T, error)) (T, error) {
	key := strings.ToLower(secretName)

	if cfg, ok := r.cache.Get(key); ok {
		return cfg, nil
	}

	secretMap, err := r.provider.GetSecret(ctx, secretName)
	if err != nil {
		r.logger.Warn("secrets.fetch_failed",
			zap.String("name", secretName),
			zap.Error(err))
		var zero T
		return zero, fmt.Errorf("resolve secret %q: %w", secretName, err)
	}

	cfg, err := parse(secretMap)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("parse secret %q: %w", secretName, err)
	}

	r.cache.Put(key, cfg)

	r.logger.Info("secrets.resolved", zap.String("name", secretName), zap.Int("cached", r.cache.Len()))
	return cfg, nil
}

// OAuthApp is the Intuit developer app registration used for the OAuth flow.
type OAuthApp struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// ParseOAuthApp extracts an OAuthApp from a secret of the form
// {"client_id": "...", "client_secret": "...", "redirect_uri": "..."}.
// redirect_uri is optional.
func ParseOAuthApp(m map[string]string) (OAuthApp, error) {
	app := OAuthApp{
		ClientID:     m["client_id"],
		ClientSecret: m["client_secret"],
		RedirectURI:  m["redirect_uri"],
	}
	if app.ClientID == "" {
		return OAuthApp{}, fmt.Errorf("missing required field 'client_id'")
	}
	if app.ClientSecret == "" {
		return OAuthApp{}, fmt.Errorf("missing required field 'client_secret'")
	}
	return app, nil
}
