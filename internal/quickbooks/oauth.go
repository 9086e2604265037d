package quickbooks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/qbo-connector/internal/httpclient"
	"github.com/Checker-Finance/qbo-connector/internal/rate"
)

const (
	AuthorizationEndpoint = "https://appcenter.intuit.com/connect/oauth2"
	TokenEndpoint         = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"
	RevokeEndpoint        = "https://developer.api.intuit.com/v2/oauth2/tokens/revoke"

	ProductionBaseURL = "https://quickbooks.api.intuit.com/v3"
	SandboxBaseURL    = "https://sandbox-quickbooks.api.intuit.com/v3"

	EnvironmentProduction = "production"
	EnvironmentSandbox    = "sandbox"

	// ScopeAccounting grants access to the accounting API.
	ScopeAccounting = "com.intuit.quickbooks.accounting"

	oauthRateKey = "oauth"
)

// Config is the OAuth app registration used by every constructor in this package.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Environment  string // "production" or "sandbox"
	Scopes       []string
}

// Validate checks the app registration is complete.
func (c Config) Validate() error {
	switch {
	case c.ClientID == "":
		return errors.New("quickbooks config: client id is required")
	case c.ClientSecret == "":
		return errors.New("quickbooks config: client secret is required")
	case c.RedirectURI == "":
		return errors.New("quickbooks config: redirect uri is required")
	}
	if c.Environment != EnvironmentProduction && c.Environment != EnvironmentSandbox {
		return fmt.Errorf("quickbooks config: unknown environment %q", c.Environment)
	}
	return nil
}

// BaseURL returns the accounting API host for the configured environment.
func (c Config) BaseURL() string {
	if c.Environment == EnvironmentProduction {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

func (c Config) scopes() []string {
	if len(c.Scopes) == 0 {
		return []string{ScopeAccounting}
	}
	return c.Scopes
}

// NewState returns a fresh CSRF state token for the authorization redirect.
func NewState() string {
	return uuid.NewString()
}

// OAuthClient drives the authorization-code flow against Intuit's OAuth endpoints.
type OAuthClient struct {
	cfg       Config
	logger    *zap.Logger
	exec      *httpclient.Executor
	authURL   string
	tokenURL  string
	revokeURL string
}

// OAuthOption customises an OAuthClient.
type OAuthOption func(*oauthOptions)

type oauthOptions struct {
	httpClient *http.Client
	rateMgr    *rate.Manager
	authURL    string
	tokenURL   string
	revokeURL  string
}

// WithOAuthHTTPClient overrides the HTTP client used for token calls.
func WithOAuthHTTPClient(c *http.Client) OAuthOption {
	return func(o *oauthOptions) { o.httpClient = c }
}

// WithOAuthRateManager paces token calls.
func WithOAuthRateManager(m *rate.Manager) OAuthOption {
	return func(o *oauthOptions) { o.rateMgr = m }
}

// WithEndpoints overrides the Intuit OAuth endpoints. Empty values keep the default.
func WithEndpoints(authURL, tokenURL, revokeURL string) OAuthOption {
	return func(o *oauthOptions) {
		if authURL != "" {
			o.authURL = authURL
		}
		if tokenURL != "" {
			o.tokenURL = tokenURL
		}
		if revokeURL != "" {
			o.revokeURL = revokeURL
		}
	}
}

// NewOAuthClient creates an OAuthClient for cfg.
func NewOAuthClient(cfg Config, logger *zap.Logger, opts ...OAuthOption) *OAuthClient {
	o := oauthOptions{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		authURL:    AuthorizationEndpoint,
		tokenURL:   TokenEndpoint,
		revokeURL:  RevokeEndpoint,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &OAuthClient{
		cfg:       cfg,
		logger:    logger,
		exec:      httpclient.New(logger, o.rateMgr, o.httpClient, "quickbooks.oauth", oauthAPIError, transportError),
		authURL:   o.authURL,
		tokenURL:  o.tokenURL,
		revokeURL: o.revokeURL,
	}
}

// Config returns the app registration the client was built with.
func (c *OAuthClient) Config() Config { return c.cfg }

// AuthorizationURL builds the redirect to Intuit's consent screen.
func (c *OAuthClient) AuthorizationURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(c.cfg.scopes(), " "))
	q.Set("redirect_uri", c.cfg.RedirectURI)
	q.Set("state", state)
	return c.authURL + "?" + q.Encode()
}

// ExchangeCode trades an authorization code for a token pair.
func (c *OAuthClient) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", c.cfg.RedirectURI)

	tok, err := c.tokenRequest(ctx, form)
	if err != nil {
		return nil, err
	}
	c.logger.Info("quickbooks.code_exchanged", zap.Int64("expires_in_sec", tok.ExpiresIn))
	return tok, nil
}

// Refresh trades a refresh token for a new token pair.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.tokenRequest(ctx, form)
}

// Revoke invalidates token (access or refresh) at Intuit. Revoking the
// refresh token disconnects the app from the company.
func (c *OAuthClient) Revoke(ctx context.Context, token string) error {
	body := strings.NewReader(fmt.Sprintf(`{"token":%q}`, token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revokeURL, body)
	if err != nil {
		return fmt.Errorf("quickbooks: build revoke request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if _, err := c.exec.Do(ctx, req, oauthRateKey, "revoke"); err != nil {
		return Classify(err)
	}
	c.logger.Info("quickbooks.token_revoked")
	return nil
}

func (c *OAuthClient) tokenRequest(ctx context.Context, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("quickbooks: build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var tok TokenResponse
	if err := c.exec.DoJSON(ctx, req, oauthRateKey, "token", &tok); err != nil {
		return nil, Classify(err)
	}
	if tok.AccessToken == "" || tok.RefreshToken == "" {
		return nil, &Error{Kind: KindAuthentication, Message: "token endpoint returned an incomplete token pair"}
	}
	return &tok, nil
}
