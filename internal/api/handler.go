package api

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/qbo-connector/internal/metrics"
	"github.com/Checker-Finance/qbo-connector/internal/quickbooks"
	"github.com/Checker-Finance/qbo-connector/internal/store"
	"github.com/Checker-Finance/qbo-connector/internal/syncer"
	"github.com/Checker-Finance/qbo-connector/pkg/model"
	"github.com/Checker-Finance/qbo-connector/pkg/utils"
)

// DefaultStateTTL bounds the time between connect and callback.
const DefaultStateTTL = 10 * time.Minute

// OAuthProvider is the part of the OAuth client the handler drives.
type OAuthProvider interface {
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*quickbooks.TokenResponse, error)
}

// Session is a per-request QuickBooks client bound to one credential bundle.
type Session interface {
	syncer.Client
	Bundle() model.CredentialBundle
	TestConnection(ctx context.Context) quickbooks.ConnectionResult
	Disconnect(ctx context.Context) error
}

// SessionFactory builds a Session for a bundle.
type SessionFactory func(b model.CredentialBundle) Session

// Syncer runs a sync against a session.
type Syncer interface {
	Run(ctx context.Context, c syncer.Client, cfg model.SyncConfig) model.SyncResult
}

// HandlerStore is the persistence the handler needs.
type HandlerStore interface {
	SaveCredentials(ctx context.Context, b model.CredentialBundle) error
	LoadCredentials(ctx context.Context, realmID string) (*model.CredentialBundle, error)
	LatestSnapshot(ctx context.Context, realmID string) (*model.Snapshot, error)
	PutState(ctx context.Context, state string, ttl time.Duration) error
	ConsumeState(ctx context.Context, state string) (bool, error)
}

// HandlerConfig carries browser-facing settings.
type HandlerConfig struct {
	CookieName      string
	StateCookieName string
	SecureCookie    bool
	SuccessURL      string
	ErrorURL        string
	StateTTL        time.Duration
}

// QuickBooksHandler serves the connect/callback flow and the data endpoints.
type QuickBooksHandler struct {
	logger     *zap.Logger
	cfg        HandlerConfig
	oauth      OAuthProvider
	store      HandlerStore
	newSession SessionFactory
	syncer     Syncer
	now        func() time.Time
}

// NewQuickBooksHandler creates a new QuickBooksHandler.
func NewQuickBooksHandler(logger *zap.Logger, cfg HandlerConfig, oauth OAuthProvider, st HandlerStore, newSession SessionFactory, sync Syncer) *QuickBooksHandler {
	if cfg.CookieName == "" {
		cfg.CookieName = "qbo_tokens"
	}
	if cfg.StateCookieName == "" {
		cfg.StateCookieName = "qbo_oauth_state"
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = DefaultStateTTL
	}
	return &QuickBooksHandler{
		logger:     logger,
		cfg:        cfg,
		oauth:      oauth,
		store:      st,
		newSession: newSession,
		syncer:     sync,
		now:        time.Now,
	}
}

// ConnectHandler starts the OAuth flow. The state is stored server-side and
// in a cookie so the callback only completes in the browser that started it.
func (h *QuickBooksHandler) ConnectHandler(c *fiber.Ctx) error {
	state := quickbooks.NewState()
	if err := h.store.PutState(c.Context(), state, h.cfg.StateTTL); err != nil {
		h.logger.Error("qbo.connect.state_store_failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "could not start authorization"})
	}
	h.setStateCookie(c, state)
	return c.Redirect(h.oauth.AuthorizationURL(state), fiber.StatusFound)
}

// CallbackHandler completes the OAuth flow. Parameters and the browser's
// state cookie are checked before any exchange is attempted.
func (h *QuickBooksHandler) CallbackHandler(c *fiber.Ctx) error {
	p := callbackParams{
		Code:    c.Query("code"),
		State:   c.Query("state"),
		RealmID: c.Query("realmId"),
	}
	if err := p.Validate(); err != nil {
		metrics.IncOAuthCallback("invalid")
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	if !h.stateMatches(c, p.State) {
		metrics.IncOAuthCallback("invalid")
		h.logger.Warn("qbo.callback.state_cookie_mismatch", zap.String("realm_id", p.RealmID))
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "state does not match this browser"})
	}
	h.clearCookie(c, h.cfg.StateCookieName)

	ok, err := h.store.ConsumeState(c.Context(), p.State)
	if err != nil {
		metrics.IncOAuthCallback("error")
		h.logger.Error("qbo.callback.state_lookup_failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "could not verify state"})
	}
	if !ok {
		metrics.IncOAuthCallback("invalid")
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "unknown or expired state"})
	}

	log := h.logger.With(zap.String("realm_id", p.RealmID))

	tok, err := h.oauth.ExchangeCode(c.Context(), p.Code)
	if err != nil {
		metrics.IncOAuthCallback("failed")
		qe := quickbooks.Classify(err)
		log.Warn("qbo.callback.exchange_failed", zap.String("kind", string(qe.Kind)), zap.Error(err))
		return c.Redirect(h.errorRedirect(qe), fiber.StatusFound)
	}

	bundle := tok.Bundle(p.RealmID, h.now())
	if err := h.store.SaveCredentials(c.Context(), bundle); err != nil {
		log.Warn("qbo.callback.credentials_persist_failed", zap.Error(err))
	}
	if err := h.setTokenCookie(c, bundle); err != nil {
		metrics.IncOAuthCallback("error")
		log.Error("qbo.callback.cookie_failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "could not store credentials"})
	}

	metrics.IncOAuthCallback("success")
	log.Info("qbo.callback.connected")
	return c.Redirect(h.cfg.SuccessURL, fiber.StatusFound)
}

func (h *QuickBooksHandler) errorRedirect(qe *quickbooks.Error) string {
	q := url.Values{}
	q.Set("type", string(qe.Kind))
	q.Set("message", qe.Message)
	return h.cfg.ErrorURL + "?" + q.Encode()
}

// credentials resolves the caller's realm from the cookie and prefers the
// stored bundle, which carries any refresh done by earlier requests. The
// stored bundle is only used when the cookie holds one of its tokens.
func (h *QuickBooksHandler) credentials(c *fiber.Ctx) (model.CredentialBundle, bool) {
	tc, err := decodeTokenCookie(c.Cookies(h.cfg.CookieName))
	if err != nil {
		return model.CredentialBundle{}, false
	}
	stored, err := h.store.LoadCredentials(c.Context(), tc.RealmID)
	switch {
	case err == nil && stored != nil:
		if !tc.matches(*stored) {
			h.logger.Warn("qbo.credentials_cookie_mismatch",
				zap.String("realm_id", tc.RealmID),
				zap.String("refresh_token", utils.MaskToken(tc.RefreshToken)))
			return model.CredentialBundle{}, false
		}
		return *stored, true
	case err != nil && !errors.Is(err, store.ErrNotFound):
		h.logger.Warn("qbo.credentials_load_failed", zap.String("realm_id", tc.RealmID), zap.Error(err))
	}
	return tc.bundle(), true
}

func (h *QuickBooksHandler) session(c *fiber.Ctx) (Session, model.CredentialBundle, error) {
	b, ok := h.credentials(c)
	if !ok {
		return nil, b, c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:     "not connected to QuickBooks",
			ErrorKind: string(quickbooks.KindAuthentication),
		})
	}
	return h.newSession(b), b, nil
}

// refreshCookie keeps the browser copy in step after a token refresh.
func (h *QuickBooksHandler) refreshCookie(c *fiber.Ctx, s Session, before model.CredentialBundle) {
	after := s.Bundle()
	if after.AccessToken == "" || after.AccessToken == before.AccessToken {
		return
	}
	if err := h.setTokenCookie(c, after); err != nil {
		h.logger.Warn("qbo.cookie_refresh_failed", zap.String("realm_id", after.RealmID), zap.Error(err))
	}
}

// StatusHandler reports the caller's connection status.
func (h *QuickBooksHandler) StatusHandler(c *fiber.Ctx) error {
	b, ok := h.credentials(c)
	if !ok {
		return c.JSON(model.StatusOf(nil, h.now()))
	}
	return c.JSON(model.StatusOf(&b, h.now()))
}

// TestConnectionHandler checks the API connection. Failures are reported in the body.
func (h *QuickBooksHandler) TestConnectionHandler(c *fiber.Ctx) error {
	s, before, err := h.session(c)
	if s == nil {
		return err
	}
	res := s.TestConnection(c.Context())
	h.refreshCookie(c, s, before)
	return c.JSON(res)
}

// SyncHandler runs one sync for the caller's realm.
func (h *QuickBooksHandler) SyncHandler(c *fiber.Ctx) error {
	var req SyncRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:     err.Error(),
			ErrorKind: string(quickbooks.KindInvalidRequest),
		})
	}

	s, before, err := h.session(c)
	if s == nil {
		return err
	}

	res := h.syncer.Run(c.Context(), s, req.toConfig())
	h.refreshCookie(c, s, before)
	return c.Status(syncStatusCode(res)).JSON(res)
}

func syncStatusCode(res model.SyncResult) int {
	if res.Success {
		return fiber.StatusOK
	}
	switch quickbooks.ErrorKind(res.ErrorKind) {
	case quickbooks.KindAuthentication:
		return fiber.StatusUnauthorized
	case quickbooks.KindInvalidRequest:
		return fiber.StatusBadRequest
	case quickbooks.KindRateLimit:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusBadGateway
	}
}

// LatestSnapshotHandler returns the stored result of the last successful sync.
func (h *QuickBooksHandler) LatestSnapshotHandler(c *fiber.Ctx) error {
	b, ok := h.credentials(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "not connected to QuickBooks"})
	}
	snap, err := h.store.LatestSnapshot(c.Context(), b.RealmID)
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "no snapshot for realm"})
	}
	if err != nil {
		h.logger.Error("qbo.snapshot_load_failed", zap.String("realm_id", b.RealmID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "could not load snapshot"})
	}
	return c.JSON(toSnapshotResponse(snap))
}

// DisconnectHandler revokes and forgets the caller's credentials. Local
// state is cleared even when Intuit rejects the revocation.
func (h *QuickBooksHandler) DisconnectHandler(c *fiber.Ctx) error {
	s, b, err := h.session(c)
	if s == nil {
		return err
	}
	resp := DisconnectResponse{Disconnected: true, RealmID: b.RealmID}
	if err := s.Disconnect(c.Context()); err != nil {
		resp.Warning = err.Error()
	}
	h.clearTokenCookie(c)
	return c.JSON(resp)
}
