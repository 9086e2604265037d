package quickbooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/qbo-connector/internal/httpclient"
	"github.com/Checker-Finance/qbo-connector/internal/metrics"
	"github.com/Checker-Finance/qbo-connector/internal/rate"
	"github.com/Checker-Finance/qbo-connector/pkg/model"
	"github.com/Checker-Finance/qbo-connector/pkg/utils"
)

// DefaultMinorVersion is the accounting API minor version sent on every data call.
const DefaultMinorVersion = "75"

// Report names accepted by the reports endpoint.
const (
	ReportProfitAndLoss = "ProfitAndLoss"
	ReportBalanceSheet  = "BalanceSheet"
	ReportCashFlow      = "CashFlow"
)

// TokenSource refreshes and revokes tokens. *OAuthClient implements it.
type TokenSource interface {
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
	Revoke(ctx context.Context, token string) error
}

// CredentialStore persists credential bundles. It is optional on a Session.
type CredentialStore interface {
	SaveCredentials(ctx context.Context, b model.CredentialBundle) error
	DeleteCredentials(ctx context.Context, realmID string) error
}

// ErrDisconnected is returned by calls made after Disconnect.
var ErrDisconnected = &Error{Kind: KindAuthentication, Message: "quickbooks connection was disconnected"}

// Session holds one company's credentials and executes authenticated reads.
// The bundle is refreshed synchronously once it is within model.RefreshMargin
// of expiry. A failed refresh is sticky: every later call fails with an
// Authentication error until the session is rebuilt from a new bundle.
type Session struct {
	logger  *zap.Logger
	tokens  TokenSource
	store   CredentialStore
	exec    *httpclient.Executor
	baseURL string
	minor   string
	now     func() time.Time

	mu           sync.Mutex
	bundle       model.CredentialBundle
	refreshErr   error
	disconnected bool
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithCredentialStore persists refreshed bundles and deletes them on disconnect.
func WithCredentialStore(s CredentialStore) SessionOption {
	return func(sess *Session) { sess.store = s }
}

// WithBaseURL overrides the accounting API base URL.
func WithBaseURL(u string) SessionOption {
	return func(sess *Session) { sess.baseURL = u }
}

// WithMinorVersion overrides the minorversion query parameter. Empty omits it.
func WithMinorVersion(v string) SessionOption {
	return func(sess *Session) { sess.minor = v }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) SessionOption {
	return func(sess *Session) { sess.now = now }
}

// NewExecutor builds the HTTP executor used for accounting API calls, with
// failures mapped onto the error taxonomy.
func NewExecutor(logger *zap.Logger, rateMgr *rate.Manager, httpClient *http.Client) *httpclient.Executor {
	return httpclient.New(logger, rateMgr, httpClient, "quickbooks", apiError, transportError)
}

// NewSession creates a Session for bundle. baseURL is normally Config.BaseURL().
func NewSession(logger *zap.Logger, bundle model.CredentialBundle, tokens TokenSource, exec *httpclient.Executor, baseURL string, opts ...SessionOption) *Session {
	s := &Session{
		logger:  logger.With(zap.String("realm_id", bundle.RealmID)),
		tokens:  tokens,
		exec:    exec,
		baseURL: baseURL,
		minor:   DefaultMinorVersion,
		now:     time.Now,
		bundle:  bundle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RealmID returns the company the session is bound to.
func (s *Session) RealmID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bundle.RealmID
}

// Bundle returns a copy of the current credential bundle.
func (s *Session) Bundle() model.CredentialBundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bundle
}

// accessToken returns a usable access token, refreshing first if the current
// one is within the refresh margin. Refresh and persistence run under the lock
// so concurrent callers on one session never refresh twice.
func (s *Session) accessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disconnected {
		return "", ErrDisconnected
	}
	if s.refreshErr != nil {
		return "", s.refreshErr
	}
	if !s.bundle.NeedsRefresh(s.now()) {
		return s.bundle.AccessToken, nil
	}

	tok, err := s.tokens.Refresh(ctx, s.bundle.RefreshToken)
	if err != nil {
		metrics.IncTokenRefresh("failed")
		cause := Classify(err)
		s.refreshErr = &Error{
			Kind:    KindAuthentication,
			Status:  cause.Status,
			Code:    cause.Code,
			Message: "access token refresh failed, reconnect QuickBooks",
			Err:     err,
		}
		s.logger.Warn("quickbooks.token_refresh_failed",
			zap.String("kind", string(KindOf(err))),
			zap.String("refresh_token", utils.MaskToken(s.bundle.RefreshToken)),
			zap.Error(err))
		return "", s.refreshErr
	}

	updated := tok.Bundle(s.bundle.RealmID, s.now())
	if updated.RefreshExpiresAt.IsZero() {
		updated.RefreshExpiresAt = s.bundle.RefreshExpiresAt
	}
	s.bundle = updated
	metrics.IncTokenRefresh("ok")
	s.logger.Info("quickbooks.token_refreshed", zap.Time("expires_at", updated.ExpiresAt))

	if s.store != nil {
		if err := s.store.SaveCredentials(ctx, updated); err != nil {
			s.logger.Warn("quickbooks.token_persist_failed", zap.Error(err))
		}
	}
	return updated.AccessToken, nil
}

func (s *Session) companyURL(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	if s.minor != "" {
		params.Set("minorversion", s.minor)
	}
	u := fmt.Sprintf("%s/company/%s/%s", s.baseURL, url.PathEscape(s.RealmID()), path)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// get performs an authenticated GET and returns the raw body.
func (s *Session) get(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.companyURL(path, params), nil)
	if err != nil {
		return nil, Classify(fmt.Errorf("quickbooks: build request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	body, err := s.exec.Do(ctx, req, s.RealmID(), endpoint)
	if err != nil {
		return nil, Classify(err)
	}
	return body, nil
}

func (s *Session) getJSON(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	body, err := s.get(ctx, endpoint, path, params)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindUnknown, Message: "malformed " + endpoint + " response", Err: err}
	}
	return nil
}

func (s *Session) query(ctx context.Context, q string) (*queryResponse, error) {
	var resp queryResponse
	if err := s.getJSON(ctx, "query", "query", url.Values{"query": {q}}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CompanyInfo fetches company metadata. It doubles as the connectivity check.
func (s *Session) CompanyInfo(ctx context.Context) (*CompanyInfo, error) {
	var resp companyInfoResponse
	realm := url.PathEscape(s.RealmID())
	if err := s.getJSON(ctx, "companyinfo", "companyinfo/"+realm, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.CompanyInfo, nil
}

// Accounts returns every account in the chart of accounts.
func (s *Session) Accounts(ctx context.Context) ([]Account, error) {
	resp, err := s.query(ctx, SelectAll("Account"))
	if err != nil {
		return nil, err
	}
	return resp.QueryResponse.Account, nil
}

// Customers returns every customer.
func (s *Session) Customers(ctx context.Context) ([]Customer, error) {
	resp, err := s.query(ctx, SelectAll("Customer"))
	if err != nil {
		return nil, err
	}
	return resp.QueryResponse.Customer, nil
}

// Invoices returns invoices whose TxnDate falls in [start, end]; empty bounds are open.
func (s *Session) Invoices(ctx context.Context, start, end string) ([]Invoice, error) {
	q, err := BuildTxnQuery("Invoice", start, end)
	if err != nil {
		return nil, err
	}
	resp, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}
	return resp.QueryResponse.Invoice, nil
}

// Bills returns bills whose TxnDate falls in [start, end]; empty bounds are open.
func (s *Session) Bills(ctx context.Context, start, end string) ([]Bill, error) {
	q, err := BuildTxnQuery("Bill", start, end)
	if err != nil {
		return nil, err
	}
	resp, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}
	return resp.QueryResponse.Bill, nil
}

// Payments returns payments whose TxnDate falls in [start, end]; empty bounds are open.
func (s *Session) Payments(ctx context.Context, start, end string) ([]Payment, error) {
	q, err := BuildTxnQuery("Payment", start, end)
	if err != nil {
		return nil, err
	}
	resp, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}
	return resp.QueryResponse.Payment, nil
}

func (s *Session) report(ctx context.Context, name string, params url.Values) (json.RawMessage, error) {
	body, err := s.get(ctx, "report", "reports/"+name, params)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, &Error{Kind: KindUnknown, Message: "malformed " + name + " report"}
	}
	return json.RawMessage(body), nil
}

func (s *Session) windowReport(ctx context.Context, name, start, end string) (json.RawMessage, error) {
	if start == "" || end == "" {
		return nil, &Error{Kind: KindInvalidRequest, Message: name + " report needs a start and end date"}
	}
	if err := ValidateRange(start, end); err != nil {
		return nil, err
	}
	return s.report(ctx, name, url.Values{"start_date": {start}, "end_date": {end}})
}

// ProfitAndLoss returns the profit and loss report for [start, end] unmodified.
func (s *Session) ProfitAndLoss(ctx context.Context, start, end string) (json.RawMessage, error) {
	return s.windowReport(ctx, ReportProfitAndLoss, start, end)
}

// BalanceSheet returns the balance sheet as of date unmodified.
func (s *Session) BalanceSheet(ctx context.Context, asOf string) (json.RawMessage, error) {
	if asOf == "" {
		return nil, &Error{Kind: KindInvalidRequest, Message: ReportBalanceSheet + " report needs a date"}
	}
	if err := ValidateDate(asOf); err != nil {
		return nil, err
	}
	return s.report(ctx, ReportBalanceSheet, url.Values{"as_of": {asOf}})
}

// CashFlow returns the cash flow report for [start, end] unmodified.
func (s *Session) CashFlow(ctx context.Context, start, end string) (json.RawMessage, error) {
	return s.windowReport(ctx, ReportCashFlow, start, end)
}

// ConnectionResult is the outcome of TestConnection.
type ConnectionResult struct {
	Success     bool      `json:"success"`
	RealmID     string    `json:"realmId"`
	CompanyName string    `json:"companyName,omitempty"`
	ErrorKind   ErrorKind `json:"errorKind,omitempty"`
	Message     string    `json:"message,omitempty"`
	Guidance    string    `json:"guidance,omitempty"`
}

// TestConnection calls CompanyInfo to check the connection. It never returns an error;
// failures are reported in the result with their kind and guidance text.
func (s *Session) TestConnection(ctx context.Context) ConnectionResult {
	res := ConnectionResult{RealmID: s.RealmID()}

	info, err := s.CompanyInfo(ctx)
	if err != nil {
		qe := Classify(err)
		res.ErrorKind = qe.Kind
		res.Message = qe.Error()
		res.Guidance = qe.Kind.Guidance()
		s.logger.Info("quickbooks.connection_test_failed", zap.String("kind", string(qe.Kind)), zap.Error(err))
		return res
	}

	res.Success = true
	res.CompanyName = info.CompanyName
	return res
}

// Disconnect revokes the refresh token, deletes the stored bundle and
// discards it from the session. Local cleanup happens even if revocation
// fails; the revocation error is still returned.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disconnected {
		return nil
	}

	var errs []error
	if s.bundle.RefreshToken != "" {
		if err := s.tokens.Revoke(ctx, s.bundle.RefreshToken); err != nil {
			s.logger.Warn("quickbooks.revoke_failed",
				zap.String("kind", string(KindOf(err))),
				zap.String("refresh_token", utils.MaskToken(s.bundle.RefreshToken)),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	if s.store != nil {
		if err := s.store.DeleteCredentials(ctx, s.bundle.RealmID); err != nil {
			s.logger.Warn("quickbooks.credentials_delete_failed", zap.Error(err))
			errs = append(errs, fmt.Errorf("delete stored credentials: %w", err))
		}
	}

	s.bundle = model.CredentialBundle{RealmID: s.bundle.RealmID}
	s.disconnected = true
	s.logger.Info("quickbooks.disconnected")
	return errors.Join(errs...)
}
