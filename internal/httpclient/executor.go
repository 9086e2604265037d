package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/qbo-connector/internal/metrics"
	"github.com/Checker-Finance/qbo-connector/internal/rate"
)

// maxBodyBytes bounds how much of a vendor response is read into memory.
const maxBodyBytes = 32 << 20

// Executor runs single-attempt, rate-paced HTTP calls against a vendor API.
// Failures are handed to the vendor hooks so callers receive typed errors.
type Executor struct {
	logger       *zap.Logger
	rateMgr      *rate.Manager
	http         *http.Client
	tag          string
	errorHandler func(status int, body []byte) error
	transportErr func(err error) error
}

// New creates an Executor. errorHandler maps non-2xx responses to a vendor
// error and transportErr wraps network failures; either may be nil.
func New(
	logger *zap.Logger,
	rateMgr *rate.Manager,
	httpClient *http.Client,
	tag string,
	errorHandler func(status int, body []byte) error,
	transportErr func(err error) error,
) *Executor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Executor{
		logger:       logger,
		rateMgr:      rateMgr,
		http:         httpClient,
		tag:          tag,
		errorHandler: errorHandler,
		transportErr: transportErr,
	}
}

func (e *Executor) wrapTransport(err error) error {
	if e.transportErr != nil {
		return e.transportErr(err)
	}
	return err
}

// Do executes req once and returns the raw response body on 2xx.
// rateLimitKey scopes pacing (the QBO realm); endpoint labels metrics.
func (e *Executor) Do(ctx context.Context, req *http.Request, rateLimitKey, endpoint string) ([]byte, error) {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
			return nil, e.wrapTransport(fmt.Errorf("rate limit wait: %w", err))
		}
	}

	start := time.Now()
	resp, err := e.http.Do(req.WithContext(ctx))
	metrics.ObserveDuration(metrics.QBORequestDuration, start, endpoint, req.Method)
	if err != nil {
		metrics.IncQBORequest(endpoint, req.Method, "error")
		e.logger.Warn(e.tag+".http_failed",
			zap.String("endpoint", endpoint),
			zap.String("url", req.URL.Redacted()),
			zap.Error(err))
		return nil, e.wrapTransport(err)
	}
	defer func() { _ = resp.Body.Close() }()

	metrics.IncQBORequest(endpoint, req.Method, strconv.Itoa(resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, e.wrapTransport(fmt.Errorf("read response body: %w", err))
	}
	elapsed := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e.logger.Warn(e.tag+".http_error",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.Duration("latency", elapsed))
		if e.errorHandler != nil {
			return nil, e.errorHandler(resp.StatusCode, body)
		}
		return nil, fmt.Errorf("%s returned %d", e.tag, resp.StatusCode)
	}

	e.logger.Debug(e.tag+".http_success",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed))

	return body, nil
}

// DoJSON executes req and JSON-decodes a 2xx body into out.
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, rateLimitKey, endpoint string, out any) error {
	body, err := e.Do(ctx, req, rateLimitKey, endpoint)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		e.logger.Warn(e.tag+".decode_failed",
			zap.String("endpoint", endpoint),
			zap.Error(err))
		return fmt.Errorf("%s decode %s response: %w", e.tag, endpoint, err)
	}
	return nil
}
