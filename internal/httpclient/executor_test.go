package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/qbo-connector/internal/rate"
)

var errTransport = errors.New("transport")

func newExec(client *http.Client) *Executor {
	return New(zap.NewNop(), nil, client, "test", nil, func(err error) error {
		return fmt.Errorf("%w: %v", errTransport, err)
	})
}

// ─── Basic success ────────────────────────────────────────────────────────────

func TestDoJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"result": "ok"})
	}))
	defer srv.Close()

	exec := newExec(srv.Client())
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)

	var out map[string]string
	require.NoError(t, exec.DoJSON(context.Background(), req, "realm", "query", &out))
	assert.Equal(t, "ok", out["result"])
}

func TestDo_ReturnsRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"Header":{"ReportName":"ProfitAndLoss"}}`))
	}))
	defer srv.Close()

	exec := newExec(srv.Client())
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)

	body, err := exec.Do(context.Background(), req, "realm", "report")
	require.NoError(t, err)
	assert.JSONEq(t, `{"Header":{"ReportName":"ProfitAndLoss"}}`, string(body))
}

// ─── Failures are single-attempt ──────────────────────────────────────────────

func TestDoJSON_5xxNotRetried(t *testing.T) {
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		count.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	exec := newExec(srv.Client())
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)

	err := exec.DoJSON(context.Background(), req, "realm", "query", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.EqualValues(t, 1, count.Load(), "requests are never retried")
}

func TestDoJSON_ErrorHandlerReceivesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":"INVALID"}`))
	}))
	defer srv.Close()

	exec := New(zap.NewNop(), nil, srv.Client(), "test", func(status int, body []byte) error {
		return fmt.Errorf("vendor %d: %s", status, body)
	}, nil)
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL, nil)

	err := exec.DoJSON(context.Background(), req, "realm", "query", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "INVALID")
}

func TestDo_RedirectIsNotSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Location", "https://login.example.com/")
		w.WriteHeader(http.StatusFound)
		_, _ = w.Write([]byte(`<html>moved</html>`))
	}))
	defer srv.Close()

	client := srv.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	var gotStatus int
	exec := New(zap.NewNop(), nil, client, "test", func(status int, _ []byte) error {
		gotStatus = status
		return fmt.Errorf("vendor %d", status)
	}, nil)
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)

	body, err := exec.Do(context.Background(), req, "realm", "query")
	require.Error(t, err)
	assert.Nil(t, body)
	assert.Equal(t, http.StatusFound, gotStatus)
}

// ─── Transport failures ───────────────────────────────────────────────────────

func TestDo_TransportErrorWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	exec := newExec(&http.Client{})
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)

	_, err := exec.Do(context.Background(), req, "realm", "query")
	require.Error(t, err)
	assert.ErrorIs(t, err, errTransport)
}

func TestDo_RateWaitCancelledIsTransportError(t *testing.T) {
	mgr := rate.NewManager(rate.Config{RequestsPerSecond: 1, Burst: 1})
	require.True(t, mgr.GetLimiter("realm").Allow())

	exec := New(zap.NewNop(), mgr, http.DefaultClient, "test", nil, func(err error) error {
		return fmt.Errorf("%w: %v", errTransport, err)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://127.0.0.1:1", nil)

	_, err := exec.Do(ctx, req, "realm", "query")
	require.Error(t, err)
	assert.ErrorIs(t, err, errTransport)
}

// ─── JSON decode error ────────────────────────────────────────────────────────

func TestDoJSON_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("not-json"))
	}))
	defer srv.Close()

	exec := newExec(srv.Client())
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)

	var out map[string]string
	err := exec.DoJSON(context.Background(), req, "realm", "query", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode query response")
}

func TestDoJSON_EmptyBodyIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	exec := newExec(srv.Client())
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL, nil)

	var out map[string]string
	require.NoError(t, exec.DoJSON(context.Background(), req, "realm", "revoke", &out))
	assert.Nil(t, out)
}
