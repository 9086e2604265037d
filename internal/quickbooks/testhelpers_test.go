package quickbooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/qbo-connector/pkg/model"
)

const testRealm = "4620816365"

// mockTransport is an http.RoundTripper that delegates to a handler function.
type mockTransport struct {
	fn func(*http.Request) (*http.Response, error)
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.fn(req)
}

// jsonResponse builds a fake *http.Response with the given status and JSON body.
func jsonResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

// writeJSON encodes v as JSON into w.
func writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic("test helper writeJSON: " + err.Error())
	}
}

// fakeTokens implements TokenSource and counts calls.
type fakeTokens struct {
	mu         sync.Mutex
	refreshes  int
	revoked    []string
	resp       *TokenResponse
	refreshErr error
	revokeErr  error
}

func (f *fakeTokens) Refresh(_ context.Context, refreshToken string) (*TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.resp, nil
}

func (f *fakeTokens) Revoke(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, token)
	return f.revokeErr
}

func (f *fakeTokens) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

// memCredStore is an in-memory CredentialStore.
type memCredStore struct {
	mu      sync.Mutex
	saved   []model.CredentialBundle
	deleted []string
	saveErr error
}

func (m *memCredStore) SaveCredentials(_ context.Context, b model.CredentialBundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, b)
	return nil
}

func (m *memCredStore) DeleteCredentials(_ context.Context, realmID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, realmID)
	return nil
}

// freshBundle returns a bundle valid for another hour relative to now.
func freshBundle(now time.Time) model.CredentialBundle {
	return model.CredentialBundle{
		AccessToken:  "access-old",
		RefreshToken: "refresh-old",
		RealmID:      testRealm,
		ExpiresAt:    now.Add(time.Hour),
	}
}

// newTestSession wires a Session against srv with a fixed clock.
func newTestSession(t *testing.T, srv *httptest.Server, bundle model.CredentialBundle, tokens TokenSource, now time.Time, opts ...SessionOption) *Session {
	t.Helper()
	exec := NewExecutor(zap.NewNop(), nil, srv.Client())
	opts = append([]SessionOption{WithClock(func() time.Time { return now })}, opts...)
	return NewSession(zap.NewNop(), bundle, tokens, exec, srv.URL+"/v3", opts...)
}
