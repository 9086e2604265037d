package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/qbo-connector/pkg/model"
)

func newTestStore(t *testing.T) (*HybridStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb, nil, zap.NewNop()), mr
}

// --- Credentials ---

func TestCredentials_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	defer mr.Close()

	issued := time.Now().UTC().Truncate(time.Second)
	b := model.NewCredentialBundle("at", "rt", "9130", 3600, 0, issued)

	require.NoError(t, store.SaveCredentials(ctx, b))

	got, err := store.LoadCredentials(ctx, "9130")
	require.NoError(t, err)
	assert.Equal(t, "at", got.AccessToken)
	assert.Equal(t, "rt", got.RefreshToken)
	assert.True(t, b.ExpiresAt.Equal(got.ExpiresAt))
	assert.Equal(t, time.Duration(0), mr.TTL(credentialsPrefix+"9130"), "no ttl without refresh expiry")
}

func TestCredentials_TTLFollowsRefreshExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	defer mr.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	b := model.NewCredentialBundle("at", "rt", "9130", 3600, 86400, now)
	require.NoError(t, store.SaveCredentials(ctx, b))
	assert.Equal(t, 24*time.Hour, mr.TTL(credentialsPrefix+"9130"))

	mr.FastForward(25 * time.Hour)
	_, err := store.LoadCredentials(ctx, "9130")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCredentials_ExpiredRefreshTokenDeletes(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	defer mr.Close()

	now := time.Now()
	b := model.NewCredentialBundle("at", "rt", "9130", 3600, 0, now)
	require.NoError(t, store.SaveCredentials(ctx, b))

	b.RefreshExpiresAt = now.Add(-time.Minute)
	require.NoError(t, store.SaveCredentials(ctx, b))

	_, err := store.LoadCredentials(ctx, "9130")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCredentials_MissingRealm(t *testing.T) {
	store, mr := newTestStore(t)
	defer mr.Close()

	assert.Error(t, store.SaveCredentials(context.Background(), model.CredentialBundle{AccessToken: "a"}))
}

func TestCredentials_Delete(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	defer mr.Close()

	require.NoError(t, store.SaveCredentials(ctx, model.CredentialBundle{RealmID: "1", AccessToken: "a"}))
	require.NoError(t, store.DeleteCredentials(ctx, "1"))
	require.NoError(t, store.DeleteCredentials(ctx, "1"), "deleting twice is fine")

	_, err := store.LoadCredentials(ctx, "1")
	assert.ErrorIs(t, err, ErrNotFound)
}

// --- Snapshots ---

func TestSnapshot_ReplacesWholesale(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	defer mr.Close()

	first := model.Snapshot{
		RealmID:    "1",
		CapturedAt: time.Now().UTC(),
		Data:       map[string]any{"accounts": []any{map[string]any{"id": "1"}}, "customers": []any{}},
	}
	require.NoError(t, store.SaveSnapshot(ctx, first))

	second := model.Snapshot{
		RealmID:    "1",
		CapturedAt: first.CapturedAt.Add(time.Minute),
		Data:       map[string]any{"invoices": []any{}},
	}
	require.NoError(t, store.SaveSnapshot(ctx, second))

	got, err := store.LatestSnapshot(ctx, "1")
	require.NoError(t, err)
	assert.True(t, second.CapturedAt.Equal(got.CapturedAt))
	assert.Contains(t, got.Data, "invoices")
	assert.NotContains(t, got.Data, "accounts", "previous categories must not be merged in")
}

func TestSnapshot_NotFound(t *testing.T) {
	store, mr := newTestStore(t)
	defer mr.Close()

	_, err := store.LatestSnapshot(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshot_RedisDown(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	err := store.SaveSnapshot(context.Background(), model.Snapshot{RealmID: "1", Data: map[string]any{}})
	assert.Error(t, err)
}

// --- OAuth state ---

func TestState_ConsumeOnce(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	defer mr.Close()

	require.NoError(t, store.PutState(ctx, "abc", 10*time.Minute))

	ok, err := store.ConsumeState(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ConsumeState(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok, "state is single use")
}

func TestState_Expires(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	defer mr.Close()

	require.NoError(t, store.PutState(ctx, "abc", 10*time.Minute))
	mr.FastForward(11 * time.Minute)

	ok, err := store.ConsumeState(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

// --- HealthCheck / Close ---

func TestHealthCheck_Success(t *testing.T) {
	store, mr := newTestStore(t)
	defer mr.Close()

	require.NoError(t, store.HealthCheck(context.Background()))
}

func TestHealthCheck_RedisNil(t *testing.T) {
	store := &HybridStore{redis: nil}
	err := store.HealthCheck(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis not initialized")
}

func TestHealthCheck_RedisDown(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	err := store.HealthCheck(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestClose_RedisOnly(t *testing.T) {
	store, mr := newTestStore(t)
	defer mr.Close()

	require.NoError(t, store.Close())
}

func TestClose_NilComponents(t *testing.T) {
	store := &HybridStore{}
	require.NoError(t, store.Close())
}

func TestNewHybrid_RedisUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewHybrid(context.Background(), RedisConfig{Addr: addr}, "", PGPoolConfig{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestNewHybrid_RedisOnly(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s, err := NewHybrid(context.Background(), RedisConfig{Addr: mr.Addr()}, "", PGPoolConfig{}, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	assert.Nil(t, s.PG)
}
