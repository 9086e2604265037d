package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Checker-Finance/qbo-connector/pkg/model"
)

// ErrNotFound is returned when a realm has no stored credentials or snapshot.
var ErrNotFound = errors.New("store: not found")

const (
	credentialsPrefix = "qbo:credentials:"
	snapshotPrefix    = "qbo:snapshot:"
	statePrefix       = "qbo:oauth_state:"
)

// Store persists credential bundles, sync snapshots and OAuth state nonces.
type Store interface {
	SaveCredentials(ctx context.Context, b model.CredentialBundle) error
	LoadCredentials(ctx context.Context, realmID string) (*model.CredentialBundle, error)
	DeleteCredentials(ctx context.Context, realmID string) error
	SaveSnapshot(ctx context.Context, snap model.Snapshot) error
	LatestSnapshot(ctx context.Context, realmID string) (*model.Snapshot, error)
	PutState(ctx context.Context, state string, ttl time.Duration) error
	ConsumeState(ctx context.Context, state string) (bool, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// HybridStore keeps everything in Redis and, when Postgres is configured,
// mirrors sync snapshots to integrations.qbo_sync_snapshot.
type HybridStore struct {
	redis  *redis.Client
	PG     *pgxpool.Pool
	logger *zap.Logger
	now    func() time.Time
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Addr     string
	DB       int
	Password string
}

// NewHybrid creates a Redis-first store with optional Postgres snapshot mirroring.
func NewHybrid(ctx context.Context, rc RedisConfig, pgURL string, pgPoolConfig PGPoolConfig, logger *zap.Logger) (*HybridStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		DB:       rc.DB,
		Password: rc.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		if pgPoolConfig.MaxConns > 0 {
			cfg.MaxConns = pgPoolConfig.MaxConns
		}
		if pgPoolConfig.MinConns > 0 {
			cfg.MinConns = pgPoolConfig.MinConns
		}
		if pgPoolConfig.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
		}
		if pgPoolConfig.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
		}
		if pgPoolConfig.HealthCheckPeriod > 0 {
			cfg.HealthCheckPeriod = pgPoolConfig.HealthCheckPeriod
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return New(rdb, pgPool, logger), nil
}

// New wraps existing clients. pg may be nil.
func New(rdb *redis.Client, pg *pgxpool.Pool, logger *zap.Logger) *HybridStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridStore{redis: rdb, PG: pg, logger: logger, now: time.Now}
}

// SaveCredentials stores b keyed by realm. The key expires with the refresh
// token when its lifetime is known.
func (s *HybridStore) SaveCredentials(ctx context.Context, b model.CredentialBundle) error {
	if b.RealmID == "" {
		return errors.New("store: credentials without realm id")
	}
	var ttl time.Duration
	if !b.RefreshExpiresAt.IsZero() {
		ttl = b.RefreshExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return s.DeleteCredentials(ctx, b.RealmID)
		}
	}
	if err := s.setJSON(ctx, credentialsPrefix+b.RealmID, b, ttl); err != nil {
		s.logger.Error("store.redis.save_credentials_failed", zap.String("realm_id", b.RealmID), zap.Error(err))
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// LoadCredentials returns the stored bundle for realmID or ErrNotFound.
func (s *HybridStore) LoadCredentials(ctx context.Context, realmID string) (*model.CredentialBundle, error) {
	var b model.CredentialBundle
	if err := s.getJSON(ctx, credentialsPrefix+realmID, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// DeleteCredentials removes the stored bundle. Deleting a missing key is not an error.
func (s *HybridStore) DeleteCredentials(ctx context.Context, realmID string) error {
	if err := s.redis.Del(ctx, credentialsPrefix+realmID).Err(); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}

// SaveSnapshot replaces the realm's snapshot wholesale. Postgres is written
// first so a failed durable write never leaves a newer snapshot in Redis.
func (s *HybridStore) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	data, err := json.Marshal(snap.Data)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if s.PG != nil {
		_, err := s.PG.Exec(ctx, `
			INSERT INTO integrations.qbo_sync_snapshot (realm_id, captured_at, data, updated_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (realm_id)
			DO UPDATE SET
				captured_at = EXCLUDED.captured_at,
				data = EXCLUDED.data,
				updated_at = NOW();
		`, snap.RealmID, snap.CapturedAt, data)
		if err != nil {
			s.logger.Error("store.pg.snapshot_upsert_failed", zap.String("realm_id", snap.RealmID), zap.Error(err))
			return fmt.Errorf("upsert snapshot: %w", err)
		}
	}

	if err := s.setJSON(ctx, snapshotPrefix+snap.RealmID, snap, 0); err != nil {
		s.logger.Error("store.redis.snapshot_set_failed", zap.String("realm_id", snap.RealmID), zap.Error(err))
		return fmt.Errorf("cache snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot reads the realm's snapshot from Redis, falling back to
// Postgres and re-caching on a miss.
func (s *HybridStore) LatestSnapshot(ctx context.Context, realmID string) (*model.Snapshot, error) {
	var snap model.Snapshot
	err := s.getJSON(ctx, snapshotPrefix+realmID, &snap)
	if err == nil {
		return &snap, nil
	}
	if !errors.Is(err, ErrNotFound) || s.PG == nil {
		return nil, err
	}

	var raw []byte
	row := s.PG.QueryRow(ctx, `
		SELECT realm_id, captured_at, data
		FROM integrations.qbo_sync_snapshot
		WHERE realm_id = $1;
	`, realmID)
	if err := row.Scan(&snap.RealmID, &snap.CapturedAt, &raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if err := json.Unmarshal(raw, &snap.Data); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	if err := s.setJSON(ctx, snapshotPrefix+realmID, snap, 0); err != nil {
		s.logger.Warn("store.redis.snapshot_recache_failed", zap.String("realm_id", realmID), zap.Error(err))
	}
	return &snap, nil
}

// PutState records an OAuth state nonce for ttl.
func (s *HybridStore) PutState(ctx context.Context, state string, ttl time.Duration) error {
	return s.redis.Set(ctx, statePrefix+state, "1", ttl).Err()
}

// ConsumeState deletes the nonce and reports whether it was present.
func (s *HybridStore) ConsumeState(ctx context.Context, state string) (bool, error) {
	err := s.redis.GetDel(ctx, statePrefix+state).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *HybridStore) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, ttl).Err()
}

func (s *HybridStore) getJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
