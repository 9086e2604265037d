package secrets

import (
	"context"
	"sync"
	"testing"
	"time"
)

type appCreds struct {
	ClientID     string
	ClientSecret string
}

func TestCache_PutAndGet(t *testing.T) {
	cache := NewCache[appCreds](time.Minute)
	key := "prod|quickbooks"

	if _, ok := cache.Get(key); ok {
		t.Fatal("expected miss on empty cache")
	}

	cache.Put(key, appCreds{ClientID: "id-1", ClientSecret: "sec-1"})

	got, ok := cache.Get(key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.ClientID != "id-1" {
		t.Errorf("expected ClientID=id-1, got %s", got.ClientID)
	}
}

func TestCache_Expiration(t *testing.T) {
	cache := NewCache[appCreds](time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Put("k", appCreds{ClientID: "id"})
	now = now.Add(2 * time.Minute)

	if _, ok := cache.Get("k"); ok {
		t.Fatal("expected expired cache entry")
	}
	if cache.Len() != 0 {
		t.Errorf("expected expired entry to be evicted, len=%d", cache.Len())
	}
}

func TestCache_Bust(t *testing.T) {
	cache := NewCache[appCreds](time.Minute)
	cache.Put("k", appCreds{ClientID: "id"})

	cache.Bust("k")
	if _, ok := cache.Get("k"); ok {
		t.Fatal("expected cache miss after bust")
	}
}

func TestCache_CleanupExpired(t *testing.T) {
	cache := NewCache[appCreds](time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Put("old", appCreds{})
	now = now.Add(30 * time.Second)
	cache.Put("new", appCreds{})
	now = now.Add(45 * time.Second)

	cache.cleanupExpired()

	if cache.Len() != 1 {
		t.Fatalf("expected 1 entry after cleanup, got %d", cache.Len())
	}
	if _, ok := cache.Get("new"); !ok {
		t.Error("expected fresh entry to survive cleanup")
	}
}

func TestCache_StartCleanerStopsOnCancel(t *testing.T) {
	cache := NewCache[appCreds](time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		cache.StartCleaner(ctx, 10*time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleaner did not stop after cancel")
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := NewCache[appCreds](time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache.Put("k", appCreds{ClientID: "id"})
			cache.Get("k")
		}()
	}
	wg.Wait()

	if _, ok := cache.Get("k"); !ok {
		t.Fatal("expected cache hit after concurrent writes")
	}
}
