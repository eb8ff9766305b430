package sharedcache_test

import (
	"context"
	"testing"
	"time"

	"github.com/contextgate/gateway/pkg/sharedcache"
)

func TestSetAndGet(t *testing.T) {
	c := sharedcache.New(sharedcache.Config{MaxSize: 2, DefaultTTL: time.Hour}, nil)
	ctx := context.Background()

	conv := sharedcache.PublishedConversation{ChatID: "chat-1", Title: "Trip"}
	if err := c.Set(ctx, "share-1", conv, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := c.Get(ctx, "share-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ChatID != "chat-1" || got.ShareID != "share-1" {
		t.Fatalf("unexpected value: %+v", got)
	}
}

func TestGet_ViewCountIncrementsByOnePerFetch(t *testing.T) {
	c := sharedcache.New(sharedcache.DefaultConfig(), nil)
	ctx := context.Background()
	c.Set(ctx, "share-1", sharedcache.PublishedConversation{ChatID: "chat-1"}, 0)

	for i, want := range []int{1, 2, 3} {
		got, err := c.Get(ctx, "share-1")
		if err != nil {
			t.Fatalf("Get #%d: %v", i, err)
		}
		if got.ViewCount != want {
			t.Fatalf("Get #%d: ViewCount = %d, want %d", i, got.ViewCount, want)
		}
	}
}

func TestSet_RepublishingPreservesViewCount(t *testing.T) {
	c := sharedcache.New(sharedcache.DefaultConfig(), nil)
	ctx := context.Background()
	c.Set(ctx, "share-1", sharedcache.PublishedConversation{Title: "v1"}, 0)
	c.Get(ctx, "share-1")
	c.Get(ctx, "share-1")

	c.Set(ctx, "share-1", sharedcache.PublishedConversation{Title: "v2"}, 0)
	got, err := c.Get(ctx, "share-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "v2" {
		t.Fatalf("expected republished content to win, got %+v", got)
	}
	if got.ViewCount != 3 {
		t.Fatalf("expected view count to survive republishing and keep incrementing, got %d", got.ViewCount)
	}
}

func TestGet_MissingIsNotFound(t *testing.T) {
	c := sharedcache.New(sharedcache.DefaultConfig(), nil)
	_, err := c.Get(context.Background(), "nope")
	if err == nil {
		t.Fatalf("expected an error for a missing key")
	}
}

func TestGet_ExpiredEntryIsNotFound(t *testing.T) {
	c := sharedcache.New(sharedcache.DefaultConfig(), nil)
	ctx := context.Background()
	c.Set(ctx, "share-1", sharedcache.PublishedConversation{}, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	if _, err := c.Get(ctx, "share-1"); err == nil {
		t.Fatalf("expected expired entry to be treated as not found")
	}
}

func TestSet_EvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	c := sharedcache.New(sharedcache.Config{MaxSize: 2, DefaultTTL: time.Hour}, nil)
	ctx := context.Background()

	c.Set(ctx, "a", sharedcache.PublishedConversation{}, 0)
	c.Set(ctx, "b", sharedcache.PublishedConversation{}, 0)
	c.Get(ctx, "a") // touch a, making b the least recently used
	c.Set(ctx, "c", sharedcache.PublishedConversation{}, 0)

	if c.Has(ctx, "b") {
		t.Fatalf("expected b to be evicted as least recently used")
	}
	if !c.Has(ctx, "a") || !c.Has(ctx, "c") {
		t.Fatalf("expected a and c to remain")
	}
}

func TestHitRate(t *testing.T) {
	c := sharedcache.New(sharedcache.DefaultConfig(), nil)
	ctx := context.Background()
	c.Set(ctx, "a", sharedcache.PublishedConversation{}, 0)

	c.Get(ctx, "a")
	c.Get(ctx, "a")
	c.Get(ctx, "missing")

	stats := c.Stats()
	if stats.HitCount != 2 || stats.MissCount != 1 {
		t.Fatalf("expected 2 hits / 1 miss, got %+v", stats)
	}
	want := 2.0 / 3.0 * 100
	if diff := stats.HitRatePct - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected hit rate %.4f, got %.4f", want, stats.HitRatePct)
	}
}

func TestBatchDeleteAndClearAll(t *testing.T) {
	c := sharedcache.New(sharedcache.DefaultConfig(), nil)
	ctx := context.Background()
	c.Set(ctx, "a", sharedcache.PublishedConversation{}, 0)
	c.Set(ctx, "b", sharedcache.PublishedConversation{}, 0)

	if err := c.BatchDelete(ctx, []string{"a", "b"}); err != nil {
		t.Fatalf("BatchDelete: %v", err)
	}
	if c.Has(ctx, "a") || c.Has(ctx, "b") {
		t.Fatalf("expected both entries removed")
	}

	c.Set(ctx, "c", sharedcache.PublishedConversation{}, 0)
	if err := c.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if c.Stats().TotalKeys != 0 {
		t.Fatalf("expected an empty cache after ClearAll")
	}
}

func TestSetTTLAndGetTTL(t *testing.T) {
	c := sharedcache.New(sharedcache.DefaultConfig(), nil)
	ctx := context.Background()
	c.Set(ctx, "a", sharedcache.PublishedConversation{}, time.Minute)

	if err := c.SetTTL(ctx, "a", 10*time.Second); err != nil {
		t.Fatalf("SetTTL: %v", err)
	}
	ttl, err := c.GetTTL(ctx, "a")
	if err != nil {
		t.Fatalf("GetTTL: %v", err)
	}
	if ttl <= 0 || ttl > 10*time.Second {
		t.Fatalf("expected a ttl close to 10s, got %v", ttl)
	}
}

func TestHealthCheck(t *testing.T) {
	c := sharedcache.New(sharedcache.DefaultConfig(), nil)
	report := c.HealthCheck(context.Background())
	if !report.Healthy {
		t.Fatalf("expected a healthy report, got %+v", report)
	}
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	c := sharedcache.New(sharedcache.Config{MaxSize: 10, DefaultTTL: time.Hour, SweepInterval: 10 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.Set(ctx, "a", sharedcache.PublishedConversation{}, time.Millisecond)
	c.Start(ctx)
	defer c.Stop()

	time.Sleep(50 * time.Millisecond)
	if c.Stats().TotalKeys != 0 {
		t.Fatalf("expected the background sweep to remove the expired entry")
	}
}
