// Package sharedcache is a bounded, TTL-indexed, LRU-evicting in-process
// cache of published conversations, with hit-rate statistics and a
// health check surface.
package sharedcache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf16"

	"github.com/contextgate/gateway/pkg/contextengine/chatmodel"
	"github.com/contextgate/gateway/pkg/errx"
	"github.com/contextgate/gateway/pkg/logx"
)

var errorRegistry = errx.NewRegistry("SHAREDCACHE")

var ErrNotFound = errorRegistry.Register(
	"NOT_FOUND",
	errx.TypeNotFound,
	http.StatusNotFound,
	"Published conversation not found or expired",
)

// PublishedConversation is the value type this cache holds: a read-only
// snapshot of a conversation made public under an opaque share id.
type PublishedConversation struct {
	ShareID     string
	ChatID      string
	Title       string
	Messages    []chatmodel.Message
	PublishedAt time.Time
	ViewCount   int
}

// Backend is an optional write-through store a Cache mirrors entries to,
// so published conversations survive a process restart or are visible to
// other processes. The in-process map remains the source of truth for
// reads; a Backend is never consulted on Get.
type Backend interface {
	Set(ctx context.Context, shareID string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, shareID string) error
	Clear(ctx context.Context) error
}

type entry struct {
	shareID   string
	value     PublishedConversation
	expiresAt time.Time
	ttl       time.Duration
}

// Config tunes a Cache's capacity, default TTL, and sweep interval.
type Config struct {
	MaxSize       int
	DefaultTTL    time.Duration
	SweepInterval time.Duration
}

// DefaultConfig bounds the cache at 10,000 entries with a one-hour
// default TTL and a five-minute sweep, per the cache's contract.
func DefaultConfig() Config {
	return Config{
		MaxSize:       10000,
		DefaultTTL:    time.Hour,
		SweepInterval: 5 * time.Minute,
	}
}

// Cache is the Shared-Conversation Cache.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*list.Element // shareID -> element holding *entry
	order   *list.List               // front = most recently used

	cfg     Config
	backend Backend

	hits      uint64
	misses    uint64
	startedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Cache. Call Start to launch the background TTL sweeper.
func New(cfg Config, backend Backend) *Cache {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig().MaxSize
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultConfig().DefaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	return &Cache{
		entries:   make(map[string]*list.Element),
		order:     list.New(),
		cfg:       cfg,
		backend:   backend,
		startedAt: time.Now(),
	}
}

// Start launches the background sweeper that removes expired entries
// every SweepInterval. It returns immediately; the sweeper runs until
// ctx is cancelled or Stop is called.
func (c *Cache) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.sweepLoop(sweepCtx)
}

// Stop cancels the sweeper and clears the map.
func (c *Cache) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	c.ClearAll(context.Background())
}

func (c *Cache) sweepLoop(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweepExpired()
		}
	}
}

func (c *Cache) sweepExpired() {
	now := time.Now()
	c.mu.Lock()
	var expired []string
	for id, el := range c.entries {
		if e := el.Value.(*entry); now.After(e.expiresAt) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		c.removeLocked(id)
	}
	n := len(expired)
	c.mu.Unlock()

	if n > 0 {
		logx.Infof("sharedcache: swept %d expired entries", n)
	}
}

// Get returns the published conversation for shareID, or ErrNotFound if
// absent or expired. A hit refreshes the entry's LRU position and
// increments the conversation's view count by exactly one.
func (c *Cache) Get(_ context.Context, shareID string) (PublishedConversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[shareID]
	if !ok {
		atomic.AddUint64(&c.misses, 1)
		return PublishedConversation{}, errorRegistry.New(ErrNotFound)
	}
	e := el.Value.(*entry)
	if time.Now().After(e.expiresAt) {
		c.removeLocked(shareID)
		atomic.AddUint64(&c.misses, 1)
		return PublishedConversation{}, errorRegistry.New(ErrNotFound)
	}

	c.order.MoveToFront(el)
	atomic.AddUint64(&c.hits, 1)
	e.value.ViewCount++
	return e.value, nil
}

// Set stores a conversation under shareID. ttl of zero uses the cache's
// DefaultTTL. If the cache is at capacity and shareID is new, the least
// recently used entry is evicted first.
func (c *Cache) Set(ctx context.Context, shareID string, conv PublishedConversation, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	conv.ShareID = shareID

	c.mu.Lock()
	if el, ok := c.entries[shareID]; ok {
		e := el.Value.(*entry)
		conv.ViewCount = e.value.ViewCount // re-publishing never resets view count
		e.value = conv
		e.ttl = ttl
		e.expiresAt = time.Now().Add(ttl)
		c.order.MoveToFront(el)
	} else {
		if c.order.Len() >= c.cfg.MaxSize {
			c.evictLRULocked()
		}
		e := &entry{shareID: shareID, value: conv, ttl: ttl, expiresAt: time.Now().Add(ttl)}
		el := c.order.PushFront(e)
		c.entries[shareID] = el
	}
	c.mu.Unlock()

	if c.backend != nil {
		data, err := json.Marshal(conv)
		if err != nil {
			return err
		}
		if err := c.backend.Set(ctx, shareID, data, ttl); err != nil {
			logx.WithError(err).Warn("sharedcache: backend write-through failed")
		}
	}
	return nil
}

// Has reports whether shareID is present and unexpired, without
// affecting hit/miss counters or LRU order.
func (c *Cache) Has(_ context.Context, shareID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[shareID]
	if !ok {
		return false
	}
	return !time.Now().After(el.Value.(*entry).expiresAt)
}

// Delete removes one entry.
func (c *Cache) Delete(ctx context.Context, shareID string) error {
	c.mu.Lock()
	c.removeLocked(shareID)
	c.mu.Unlock()

	if c.backend != nil {
		if err := c.backend.Delete(ctx, shareID); err != nil {
			logx.WithError(err).Warn("sharedcache: backend delete failed")
		}
	}
	return nil
}

// BatchDelete removes many entries at once.
func (c *Cache) BatchDelete(ctx context.Context, shareIDs []string) error {
	for _, id := range shareIDs {
		if err := c.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ClearAll empties the cache.
func (c *Cache) ClearAll(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]*list.Element)
	c.order = list.New()
	c.mu.Unlock()

	if c.backend != nil {
		if err := c.backend.Clear(ctx); err != nil {
			logx.WithError(err).Warn("sharedcache: backend clear failed")
		}
	}
	return nil
}

// SetTTL updates the remaining TTL on an existing entry without changing
// its value.
func (c *Cache) SetTTL(_ context.Context, shareID string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[shareID]
	if !ok {
		return errorRegistry.New(ErrNotFound)
	}
	e := el.Value.(*entry)
	e.ttl = ttl
	e.expiresAt = time.Now().Add(ttl)
	return nil
}

// GetTTL returns the remaining time-to-live for shareID.
func (c *Cache) GetTTL(_ context.Context, shareID string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[shareID]
	if !ok {
		return 0, errorRegistry.New(ErrNotFound)
	}
	e := el.Value.(*entry)
	remaining := time.Until(e.expiresAt)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Stats is the snapshot Stats() returns.
type Stats struct {
	TotalKeys    int
	MemoryUsage  string
	HitCount     uint64
	MissCount    uint64
	HitRatePct   float64
	UptimeMillis int64
}

// Stats reports cache occupancy, a memory-usage estimate, and the
// running hit-rate.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	total := len(c.entries)
	var bytesUsed int
	for id, el := range c.entries {
		bytesUsed += memoryEstimate(id, el.Value.(*entry).value)
	}
	c.mu.Unlock()

	hits := atomic.LoadUint64(&c.hits)
	misses := atomic.LoadUint64(&c.misses)
	var hitRate float64
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses) * 100
	}

	return Stats{
		TotalKeys:    total,
		MemoryUsage:  humanizeBytes(bytesUsed),
		HitCount:     hits,
		MissCount:    misses,
		HitRatePct:   hitRate,
		UptimeMillis: time.Since(c.startedAt).Milliseconds(),
	}
}

// HealthReport is HealthCheck()'s result.
type HealthReport struct {
	Healthy   bool
	LatencyMs int64
	Error     string
}

// HealthCheck performs a cheap write-then-delete round trip to confirm
// the cache accepts operations within a reasonable latency.
func (c *Cache) HealthCheck(ctx context.Context) HealthReport {
	start := time.Now()
	const probeKey = "__sharedcache_healthcheck__"

	if err := c.Set(ctx, probeKey, PublishedConversation{ChatID: "healthcheck"}, time.Second); err != nil {
		return HealthReport{Healthy: false, LatencyMs: time.Since(start).Milliseconds(), Error: err.Error()}
	}
	if err := c.Delete(ctx, probeKey); err != nil {
		return HealthReport{Healthy: false, LatencyMs: time.Since(start).Milliseconds(), Error: err.Error()}
	}
	return HealthReport{Healthy: true, LatencyMs: time.Since(start).Milliseconds()}
}

func (c *Cache) removeLocked(shareID string) {
	el, ok := c.entries[shareID]
	if !ok {
		return
	}
	c.order.Remove(el)
	delete(c.entries, shareID)
}

func (c *Cache) evictLRULocked() {
	back := c.order.Back()
	if back == nil {
		return
	}
	e := back.Value.(*entry)
	c.order.Remove(back)
	delete(c.entries, e.shareID)
}

func memoryEstimate(key string, value PublishedConversation) int {
	keyBytes := len(utf16.Encode([]rune(key))) * 2
	data, err := json.Marshal(value)
	if err != nil {
		return keyBytes
	}
	return keyBytes + len(data)
}

func humanizeBytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for n := n / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	units := "KMGTPE"
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), units[exp])
}
