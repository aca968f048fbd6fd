// Package cache implements the content-addressed analysis cache: an in-memory
// entry map with lazy TTL expiry, an explicit single-flight registry keyed by
// fingerprint, and optional durable backing stores (Postgres or JSON files).
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"agentic_signals/pkg/models"
)

// ErrConflict is returned by Put when a live entry exists and the caller did
// not ask to overwrite. Invalidation is always explicit, never silent.
var ErrConflict = errors.New("cache entry exists and is not expired")

// Entry is one cached result with its absolute expiry.
type Entry struct {
	Fingerprint string                `json:"fingerprint"`
	Result      models.AnalysisResult `json:"result"`
	ExpiresAt   time.Time             `json:"expires_at"`
}

// BackingStore is an optional durable medium behind the in-memory cache. The
// in-flight registry always sits in front of it.
type BackingStore interface {
	Load(ctx context.Context, fingerprint string) (*Entry, error)
	Store(ctx context.Context, entry Entry) error
}

// flight tracks one in-progress computation. Waiters block on done and then
// read result/err; the fields are written exactly once before done closes.
type flight struct {
	done   chan struct{}
	result models.AnalysisResult
	err    error
}

// AnalysisCache guarantees at most one concurrent computation per fingerprint.
// One mutex guards both the check-or-register-in-flight step and entry
// insertion; observing a miss and registering the flight happen atomically,
// which is what prevents two workers from both calling the model.
type AnalysisCache struct {
	mu       sync.Mutex
	entries  map[string]Entry
	inflight map[string]*flight
	backing  BackingStore

	now func() time.Time // test hook
}

// New creates a cache. backing may be nil for a purely in-memory cache.
func New(backing BackingStore) *AnalysisCache {
	return &AnalysisCache{
		entries:  make(map[string]Entry),
		inflight: make(map[string]*flight),
		backing:  backing,
		now:      time.Now,
	}
}

// Get returns the live cached result for a fingerprint. Expired entries
// behave as a miss and are evicted opportunistically. A miss in memory falls
// through to the backing store.
func (c *AnalysisCache) Get(ctx context.Context, fingerprint string) (models.AnalysisResult, bool) {
	c.mu.Lock()
	if entry, ok := c.entries[fingerprint]; ok {
		if c.now().Before(entry.ExpiresAt) {
			c.mu.Unlock()
			return entry.Result, true
		}
		delete(c.entries, fingerprint)
	}
	c.mu.Unlock()

	if c.backing == nil {
		return models.AnalysisResult{}, false
	}
	entry, err := c.backing.Load(ctx, fingerprint)
	if err != nil || entry == nil {
		return models.AnalysisResult{}, false
	}
	if !c.now().Before(entry.ExpiresAt) {
		return models.AnalysisResult{}, false
	}

	c.mu.Lock()
	c.entries[fingerprint] = *entry
	c.mu.Unlock()
	return entry.Result, true
}

// Put stores a result with an absolute expiry of now+ttl. Overwriting a live
// entry requires overwrite=true; otherwise Put fails with ErrConflict.
func (c *AnalysisCache) Put(ctx context.Context, fingerprint string, result models.AnalysisResult, ttl time.Duration, overwrite bool) error {
	c.mu.Lock()
	if existing, ok := c.entries[fingerprint]; ok && c.now().Before(existing.ExpiresAt) && !overwrite {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrConflict, fingerprint)
	}
	entry := Entry{Fingerprint: fingerprint, Result: result, ExpiresAt: c.now().Add(ttl)}
	c.entries[fingerprint] = entry
	c.mu.Unlock()

	if c.backing != nil {
		if err := c.backing.Store(ctx, entry); err != nil {
			return fmt.Errorf("failed to persist cache entry: %w", err)
		}
	}
	return nil
}

// Do returns the cached result for fingerprint or computes it via fn with
// single-flight semantics: concurrent callers with the same fingerprint share
// one computation and one outcome. A failed computation is shared with the
// waiters as the same error and is not cached; waiters do not retry.
func (c *AnalysisCache) Do(ctx context.Context, fingerprint string, ttl time.Duration, fn func(context.Context) (models.AnalysisResult, error)) (models.AnalysisResult, error) {
	c.mu.Lock()

	if entry, ok := c.entries[fingerprint]; ok {
		if c.now().Before(entry.ExpiresAt) {
			c.mu.Unlock()
			return entry.Result, nil
		}
		delete(c.entries, fingerprint)
	}

	if f, ok := c.inflight[fingerprint]; ok {
		c.mu.Unlock()
		select {
		case <-f.done:
			return f.result, f.err
		case <-ctx.Done():
			return models.AnalysisResult{}, ctx.Err()
		}
	}

	f := &flight{done: make(chan struct{})}
	c.inflight[fingerprint] = f
	c.mu.Unlock()

	// Backing-store lookup happens outside the lock; it may block on I/O.
	if c.backing != nil {
		if entry, err := c.backing.Load(ctx, fingerprint); err == nil && entry != nil && c.now().Before(entry.ExpiresAt) {
			c.mu.Lock()
			c.entries[fingerprint] = *entry
			delete(c.inflight, fingerprint)
			c.mu.Unlock()
			f.result = entry.Result
			close(f.done)
			return entry.Result, nil
		}
	}

	result, err := fn(ctx)

	c.mu.Lock()
	delete(c.inflight, fingerprint)
	var entry Entry
	if err == nil {
		entry = Entry{Fingerprint: fingerprint, Result: result, ExpiresAt: c.now().Add(ttl)}
		c.entries[fingerprint] = entry
	}
	c.mu.Unlock()

	f.result = result
	f.err = err
	close(f.done)

	if err == nil && c.backing != nil {
		if storeErr := c.backing.Store(ctx, entry); storeErr != nil {
			fmt.Printf("[WARNING] Failed to persist cache entry %s: %v\n", fingerprint, storeErr)
		}
	}

	return result, err
}

// Flush waits for every in-flight computation to settle. Call on teardown so
// no waiter is abandoned mid-flight.
func (c *AnalysisCache) Flush(ctx context.Context) error {
	c.mu.Lock()
	pending := make([]*flight, 0, len(c.inflight))
	for _, f := range c.inflight {
		pending = append(pending, f)
	}
	c.mu.Unlock()

	for _, f := range pending {
		select {
		case <-f.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Len returns the number of resident entries, expired or not.
func (c *AnalysisCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
