package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"agentic_signals/pkg/models"
)

func testResult(signal models.Signal) models.AnalysisResult {
	return models.AnalysisResult{
		Signal:     signal,
		Confidence: 0.8,
		Reasoning:  "test reasoning",
		ComputedAt: time.Now(),
	}
}

func TestPutGetRoundtrip(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	if err := c.Put(ctx, "fp1", testResult(models.SignalBullish), time.Hour, false); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	res, ok := c.Get(ctx, "fp1")
	if !ok {
		t.Fatal("Expected cache hit")
	}
	if res.Signal != models.SignalBullish {
		t.Errorf("Expected bullish, got %s", res.Signal)
	}

	if _, ok := c.Get(ctx, "fp2"); ok {
		t.Error("Expected miss for unknown fingerprint")
	}
}

func TestPutConflict(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	if err := c.Put(ctx, "fp1", testResult(models.SignalBullish), time.Hour, false); err != nil {
		t.Fatalf("First Put failed: %v", err)
	}

	err := c.Put(ctx, "fp1", testResult(models.SignalBearish), time.Hour, false)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}

	if err := c.Put(ctx, "fp1", testResult(models.SignalBearish), time.Hour, true); err != nil {
		t.Fatalf("Overwrite Put failed: %v", err)
	}
	res, _ := c.Get(ctx, "fp1")
	if res.Signal != models.SignalBearish {
		t.Errorf("Overwrite did not take effect, got %s", res.Signal)
	}
}

func TestLazyExpiry(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	current := time.Unix(1700000000, 0)
	c.now = func() time.Time { return current }

	if err := c.Put(ctx, "fp1", testResult(models.SignalNeutral), time.Minute, false); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, ok := c.Get(ctx, "fp1"); !ok {
		t.Fatal("Expected hit before expiry")
	}

	current = current.Add(2 * time.Minute)
	if _, ok := c.Get(ctx, "fp1"); ok {
		t.Error("Expected miss after expiry")
	}
	if c.Len() != 0 {
		t.Errorf("Expired entry should be evicted on read, still have %d entries", c.Len())
	}

	// An expired key is free for a plain Put again.
	if err := c.Put(ctx, "fp1", testResult(models.SignalBullish), time.Minute, false); err != nil {
		t.Errorf("Put over expired entry should not conflict: %v", err)
	}
}

func TestDoSingleFlight(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})

	fn := func(ctx context.Context) (models.AnalysisResult, error) {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-release
		return testResult(models.SignalBullish), nil
	}

	const waiters = 8
	var wg sync.WaitGroup
	results := make([]models.AnalysisResult, waiters)
	errs := make([]error, waiters)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = c.Do(ctx, "fp1", time.Hour, fn)
	}()
	<-started

	for i := 1; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Do(ctx, "fp1", time.Hour, func(ctx context.Context) (models.AnalysisResult, error) {
				atomic.AddInt32(&calls, 1)
				return testResult(models.SignalBearish), nil
			})
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("Expected exactly 1 computation, got %d", got)
	}
	for i := 0; i < waiters; i++ {
		if errs[i] != nil {
			t.Fatalf("Waiter %d got error: %v", i, errs[i])
		}
		if results[i].Signal != models.SignalBullish {
			t.Errorf("Waiter %d got %s, want the first caller's bullish result", i, results[i].Signal)
		}
	}
}

func TestDoErrorSharedNotCached(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	failure := fmt.Errorf("provider unavailable")
	var calls int32

	_, err := c.Do(ctx, "fp1", time.Hour, func(ctx context.Context) (models.AnalysisResult, error) {
		atomic.AddInt32(&calls, 1)
		return models.AnalysisResult{}, failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("Expected the computation error, got %v", err)
	}
	if c.Len() != 0 {
		t.Error("Failed computation must not be cached")
	}

	// A later call retries from scratch.
	res, err := c.Do(ctx, "fp1", time.Hour, func(ctx context.Context) (models.AnalysisResult, error) {
		atomic.AddInt32(&calls, 1)
		return testResult(models.SignalNeutral), nil
	})
	if err != nil {
		t.Fatalf("Second Do failed: %v", err)
	}
	if res.Signal != models.SignalNeutral {
		t.Errorf("Expected neutral, got %s", res.Signal)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("Expected 2 computations, got %d", calls)
	}
}

func TestDoHitSkipsComputation(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	if err := c.Put(ctx, "fp1", testResult(models.SignalBullish), time.Hour, false); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	res, err := c.Do(ctx, "fp1", time.Hour, func(ctx context.Context) (models.AnalysisResult, error) {
		t.Fatal("Computation must not run on a hit")
		return models.AnalysisResult{}, nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if res.Signal != models.SignalBullish {
		t.Errorf("Expected cached bullish, got %s", res.Signal)
	}
}

func TestDoWaiterCancellation(t *testing.T) {
	c := New(nil)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		c.Do(context.Background(), "fp1", time.Hour, func(ctx context.Context) (models.AnalysisResult, error) {
			close(started)
			<-release
			return testResult(models.SignalBullish), nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Do(ctx, "fp1", time.Hour, func(ctx context.Context) (models.AnalysisResult, error) {
		return models.AnalysisResult{}, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Cancelled waiter should return context.Canceled, got %v", err)
	}
	close(release)
}

func TestFlushDrainsInflight(t *testing.T) {
	c := New(nil)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		c.Do(context.Background(), "fp1", time.Hour, func(ctx context.Context) (models.AnalysisResult, error) {
			close(started)
			<-release
			return testResult(models.SignalBullish), nil
		})
	}()
	<-started

	flushed := make(chan error, 1)
	go func() { flushed <- c.Flush(context.Background()) }()

	select {
	case <-flushed:
		t.Fatal("Flush returned while a computation was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-flushed:
		if err != nil {
			t.Fatalf("Flush failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Flush did not complete after in-flight work settled")
	}
}

func TestFileStoreRoundtrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := context.Background()

	entry := Entry{
		Fingerprint: "abc123",
		Result:      testResult(models.SignalBearish),
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	if err := store.Store(ctx, entry); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	loaded, err := store.Load(ctx, "abc123")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("Expected entry, got nil")
	}
	if loaded.Result.Signal != models.SignalBearish {
		t.Errorf("Expected bearish, got %s", loaded.Result.Signal)
	}

	missing, err := store.Load(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("Missing file should be a nil miss, got %v, %v", missing, err)
	}
}

func TestCacheFallsThroughToBacking(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	ctx := context.Background()

	warm := New(store)
	if err := warm.Put(ctx, "fp1", testResult(models.SignalBullish), time.Hour, false); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// A fresh cache over the same directory sees the durable entry.
	cold := New(store)
	res, ok := cold.Get(ctx, "fp1")
	if !ok {
		t.Fatal("Expected hit from backing store")
	}
	if res.Signal != models.SignalBullish {
		t.Errorf("Expected bullish, got %s", res.Signal)
	}
}
