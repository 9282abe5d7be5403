/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package schema

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/apperr"
)

type fakeSource struct {
	calls   atomic.Int64
	delay   time.Duration
	failFor int64 // number of leading calls that fail
	err     error
}

func (f *fakeSource) Discover(ctx context.Context, database string) (*Graph, error) {
	n := f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n <= f.failFor {
		return nil, f.err
	}
	return NewGraph(database, shopTables(), shopRelationships(), nil)
}

func fastOptions(attempts int) Options {
	return Options{
		Retry: RetryPolicy{
			MaxAttempts:     attempts,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
		},
		DiscoveryTimeout: 5 * time.Second,
	}
}

func TestGetBeforeDiscovery(t *testing.T) {
	c := NewCache(&fakeSource{}, fastOptions(1))
	if _, err := c.Get("shop"); !errors.Is(err, ErrNotDiscovered) {
		t.Errorf("Get() error = %v, want ErrNotDiscovered", err)
	}
}

func TestDiscoverCaches(t *testing.T) {
	src := &fakeSource{}
	c := NewCache(src, fastOptions(1))

	g1, err := c.Discover(context.Background(), "shop")
	if err != nil {
		t.Fatal(err)
	}
	g2, err := c.Discover(context.Background(), "shop")
	if err != nil {
		t.Fatal(err)
	}
	if g1 != g2 {
		t.Error("expected the cached snapshot to be returned")
	}
	if src.calls.Load() != 1 {
		t.Errorf("source called %d times, want 1", src.calls.Load())
	}
	if got := c.Databases(); len(got) != 1 || got[0] != "shop" {
		t.Errorf("Databases() = %v", got)
	}
}

func TestRefreshIsSingleFlight(t *testing.T) {
	src := &fakeSource{delay: 50 * time.Millisecond}
	c := NewCache(src, fastOptions(1))

	const n = 20
	var wg sync.WaitGroup
	graphs := make([]*Graph, n)
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			graphs[i], errs[i] = c.Refresh(context.Background(), "shop")
		}(i)
	}
	close(start)
	wg.Wait()

	if got := src.calls.Load(); got != 1 {
		t.Errorf("discovery ran %d times, want 1", got)
	}
	if got := c.Discoveries(); got != 1 {
		t.Errorf("Discoveries() = %d, want 1", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if graphs[i] != graphs[0] {
			t.Errorf("caller %d observed a different snapshot", i)
		}
	}
}

func TestRefreshRetriesWithinBudget(t *testing.T) {
	src := &fakeSource{failFor: 2, err: errors.New("connection refused")}
	c := NewCache(src, fastOptions(3))

	if _, err := c.Refresh(context.Background(), "shop"); err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if src.calls.Load() != 3 {
		t.Errorf("source called %d times, want 3", src.calls.Load())
	}
}

func TestRefreshFailureKeepsStaleSnapshot(t *testing.T) {
	src := &fakeSource{}
	c := NewCache(src, fastOptions(2))

	first, err := c.Refresh(context.Background(), "shop")
	if err != nil {
		t.Fatal(err)
	}

	src.failFor = 100
	src.err = errors.New("permission denied for pg_class")
	_, err = c.Refresh(context.Background(), "shop")
	if !apperr.Is(err, apperr.SchemaDiscoveryError) {
		t.Fatalf("Refresh() error = %v, want SchemaDiscoveryError", err)
	}
	// one initial success plus two failing attempts
	if src.calls.Load() != 3 {
		t.Errorf("source called %d times, want 3", src.calls.Load())
	}

	stale, err := c.Get("shop")
	if err != nil || stale != first {
		t.Errorf("expected previous snapshot to survive, got %v, %v", stale, err)
	}
}

func TestRefreshCallerCancellation(t *testing.T) {
	src := &fakeSource{delay: 200 * time.Millisecond}
	c := NewCache(src, fastOptions(1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := c.Refresh(ctx, "shop"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Refresh() error = %v, want deadline exceeded", err)
	}

	// the detached discovery still completes and populates the cache
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := c.Get("shop"); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("detached discovery never populated the cache")
}

func TestForget(t *testing.T) {
	c := NewCache(&fakeSource{}, fastOptions(1))
	if _, err := c.Discover(context.Background(), "shop"); err != nil {
		t.Fatal(err)
	}
	c.Forget("shop")
	if _, err := c.Get("shop"); !errors.Is(err, ErrNotDiscovered) {
		t.Errorf("expected snapshot to be forgotten, got %v", err)
	}
}
