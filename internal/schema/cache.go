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
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/apperr"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/logging"
)

// ErrNotDiscovered is returned by Get for a database with no snapshot yet
var ErrNotDiscovered = errors.New("schema not discovered")

// Source performs metadata discovery against a database
type Source interface {
	Discover(ctx context.Context, database string) (*Graph, error)
}

// RetryPolicy bounds discovery retries after a failure
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy is three attempts with exponential backoff capped at 2s
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: 200 * time.Millisecond,
	MaxInterval:     2 * time.Second,
}

// Options configures a Cache
type Options struct {
	Retry RetryPolicy
	// DiscoveryTimeout bounds one refresh including all retries
	DiscoveryTimeout time.Duration
}

// Cache holds the latest schema snapshot per database. Snapshots are never
// expired; a failed refresh keeps the previous one.
type Cache struct {
	source Source
	opts   Options
	group  singleflight.Group

	mu     sync.RWMutex
	graphs map[string]*Graph

	discoveries atomic.Int64
}

// NewCache creates a cache backed by source
func NewCache(source Source, opts Options) *Cache {
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetryPolicy
	}
	if opts.DiscoveryTimeout <= 0 {
		opts.DiscoveryTimeout = 30 * time.Second
	}
	return &Cache{
		source: source,
		opts:   opts,
		graphs: make(map[string]*Graph),
	}
}

// Get returns the cached snapshot without touching the database
func (c *Cache) Get(database string) (*Graph, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.graphs[database]
	if !ok {
		return nil, ErrNotDiscovered
	}
	return g, nil
}

// Discover returns the cached snapshot, discovering it first if needed
func (c *Cache) Discover(ctx context.Context, database string) (*Graph, error) {
	if g, err := c.Get(database); err == nil {
		return g, nil
	}
	return c.Refresh(ctx, database)
}

// Refresh rediscovers the schema. Concurrent calls for the same database
// share one discovery and observe the same snapshot or the same error. The
// discovery itself is detached from ctx so one caller giving up does not
// fail the others; ctx only bounds how long this caller waits.
func (c *Cache) Refresh(ctx context.Context, database string) (*Graph, error) {
	ch := c.group.DoChan(database, func() (interface{}, error) {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.DiscoveryTimeout)
		defer cancel()
		return c.discover(dctx, database)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Graph), nil
	}
}

func (c *Cache) discover(ctx context.Context, database string) (*Graph, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.Retry.InitialInterval
	b.MaxInterval = c.opts.Retry.MaxInterval
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(
		backoff.WithMaxRetries(b, uint64(c.opts.Retry.MaxAttempts-1)), ctx)

	start := time.Now()
	attempt := 0
	g, err := backoff.RetryNotifyWithData[*Graph](func() (*Graph, error) {
		attempt++
		c.discoveries.Add(1)
		g, err := c.source.Discover(ctx, database)
		if err != nil && ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return g, err
	}, policy, func(err error, wait time.Duration) {
		logging.Warn("schema_discovery_retry",
			"database", database,
			"attempt", attempt,
			"wait", wait.String(),
			"error", err)
	})
	if err != nil {
		logging.Error("schema_discovery_failed",
			"database", database,
			"attempts", attempt,
			"duration", time.Since(start).String(),
			"error", err)
		return nil, apperr.Wrapf(err, apperr.SchemaDiscoveryError,
			"schema discovery for %q failed after %d attempt(s)", database, attempt)
	}
	if g == nil {
		return nil, apperr.Newf(apperr.SchemaDiscoveryError,
			"schema discovery for %q returned no metadata", database)
	}

	c.mu.Lock()
	c.graphs[database] = g
	c.mu.Unlock()

	logging.Info("schema_discovered",
		"database", database,
		"tables", len(g.Tables),
		"columns", g.ColumnCount(),
		"relationships", len(g.Relationships),
		"duration", time.Since(start).String())
	return g, nil
}

// Forget drops the snapshot for a database that is no longer registered
func (c *Cache) Forget(database string) {
	c.mu.Lock()
	delete(c.graphs, database)
	c.mu.Unlock()
}

// Databases lists databases with a cached snapshot
func (c *Cache) Databases() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.graphs))
	for name := range c.graphs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Discoveries returns how many discovery attempts have reached the source
func (c *Cache) Discoveries() int64 {
	return c.discoveries.Load()
}
