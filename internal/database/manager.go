/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package database

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/config"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/schema"
)

// Opener creates an adapter for a database configuration
type Opener func(ctx context.Context, dbConfig config.DatabaseConfig) (Adapter, error)

// Open picks the adapter for the configured driver
func Open(ctx context.Context, dbConfig config.DatabaseConfig) (Adapter, error) {
	switch dbConfig.Driver {
	case "postgres", "":
		return NewPostgresAdapter(ctx, dbConfig)
	case "sqlite", "sqlite3":
		return NewSQLiteAdapter(ctx, dbConfig)
	default:
		return nil, fmt.Errorf("unsupported driver %q", dbConfig.Driver)
	}
}

// Info describes a registered database
type Info struct {
	Name      string `json:"name"`
	Driver    string `json:"driver"`
	Connected bool   `json:"connected"`
	Default   bool   `json:"default"`
}

// Manager owns one adapter per registered database. Adapters are opened
// lazily on first use.
type Manager struct {
	mu            sync.RWMutex
	configs       map[string]config.DatabaseConfig
	order         []string
	adapters      map[string]Adapter
	defaultDBName string
	open          Opener
}

// NewManager creates a manager for the given databases
func NewManager(databases []config.DatabaseConfig, defaultName string) *Manager {
	return NewManagerWithOpener(databases, defaultName, Open)
}

// NewManagerWithOpener is NewManager with a custom adapter constructor
func NewManagerWithOpener(databases []config.DatabaseConfig, defaultName string, open Opener) *Manager {
	m := &Manager{
		configs:  make(map[string]config.DatabaseConfig),
		adapters: make(map[string]Adapter),
		open:     open,
	}
	for _, db := range databases {
		m.configs[db.Name] = db
		m.order = append(m.order, db.Name)
	}
	m.defaultDBName = defaultName
	if m.defaultDBName == "" && len(m.order) > 0 {
		m.defaultDBName = m.order[0]
	}
	return m
}

// Register installs an already-open adapter under name
func (m *Manager) Register(a Adapter, dbConfig config.DatabaseConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := a.Name()
	dbConfig.Name = name
	if _, exists := m.configs[name]; !exists {
		m.order = append(m.order, name)
	}
	m.configs[name] = dbConfig
	if old, ok := m.adapters[name]; ok && old != a {
		old.Close()
	}
	m.adapters[name] = a
	if m.defaultDBName == "" {
		m.defaultDBName = name
	}
}

// Adapter returns the adapter for name, connecting on first use. An empty
// name selects the default database.
func (m *Manager) Adapter(ctx context.Context, name string) (Adapter, error) {
	if name == "" {
		name = m.Default()
	}

	m.mu.RLock()
	if a, ok := m.adapters[name]; ok {
		m.mu.RUnlock()
		return a, nil
	}
	dbConfig, configured := m.configs[name]
	m.mu.RUnlock()

	if !configured {
		return nil, fmt.Errorf("database '%s' not configured", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if a, ok := m.adapters[name]; ok {
		return a, nil
	}

	a, err := m.open(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database '%s': %w", name, err)
	}
	m.adapters[name] = a
	return a, nil
}

// Discover implements schema.Source
func (m *Manager) Discover(ctx context.Context, name string) (*schema.Graph, error) {
	a, err := m.Adapter(ctx, name)
	if err != nil {
		return nil, err
	}
	return a.DiscoverMetadata(ctx)
}

// Config returns the configuration of a registered database
func (m *Manager) Config(name string) (config.DatabaseConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.configs[name]
	return c, ok
}

// Has reports whether name is registered
func (m *Manager) Has(name string) bool {
	_, ok := m.Config(name)
	return ok
}

// Default returns the default database name
func (m *Manager) Default() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultDBName
}

// Names returns registered database names in registration order
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// Describe lists registered databases
func (m *Manager) Describe() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Info, 0, len(m.order))
	for _, name := range m.order {
		_, connected := m.adapters[name]
		out = append(out, Info{
			Name:      name,
			Driver:    m.configs[name].Driver,
			Connected: connected,
			Default:   name == m.defaultDBName,
		})
	}
	return out
}

// Reconfigure applies a new database list. Adapters whose configuration
// changed or that were removed are closed; unchanged ones stay open. It
// returns the names whose cached schema is no longer valid.
func (m *Manager) Reconfigure(databases []config.DatabaseConfig, defaultName string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(map[string]config.DatabaseConfig, len(databases))
	order := make([]string, 0, len(databases))
	for _, db := range databases {
		next[db.Name] = db
		order = append(order, db.Name)
	}

	var stale []string
	for name, old := range m.configs {
		updated, kept := next[name]
		if kept && reflect.DeepEqual(old, updated) {
			continue
		}
		if a, open := m.adapters[name]; open {
			a.Close()
			delete(m.adapters, name)
		}
		stale = append(stale, name)
	}

	m.configs = next
	m.order = order
	m.defaultDBName = defaultName
	if m.defaultDBName == "" && len(order) > 0 {
		m.defaultDBName = order[0]
	}
	return stale
}

// Close closes all open adapters
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, a := range m.adapters {
		a.Close()
		delete(m.adapters, name)
	}
}
