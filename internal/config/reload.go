/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"fmt"
	"sync"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/logging"
)

// ReloadableConfig wraps a Config with thread-safe access and an explicit
// reload path. Nothing reloads implicitly; callers invoke Reload.
type ReloadableConfig struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	cliFlags CLIFlags
	onReload []func(*Config)
}

// NewReloadableConfig creates a new reloadable configuration
func NewReloadableConfig(config *Config, path string, cliFlags CLIFlags) *ReloadableConfig {
	return &ReloadableConfig{
		config:   config,
		path:     path,
		cliFlags: cliFlags,
	}
}

// Get returns the current configuration (read-only access)
func (rc *ReloadableConfig) Get() *Config {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.config
}

// Reload reloads the configuration from the file
// Returns an error if the reload fails, but keeps the old config
func (rc *ReloadableConfig) Reload() error {
	rc.mu.Lock()

	if rc.path == "" {
		rc.mu.Unlock()
		return fmt.Errorf("no configuration file path set")
	}

	newConfig, err := LoadConfig(rc.path, rc.cliFlags)
	if err != nil {
		rc.mu.Unlock()
		logging.Warn("config_reload_failed", "path", rc.path, "error", err)
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	rc.logChanges(newConfig)

	rc.config = newConfig
	callbacks := append([]func(*Config){}, rc.onReload...)
	rc.mu.Unlock()

	// outside the lock so callbacks may call Get
	for _, callback := range callbacks {
		callback(newConfig)
	}

	logging.Info("config_reloaded", "path", rc.path, "databases", len(newConfig.Databases))
	return nil
}

// logChanges notes changes that are applied differently from a plain swap
func (rc *ReloadableConfig) logChanges(newConfig *Config) {
	old := rc.config

	if old.LLM.Provider != newConfig.LLM.Provider {
		logging.Info("config_llm_provider_changed", "from", old.LLM.Provider, "to", newConfig.LLM.Provider)
	}
	if old.LLM.Model != newConfig.LLM.Model {
		logging.Info("config_llm_model_changed", "from", old.LLM.Model, "to", newConfig.LLM.Model)
	}
	if len(old.Databases) != len(newConfig.Databases) {
		logging.Info("config_database_count_changed",
			"from", len(old.Databases), "to", len(newConfig.Databases))
	}
	if old.History.Path != newConfig.History.Path {
		logging.Warn("config_history_path_changed_requires_restart", "path", newConfig.History.Path)
	}
}

// OnReload registers a callback to be called when configuration is reloaded
func (rc *ReloadableConfig) OnReload(fn func(*Config)) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.onReload = append(rc.onReload, fn)
}

// GetPath returns the configuration file path
func (rc *ReloadableConfig) GetPath() string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.path
}
