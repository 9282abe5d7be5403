/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/config"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/logging"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/mcp"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/orchestrator"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/resources"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/tools"
)

var (
	watchConfig bool
	noWarmup    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the query tools to MCP clients over stdio",
	Long: `serve speaks the Model Context Protocol (JSON-RPC 2.0) on stdin and
stdout. Logs go to stderr.

With --watch-config, edits to the configuration file are applied to the
running server: databases, limits and matching settings are replaced for
queries that start after the change.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&watchConfig, "watch-config", false, "Reload the configuration file when it changes")
	serveCmd.Flags().BoolVar(&noWarmup, "no-warmup", false, "Skip discovering every schema at startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, cf, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	o := orchestrator.New(cfg, orchestrator.Deps{})
	defer o.Close()

	if watchConfig {
		rc := config.NewReloadableConfig(cfg, configPath(), cf)
		rc.OnReload(o.Reconfigure)
		watcher, err := config.WatchReloadable(rc)
		if err != nil {
			return fmt.Errorf("failed to watch configuration: %w", err)
		}
		watcher.Start()
		defer watcher.Stop()
		logging.Info("config_watch_enabled", "path", rc.GetPath())
	}

	if !noWarmup {
		go o.Warmup(cmd.Context())
	}

	server := mcp.NewServer(tools.NewQueryRegistry(o))
	server.SetResourceProvider(resources.NewQueryRegistry(o))
	return server.Run(cmd.Context())
}
