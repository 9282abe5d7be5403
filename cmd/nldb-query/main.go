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
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/config"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/formatter"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/logging"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/orchestrator"
)

// errReported means the failure was already written for the user
var errReported = errors.New("reported")

// globalFlags are shared by every subcommand
type globalFlags struct {
	configFile     string
	envFile        string
	database       string
	databaseURL    string
	llmProvider    string
	llmModel       string
	maxRows        int
	noHistory      bool
	historyPath    string
	logLevel       string
	format         string
	renderMarkdown bool
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:   "nldb-query",
	Short: "Ask questions of your databases in plain English",
	Long: `nldb-query turns an English question into a single read-only SQL
statement, checks it for safety, runs it against one of the configured
databases and prints the answer.

It can answer one question from the command line, run an interactive
shell, or serve the same operations to MCP clients over stdio.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", "", "Path to configuration file (default: nldb.yaml beside the binary)")
	pf.StringVar(&flags.envFile, "env-file", "", "Path to a .env file (default: .env in the working directory)")
	pf.StringVarP(&flags.database, "database", "d", "", "Database to query (default: the configured default database)")
	pf.StringVar(&flags.databaseURL, "database-url", "", "Connection URL registered as a database named 'default'")
	pf.StringVar(&flags.llmProvider, "llm-provider", "", "LLM provider: anthropic, openai or ollama")
	pf.StringVar(&flags.llmModel, "llm-model", "", "LLM model name")
	pf.IntVar(&flags.maxRows, "max-rows", 0, "Largest row limit a statement may have")
	pf.BoolVar(&flags.noHistory, "no-history", false, "Do not record questions in the query history")
	pf.StringVar(&flags.historyPath, "history-path", "", "Path to the query history database")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// addFormatFlag registers --format on commands that render output
func addFormatFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flags.format, "format", "f", "text", "Output format: text, markdown, json, csv or tsv")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// cliFlags maps the command line onto the configuration overrides
func cliFlags(cmd *cobra.Command) config.CLIFlags {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	return config.CLIFlags{
		ConfigFileSet:      changed("config"),
		ConfigFile:         flags.configFile,
		EnvFile:            flags.envFile,
		DefaultDatabase:    flags.database,
		DefaultDatabaseSet: changed("database"),
		DatabaseURL:        flags.databaseURL,
		DatabaseURLSet:     changed("database-url"),
		LLMProvider:        flags.llmProvider,
		LLMProviderSet:     changed("llm-provider"),
		LLMModel:           flags.llmModel,
		LLMModelSet:        changed("llm-model"),
		MaxRows:            flags.maxRows,
		MaxRowsSet:         changed("max-rows"),
		HistoryEnabled:     !flags.noHistory,
		HistoryEnabledSet:  changed("no-history"),
		HistoryPath:        flags.historyPath,
		HistoryPathSet:     changed("history-path"),
		LogLevel:           flags.logLevel,
		LogLevelSet:        changed("log-level"),
	}
}

// configPath is the file to load, defaulting to nldb.yaml beside the binary
func configPath() string {
	if flags.configFile != "" {
		return flags.configFile
	}
	exePath, err := os.Executable()
	if err != nil {
		return "nldb.yaml"
	}
	return config.GetDefaultConfigPath(exePath)
}

// loadConfig loads the configuration and applies its log level
func loadConfig(cmd *cobra.Command) (*config.Config, config.CLIFlags, error) {
	cf := cliFlags(cmd)
	cfg, err := config.LoadConfig(configPath(), cf)
	if err != nil {
		return nil, cf, fmt.Errorf("failed to load configuration: %w", err)
	}
	if level, ok := logging.ParseLevel(cfg.Logging.Level); ok {
		logging.SetLevel(level)
	}
	return cfg, cf, nil
}

// newOrchestrator loads the configuration and wires the pipeline
func newOrchestrator(cmd *cobra.Command) (*orchestrator.Orchestrator, *config.Config, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	return orchestrator.New(cfg, orchestrator.Deps{}), cfg, nil
}

func outputFormat() (formatter.Format, error) {
	return formatter.ParseFormat(flags.format)
}

// reportFailure writes a pipeline failure to stderr in the chosen format
func reportFailure(cmd *cobra.Command, o *orchestrator.Orchestrator, format formatter.Format, err error) error {
	var rendered string
	if qe := asQueryError(err); qe != nil {
		rendered = o.Formatter(format).RenderError(qe)
	} else {
		rendered = "Error: " + err.Error()
	}
	fmt.Fprintln(cmd.ErrOrStderr(), rendered)
	return errReported
}
