/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package shell is the interactive question prompt
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/database"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/formatter"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/history"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/metrics"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/orchestrator"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/query"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/schema"
)

// DefaultHistoryFile holds line-editing history, not query history
const DefaultHistoryFile = "~/.nldb_history"

// Backend is the query service behind the shell
type Backend interface {
	AnalyzeAndExecute(ctx context.Context, req orchestrator.Request) (*query.Result, error)
	Explain(ctx context.Context, req orchestrator.Request) (*query.Explanation, error)
	Schema(ctx context.Context, name string) (*schema.Graph, error)
	RefreshSchema(ctx context.Context, name string) (*schema.Graph, error)
	Databases() []database.Info
	Metrics() metrics.Snapshot
	ResetMetrics()
	History() *history.Store
	Formatter(format formatter.Format) *formatter.Formatter
}

// Options configures a shell session
type Options struct {
	// Database is the starting database; empty means the default
	Database       string
	HistoryFile    string
	NoColor        bool
	RenderMarkdown bool
}

// Shell reads questions and slash commands until the user leaves
type Shell struct {
	backend     Backend
	ui          *UI
	rl          *readline.Instance
	historyFile string
	database    string
	format      formatter.Format
}

// New creates a shell writing to out
func New(backend Backend, out io.Writer, opts Options) *Shell {
	db := opts.Database
	if db == "" {
		for _, info := range backend.Databases() {
			if info.Default {
				db = info.Name
			}
		}
	}
	format := formatter.FormatText
	if opts.RenderMarkdown {
		format = formatter.FormatMarkdown
	}
	historyFile := opts.HistoryFile
	if historyFile == "" {
		historyFile = DefaultHistoryFile
	}
	return &Shell{
		backend:     backend,
		ui:          NewUI(out, opts.NoColor, opts.RenderMarkdown),
		historyFile: expandHome(historyFile),
		database:    db,
		format:      format,
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func (s *Shell) render() *formatter.Formatter {
	return s.backend.Formatter(s.format)
}

// markdown reports whether output in the current format is markdown
func (s *Shell) markdown() bool {
	return s.format == formatter.FormatMarkdown
}

// Run reads input until quit, end of input or ctx is cancelled
func (s *Shell) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            s.ui.Prompt(s.database),
		HistoryFile:       s.historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()
	s.rl = rl

	// Closing readline makes Readline return
	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	s.ui.PrintWelcome(len(s.backend.Databases()))

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) || ctx.Err() != nil {
				s.ui.PrintSystemMessage("Goodbye!")
				return nil
			}
			return fmt.Errorf("readline error: %w", err)
		}

		if !s.HandleLine(ctx, line) {
			s.ui.PrintSystemMessage("Goodbye!")
			return nil
		}
	}
}

// HandleLine processes one line of input. It returns false when the
// user asked to leave.
func (s *Shell) HandleLine(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	switch strings.ToLower(input) {
	case "":
		return true
	case "quit", "exit", "/quit", "/exit":
		return false
	case "help":
		s.ui.PrintHelp()
		return true
	}

	if cmd := ParseSlashCommand(input); cmd != nil {
		if !s.HandleSlashCommand(ctx, cmd) {
			s.ui.PrintError(fmt.Sprintf("Unknown command: /%s (type /help for available commands)", cmd.Command))
		}
		return true
	}

	s.ask(ctx, input)
	s.ui.PrintSeparator()
	return true
}

func (s *Shell) ask(ctx context.Context, question string) {
	result, err := s.backend.AnalyzeAndExecute(ctx, orchestrator.Request{
		Question: question,
		Database: s.database,
		Format:   s.format,
	})
	if err != nil {
		s.printFailure(err)
		return
	}
	s.ui.PrintAnswer(result.Text, s.markdown())
}
