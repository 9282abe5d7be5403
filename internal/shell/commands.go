/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package shell

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/formatter"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/orchestrator"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/query"
)

// SlashCommand represents a parsed slash command
type SlashCommand struct {
	Command string
	Args    []string
}

// ParseSlashCommand parses a slash command from user input
func ParseSlashCommand(input string) *SlashCommand {
	if !strings.HasPrefix(input, "/") {
		return nil
	}

	parts := parseQuotedArgs(strings.TrimPrefix(input, "/"))
	if len(parts) == 0 {
		return nil
	}

	return &SlashCommand{
		Command: strings.ToLower(parts[0]),
		Args:    parts[1:],
	}
}

// parseQuotedArgs splits on spaces, keeping quoted strings together
func parseQuotedArgs(input string) []string {
	var args []string
	var current strings.Builder
	var quote rune
	hasArg := false

	for _, r := range input {
		switch {
		case quote == 0 && (r == '"' || r == '\''):
			quote = r
			hasArg = true
		case r == quote:
			quote = 0
		case quote == 0 && (r == ' ' || r == '\t'):
			if hasArg {
				args = append(args, current.String())
				current.Reset()
				hasArg = false
			}
		default:
			current.WriteRune(r)
			hasArg = true
		}
	}
	if hasArg {
		args = append(args, current.String())
	}
	return args
}

// HandleSlashCommand runs a slash command, returning false when the
// command is unknown
func (s *Shell) HandleSlashCommand(ctx context.Context, cmd *SlashCommand) bool {
	if cmd == nil {
		return false
	}

	switch cmd.Command {
	case "help":
		s.ui.PrintHelp()
	case "databases":
		s.ui.PrintAnswer(s.render().RenderDatabases(s.backend.Databases()), s.markdown())
	case "use":
		s.handleUse(cmd.Args)
	case "explain":
		s.handleExplain(ctx, strings.Join(cmd.Args, " "))
	case "schema":
		s.handleSchema(ctx, cmd.Args, false)
	case "refresh":
		s.handleSchema(ctx, cmd.Args, true)
	case "metrics":
		s.ui.PrintAnswer(s.render().RenderMetrics(s.backend.Metrics()), s.markdown())
	case "reset-metrics":
		s.backend.ResetMetrics()
		s.ui.PrintSystemMessage("Metrics reset")
	case "history":
		s.handleHistory(cmd.Args)
	case "format":
		s.handleFormat(cmd.Args)
	default:
		return false
	}
	return true
}

func (s *Shell) handleUse(args []string) {
	if len(args) != 1 {
		s.ui.PrintError("Usage: /use <database>")
		return
	}
	for _, db := range s.backend.Databases() {
		if db.Name == args[0] {
			s.database = db.Name
			if s.rl != nil {
				s.rl.SetPrompt(s.ui.Prompt(s.database))
			}
			s.ui.PrintSystemMessage("Using database: " + db.Name)
			return
		}
	}
	s.ui.PrintError(fmt.Sprintf("Database %q is not configured (see /databases)", args[0]))
}

func (s *Shell) handleExplain(ctx context.Context, question string) {
	if question == "" {
		s.ui.PrintError("Usage: /explain <question>")
		return
	}
	x, err := s.backend.Explain(ctx, orchestrator.Request{
		Question: question,
		Database: s.database,
		Format:   s.format,
		WithPlan: true,
	})
	if err != nil {
		s.printFailure(err)
		return
	}
	s.ui.PrintAnswer(x.Text, s.markdown())
}

func (s *Shell) handleSchema(ctx context.Context, args []string, refresh bool) {
	name := s.database
	if len(args) > 0 {
		name = args[0]
	}

	lookup := s.backend.Schema
	if refresh {
		lookup = s.backend.RefreshSchema
	}
	g, err := lookup(ctx, name)
	if err != nil {
		s.printFailure(err)
		return
	}
	if refresh {
		s.ui.PrintSystemMessage(fmt.Sprintf("Schema refreshed for %s: %d tables, %d relationships",
			g.Database, len(g.Tables), len(g.Relationships)))
		return
	}
	s.ui.PrintAnswer(s.render().RenderSchema(g), s.markdown())
}

func (s *Shell) handleHistory(args []string) {
	store := s.backend.History()
	if store == nil {
		s.ui.PrintError("Query history is disabled in the configuration")
		return
	}
	limit := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			s.ui.PrintError("Usage: /history [limit]")
			return
		}
		limit = n
	}
	entries, err := store.Recent(limit, "")
	if err != nil {
		s.ui.PrintError(err.Error())
		return
	}
	s.ui.PrintAnswer(s.render().RenderHistory(entries), s.markdown())
}

func (s *Shell) handleFormat(args []string) {
	if len(args) != 1 {
		s.ui.PrintSystemMessage("Output format: " + string(s.format))
		return
	}
	format, err := formatter.ParseFormat(args[0])
	if err != nil {
		s.ui.PrintError(err.Error())
		return
	}
	s.format = format
	s.ui.PrintSystemMessage("Output format: " + string(format))
}

// printFailure prints a query failure with its suggestions
func (s *Shell) printFailure(err error) {
	var qe *query.Error
	if errors.As(err, &qe) {
		s.ui.PrintError(qe.String())
		return
	}
	s.ui.PrintError(err.Error())
}
