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
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
	ColorBold   = "\033[1m"
)

// maxRenderWidth caps markdown wrapping so result tables stay readable
const maxRenderWidth = 120

// UI writes shell output
type UI struct {
	out            io.Writer
	noColor        bool
	RenderMarkdown bool
}

// NewUI creates a UI writing to out
func NewUI(out io.Writer, noColor bool, renderMarkdown bool) *UI {
	return &UI{
		out:            out,
		noColor:        noColor,
		RenderMarkdown: renderMarkdown,
	}
}

// colorize applies color if colors are enabled
func (ui *UI) colorize(color, text string) string {
	if ui.noColor {
		return text
	}
	return color + text + ColorReset
}

// PrintWelcome prints the banner
func (ui *UI) PrintWelcome(databases int) {
	banner := fmt.Sprintf(`
nldb-query interactive shell
Ask a question about your data, or type /help for commands.
%d database(s) configured. Type 'quit' or 'exit' to leave.
`, databases)
	fmt.Fprintln(ui.out, ui.colorize(ColorCyan, banner))
}

// Prompt returns the readline prompt naming the current database
func (ui *UI) Prompt(database string) string {
	return ui.colorize(ColorGreen+ColorBold, database+"> ")
}

// PrintAnswer prints rendered output, through glamour when it is markdown
// and rendering is enabled
func (ui *UI) PrintAnswer(text string, markdown bool) {
	if markdown && ui.RenderMarkdown {
		style := "dark"
		if ui.noColor {
			style = "notty"
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithStylePath(style),
			glamour.WithWordWrap(renderWidth()),
		)
		if err == nil {
			if rendered, err := r.Render(text); err == nil {
				fmt.Fprint(ui.out, rendered)
				return
			}
		}
		// If rendering fails, fall back to plain text
	}
	fmt.Fprintln(ui.out, text)
}

// PrintSystemMessage prints a status line
func (ui *UI) PrintSystemMessage(text string) {
	fmt.Fprintln(ui.out, ui.colorize(ColorYellow, "System: ")+text)
}

// PrintError prints a failure
func (ui *UI) PrintError(text string) {
	fmt.Fprintln(ui.out, ui.colorize(ColorRed, "Error: ")+text)
}

// PrintSeparator prints a separator line
func (ui *UI) PrintSeparator() {
	fmt.Fprintln(ui.out, ui.colorize(ColorGray, strings.Repeat("─", 60)))
}

// renderWidth is the terminal width less a margin, capped at maxRenderWidth
func renderWidth() int {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 2 {
		width = w - 2
	}
	if width > maxRenderWidth {
		width = maxRenderWidth
	}
	return width
}

// PrintHelp prints the command summary
func (ui *UI) PrintHelp() {
	help := `
Ask a question in plain English to query the current database.

Commands:
  /help                 - Show this help message
  /databases            - List the configured databases
  /use <database>       - Switch the current database
  /explain <question>   - Show the SQL for a question without running it
  /schema [database]    - Show tables, columns and relationships
  /refresh [database]   - Rediscover a database's schema
  /metrics              - Show query counters
  /reset-metrics        - Reset query counters
  /history [limit]      - Show recent questions
  /format <format>      - Set the output format (text, markdown, json, csv, tsv)
  quit, exit            - Leave the shell

History navigation:
  Up/Down   - Navigate through previous input
  Ctrl+R    - Reverse search history
`
	fmt.Fprintln(ui.out, ui.colorize(ColorCyan, help))
}
