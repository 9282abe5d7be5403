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
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/shell"
)

var (
	noColor       bool
	plainOutput   bool
	shellHistFile string
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive question prompt",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

func init() {
	shellCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	shellCmd.Flags().BoolVar(&plainOutput, "plain", false, "Print plain text tables instead of rendered markdown")
	shellCmd.Flags().StringVar(&shellHistFile, "history-file", shell.DefaultHistoryFile, "Line editing history file")
}

func runShell(cmd *cobra.Command, args []string) error {
	o, _, err := newOrchestrator(cmd)
	if err != nil {
		return err
	}
	defer o.Close()

	tty := term.IsTerminal(int(os.Stdout.Fd()))
	s := shell.New(o, cmd.OutOrStdout(), shell.Options{
		Database:       flags.database,
		HistoryFile:    shellHistFile,
		NoColor:        noColor || !tty,
		RenderMarkdown: !plainOutput && tty,
	})
	return s.Run(cmd.Context())
}
