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

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/formatter"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/history"
)

var (
	historyLimit    int
	historyFrequent bool
	historyClear    bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or clear previously asked questions",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	addFormatFlag(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show (1-100)")
	historyCmd.Flags().BoolVar(&historyFrequent, "frequent", false, "Group repeated questions and show the most frequent")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "Delete all recorded questions")
}

func runHistory(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := history.NewStore(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("failed to open query history: %w", err)
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	f := formatter.New(format, cfg.Limits.MaxDisplayRows)

	switch {
	case historyClear:
		n, err := store.Clear()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted %d entries from %s\n", n, store.Path())
	case historyFrequent:
		groups, err := store.Frequent(historyLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, f.RenderFrequent(groups))
	default:
		entries, err := store.Recent(historyLimit, flags.database)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, f.RenderHistory(entries))
	}
	return nil
}
