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
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/orchestrator"
	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/query"
)

var withPlan bool

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer one question",
	Example: `  nldb-query query "how many customers are in the west region?"
  nldb-query query -d sales -f csv "top 10 products by revenue this year"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var explainCmd = &cobra.Command{
	Use:   "explain <question>",
	Short: "Show the SQL for a question without running it",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExplain,
}

func init() {
	addFormatFlag(queryCmd)
	addFormatFlag(explainCmd)
	explainCmd.Flags().BoolVar(&withPlan, "plan", false, "Include the database's query plan")
}

func asQueryError(err error) *query.Error {
	var qe *query.Error
	if errors.As(err, &qe) {
		return qe
	}
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	o, _, err := newOrchestrator(cmd)
	if err != nil {
		return err
	}
	defer o.Close()

	result, err := o.AnalyzeAndExecute(cmd.Context(), orchestrator.Request{
		Question: strings.Join(args, " "),
		Database: flags.database,
		Format:   format,
	})
	if err != nil {
		return reportFailure(cmd, o, format, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.Text)
	return nil
}

func runExplain(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	o, _, err := newOrchestrator(cmd)
	if err != nil {
		return err
	}
	defer o.Close()

	x, err := o.Explain(cmd.Context(), orchestrator.Request{
		Question: strings.Join(args, " "),
		Database: flags.database,
		Format:   format,
		WithPlan: withPlan,
	})
	if err != nil {
		return reportFailure(cmd, o, format, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), x.Text)
	return nil
}
