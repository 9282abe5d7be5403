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
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show the tables, columns and relationships of a database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSchema(cmd, false)
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Rediscover a database's schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSchema(cmd, true)
	},
}

func init() {
	addFormatFlag(schemaCmd)
}

func runSchema(cmd *cobra.Command, refresh bool) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	o, _, err := newOrchestrator(cmd)
	if err != nil {
		return err
	}
	defer o.Close()

	lookup := o.Schema
	if refresh {
		lookup = o.RefreshSchema
	}
	g, err := lookup(cmd.Context(), flags.database)
	if err != nil {
		return reportFailure(cmd, o, format, err)
	}

	if refresh {
		fmt.Fprintf(cmd.OutOrStdout(), "Schema refreshed for %s: %d tables, %d relationships\n",
			g.Database, len(g.Tables), len(g.Relationships))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), o.Formatter(format).RenderSchema(g))
	return nil
}
