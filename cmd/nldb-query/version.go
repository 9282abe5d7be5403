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
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Ashwin143/Natural-Language-Database-Query-System-using-MCP/internal/mcp"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (MCP protocol %s, %s %s/%s)\n",
			mcp.ServerName, mcp.ServerVersion, mcp.ProtocolVersion,
			runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
