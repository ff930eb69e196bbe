// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/gvern/soxauto/internal/tool"
)

func newServeCommand(st *state) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the contract tools over MCP on stdio",
		Long: `Serve starts an MCP server on stdin/stdout exposing apply_schema_contract,
build_quality_rules and get_contract_hash. With --watch, edits under the
contracts directory are picked up without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := st.open(ctx); err != nil {
				return err
			}
			tools, err := tool.New(st.registry, st.engine)
			if err != nil {
				return err
			}

			if watch && st.cfg.S3Bucket == "" {
				go func() {
					if err := st.registry.Watch(ctx, st.cfg.ContractsDir); err != nil {
						st.logger.Error("contract watch stopped", "dir", st.cfg.ContractsDir, "error", err)
					}
				}()
			}

			st.logger.Info("mcp server starting", "name", tool.ServerName, "version", Version)
			return tool.NewServer(tools, Version).Run(ctx, &mcp.StdioTransport{})
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", true, "Reload the contract index when the contracts directory changes")
	return cmd
}
