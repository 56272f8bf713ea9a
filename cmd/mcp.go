package cmd

import (
	"github.com/spf13/cobra"

	"github.com/stevehiehn/deployspec/internal/logger"
	"github.com/stevehiehn/deployspec/internal/mcp"
)

var (
	mcpSSEAddr string
	version    = "dev"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server on stdio, or over SSE with --sse",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts := mcp.Options{Version: version, Compiler: newCompiler()}
		store, err := openArtefacts(cmd)
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
			opts.Artefacts = store
		}

		if mcpSSEAddr != "" {
			logger.FromContext(cmd.Context()).Info("SSE server listening", "addr", mcpSSEAddr)
			return mcp.ServeSSE(mcpSSEAddr, opts)
		}
		return mcp.Serve(opts)
	},
}

func init() {
	mcpCmd.Flags().StringVar(&mcpSSEAddr, "sse", "", "Serve over SSE on this address, e.g. 127.0.0.1:8931")
	rootCmd.AddCommand(mcpCmd)
}
