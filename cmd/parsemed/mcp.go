package main

import (
	"github.com/dgallion1/parsemed/internal/mcpserver"
	"github.com/dgallion1/parsemed/internal/sections"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve segment_document and locate_tables over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		seg, err := sections.FromFile(headingsFile)
		if err != nil {
			return err
		}
		srv := mcpserver.NewServer(version, seg, parserOptions(), log)
		log.Info("starting parsemed mcp server", "version", version)
		return srv.Run(cmd.Context(), &mcp.StdioTransport{})
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
