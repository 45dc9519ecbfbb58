package cmd

import (
	"github.com/agentic-research/fingerpack/internal/inspect"
	"github.com/agentic-research/fingerpack/internal/pipeline"
	"github.com/agentic-research/fingerpack/internal/vfs"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Build once and answer questions about the result over MCP stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		p, err := newPipeline(cmd, cfg, vfs.NewOS(false), pipeline.Hooks{})
		if err != nil {
			return err
		}
		if err := cleanOut(p); err != nil {
			return err
		}
		_ = p.Build(cmd.Context())
		return server.ServeStdio(inspect.New(p))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
