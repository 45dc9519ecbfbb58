package cmd

import (
	"github.com/agentic-research/fingerpack/internal/pipeline"
	"github.com/agentic-research/fingerpack/internal/vfs"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the output directory once and exit",
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
		// Per-file failures were already reported through OnError.
		_ = p.Build(cmd.Context())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
