package cmd

import (
	"github.com/agentic-research/fingerpack/internal/pipeline"
	"github.com/agentic-research/fingerpack/internal/vfs"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [output.db]",
	Short: "Build once and export the reference graph to SQLite",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPath := "fingerpack.db"
		if len(args) == 1 {
			dbPath = args[0]
		}
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
		if err := p.ExportSQLite(dbPath); err != nil {
			return err
		}
		log.Info().Str("db", dbPath).Int("files", len(p.Ledger().Paths())).Msg("graph exported")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
