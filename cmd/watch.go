package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentic-research/fingerpack/internal/pipeline"
	"github.com/agentic-research/fingerpack/internal/vfs"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Build, then rebuild whatever changes until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		p, err := newPipeline(cmd, cfg, vfs.NewOS(true), pipeline.Hooks{
			OnBubbleUpFinished: func() { log.Info().Msg("output up to date") },
		})
		if err != nil {
			return err
		}
		if err := cleanOut(p); err != nil {
			return err
		}

		ctx, stop := signalContext(cmd.Context())
		defer stop()
		log.Info().Str("src", p.SrcDir()).Str("out", p.OutDir()).Msg("watching")
		return p.Watch(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
