package cmd

import (
	"fmt"

	"github.com/agentic-research/fingerpack/internal/devserver"
	"github.com/agentic-research/fingerpack/internal/pipeline"
	"github.com/agentic-research/fingerpack/internal/vfs"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var port int

// serveCacheSize bounds the number of output files held in memory.
const serveCacheSize = 512

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch the source tree and serve the output with live reload",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "Development server port (default 5000)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = port
	}

	fs := vfs.NewOS(true)
	var srv *devserver.Server
	p, err := newPipeline(cmd, cfg, fs, pipeline.Hooks{
		OnBubbleUpFinished: func() {
			if srv != nil {
				srv.Reload()
			}
		},
	})
	if err != nil {
		return err
	}
	if err := cleanOut(p); err != nil {
		return err
	}
	srv, err = devserver.New(fs, p.OutDir(), serveCacheSize)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	addr := fmt.Sprintf(":%d", cfg.Port)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Watch(gctx) })
	g.Go(func() error { return srv.ListenAndServe(gctx, addr) })
	return g.Wait()
}
