package cmd

import (
	"fmt"
	"os"

	"github.com/agentic-research/fingerpack/api"
	"github.com/agentic-research/fingerpack/internal/config"
	"github.com/agentic-research/fingerpack/internal/pipeline"
	"github.com/agentic-research/fingerpack/internal/vfs"
	"github.com/spf13/cobra"
)

// loadConfig reads the configuration and applies command line overrides.
func loadConfig(cmd *cobra.Command) (*api.Config, error) {
	explicit := cmd.Flags().Changed("config")
	path := configPath
	if path == "" {
		path = config.DefaultFile
	}
	cfg, err := config.Load(path, explicit)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("src-dir") {
		cfg.SrcDir = srcDir
	}
	if cmd.Flags().Changed("out-dir") {
		cfg.OutDir = outDir
	}
	return cfg, nil
}

// newPipeline wires a pipeline over fs. Per-file failures are printed to
// stderr and never abort the command.
func newPipeline(cmd *cobra.Command, cfg *api.Config, fs vfs.FileSystem, hooks pipeline.Hooks) (*pipeline.Pipeline, error) {
	opts, err := config.Options(cfg, fs)
	if err != nil {
		return nil, err
	}
	if hooks.OnError == nil {
		stderr := cmd.ErrOrStderr()
		hooks.OnError = func(e *pipeline.FileError) {
			fmt.Fprintf(stderr, "%s: %s error: %v\n", e.Path, e.Kind, e.Err)
		}
	}
	opts.Hooks = hooks
	return pipeline.New(opts)
}

// cleanOut removes the output directory of a validated pipeline so stale
// fingerprints never survive a fresh build. pipeline.New has already
// rejected output directories that overlap the sources.
func cleanOut(p *pipeline.Pipeline) error {
	if err := os.RemoveAll(p.OutDir()); err != nil {
		return fmt.Errorf("clean %s: %w", p.OutDir(), err)
	}
	return nil
}
