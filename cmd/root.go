package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	srcDir     string
	outDir     string
	verbose    bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to fingerpack.hcl")
	rootCmd.PersistentFlags().StringVarP(&srcDir, "src-dir", "s", "", "Source directory (default \"src\")")
	rootCmd.PersistentFlags().StringVarP(&outDir, "out-dir", "o", "", "Output directory (default \"dist\")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every file processed")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "Development server port (default 5000)")
}

var rootCmd = &cobra.Command{
	Use:   "fingerpack",
	Short: "Fingerprint static assets and rewrite the references between them",
	Long: `fingerpack copies a source tree into an output tree, renaming every
asset with a content hash and rewriting the paths that reference it.
Without a subcommand it watches the source tree and serves the output.`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			Level(level).
			With().Timestamp().Logger()
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
