package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/personaloom/internal/config"
)

// version is set via ldflags at build time
var version = "dev"

var (
	// Global flags
	cfgFile string
	debug   bool

	// Loaded configuration and process logger
	cfg    *cfgpkg.Global
	logger = slog.New(slog.DiscardHandler)
)

var rootCmd = &cobra.Command{
	Use:   "personaloom",
	Short: "personaloom: cluster tabular data into behavioural personas",
	Long: `personaloom reads a spreadsheet (.xlsx) or CSV/TSV file, groups its rows into a
small number of personas with seeded k-means, and describes each persona by the
averages of its numeric columns and the most common values of its text columns.

Run it once on a file with "segment", over many files with "segment-batch", or
as an HTTP service with "serve".`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute(ctx context.Context) error {
	return fang.Execute(ctx, rootCmd)
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.personaloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: fall back to defaults so one bad key does not block every command
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = cfgpkg.Defaults()
	}
	cfg = c
	logger = cfg.NewLogger(os.Stderr, debug)
	slog.SetDefault(logger)
}

// currentConfig returns the loaded configuration, loading it on first use.
func currentConfig() *cfgpkg.Global {
	if cfg == nil {
		loadConfig()
	}
	return cfg
}
