// Package cli implements the extract command line using Cobra.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blackmichael/bluesky-extract/internal/app"
	"github.com/blackmichael/bluesky-extract/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagConfig   string
	flagDatabase string
	flagDebug    bool
)

// application is built once per invocation by loadApp.
var application *app.App

var rootCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract Bluesky posts and threads into a notes graph",
	Long: `extract renders Bluesky posts referenced by blocks into the block text,
using the configured post template, and copies attached media into the media store.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadApp,
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return execute(ctx, os.Args[1:], os.Stdout)
}

func execute(ctx context.Context, args []string, out io.Writer) error {
	defer closeApp()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", os.Getenv("BSKY_EXTRACT_CONFIG"), "Config file (.toml or .yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDatabase, "database", "", "Block store database (SQLite path or postgres:// URL)")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")

	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(threadCmd)
	rootCmd.AddCommand(autoCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadApp loads and merges configuration: defaults < config file < env < flags.
func loadApp(cmd *cobra.Command, _ []string) error {
	if cmd == versionCmd {
		return nil
	}

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if flagDatabase != "" {
		cfg.DatabaseURL = flagDatabase
	}
	if flagDebug {
		cfg.Debug = true
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	application, err = app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("building app: %w", err)
	}
	return nil
}

func closeApp() {
	if application == nil {
		return
	}
	if err := application.Close(); err != nil {
		application.Logger.Warn("failed to close", "error", err)
	}
	application = nil
}

// requireStore fails for commands that only work against the block store.
func requireStore() error {
	if application.Store == nil {
		return fmt.Errorf("this command requires the store host")
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "extract", Version)
	},
}
