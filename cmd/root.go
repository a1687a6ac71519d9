// Package cmd defines the listingwatch command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/listingwatch/internal/app"
	"github.com/JakeFAU/listingwatch/internal/config"
	"github.com/JakeFAU/listingwatch/internal/logging"
	"github.com/JakeFAU/listingwatch/internal/monitor"
)

type rootOptions struct {
	configPath string
	force      bool
	testPush   bool
}

// newApp is a variable so tests can inject fakes for the browser and model.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

func newRootCmd() *cobra.Command {
	var opts rootOptions
	cmd := &cobra.Command{
		Use:   "listingwatch",
		Short: "Watches web pages for new listings and sends an alert for each one.",
		Long: `listingwatch performs one monitoring pass per invocation: inside the
configured operating window it screenshots every target page, asks a vision
model for the listings that match the filter rule, and notifies about each
listing it has never recorded before. Schedule it with cron or a similar tool.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "optional YAML config file; LISTINGWATCH_* environment variables override it")
	cmd.Flags().BoolVar(&opts.force, "force", false, "run even outside the operating window")
	cmd.Flags().BoolVar(&opts.testPush, "test-push", false, "send a test notification and exit")
	return cmd
}

func run(ctx context.Context, opts rootOptions, stderr io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
		File: logging.FileConfig{
			Path:       cfg.Logging.File.Path,
			MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
			MaxBackups: cfg.Logging.File.MaxBackups,
			MaxAgeDays: cfg.Logging.File.MaxAgeDays,
			Compress:   cfg.Logging.File.Compress,
		},
	})
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil && !errors.Is(syncErr, syscall.EINVAL) {
			fmt.Fprintf(stderr, "logger sync failed: %v\n", syncErr)
		}
	}()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer a.Close()

	if opts.testPush {
		return a.TestPush(ctx)
	}

	summary, err := a.Run(ctx, opts.force)
	switch {
	case errors.Is(err, monitor.ErrOutsideWindow):
		return nil
	case err != nil:
		return err
	}
	logger.Info("monitoring pass complete",
		zap.String("run_id", summary.RunID),
		zap.Int("findings", len(summary.Findings)),
		zap.Int("targets_failed", summary.TargetsFailed),
	)
	return nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "listingwatch: %v\n", err)
		os.Exit(1)
	}
}
