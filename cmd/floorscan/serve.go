package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/floorscan/internal/config"
	"github.com/nao1215/floorscan/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web upload form and extraction endpoint",
		Long: `Serve starts an HTTP server with an upload form.

Routes:
  GET  /                      upload form
  POST /extract-measurements  multipart upload in the "floorplan" field,
                              answered with an HTML table
  GET  /healthz               liveness probe

A request without a file is answered with 400. Any failure of the image
host, the model or the response parsing is logged and answered with 500.

Examples:
  # Listen on the default port 3000
  floorscan serve

  # Listen on port 8080 and record every extraction
  floorscan serve --listen :8080 --history

  # Allow at most 4 extractions at once
  floorscan serve --max-in-flight 4`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("listen", "l", config.DefaultListenAddress,
		"Address to listen on")
	cmd.Flags().Int64("max-upload-size", config.DefaultMaxUploadSize,
		"Largest accepted upload in bytes (0 means no limit)")
	cmd.Flags().Int("max-in-flight", 0,
		"Maximum concurrent extractions, excess requests get 503 (0 means no limit)")
	cmd.Flags().Bool("history", false,
		"Record every extraction in the history database")
	addNetworkFlags(cmd)

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyServeFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(os.Stderr, cfg, slog.LevelInfo)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runServe(ctx, cfg, logger)
}

// applyServeFlags copies the serve flags that were set onto cfg.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cmd.Flags().Changed("listen") {
		if cfg.ListenAddress, err = cmd.Flags().GetString("listen"); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("max-upload-size") {
		if cfg.MaxUploadSize, err = cmd.Flags().GetInt64("max-upload-size"); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("max-in-flight") {
		if cfg.MaxInFlight, err = cmd.Flags().GetInt("max-in-flight"); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("history") {
		if cfg.SaveToDB, err = cmd.Flags().GetBool("history"); err != nil {
			return err
		}
	}
	return applyNetworkFlags(cmd, cfg)
}

// runServe serves until ctx is cancelled.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	newPipeline, err := newExtractionPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithAddress(cfg.ListenAddress),
		server.WithMaxUploadSize(cfg.MaxUploadSize),
		server.WithMaxInFlight(cfg.MaxInFlight),
		server.WithShutdownTimeout(cfg.ShutdownTimeout),
	}

	db, err := openHistory(cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		opts = append(opts, server.WithRecorder(db))
	}

	logger.Info("starting floorscan server",
		"address", cfg.ListenAddress,
		"model", cfg.ModelName,
		"maxUploadSize", cfg.MaxUploadSize,
		"maxInFlight", cfg.MaxInFlight,
		"history", cfg.SaveToDB,
	)
	return server.New(newPipeline(), opts...).ListenAndServe(ctx)
}
