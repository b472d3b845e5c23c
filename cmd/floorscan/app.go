package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nao1215/floorscan/internal/config"
	"github.com/nao1215/floorscan/internal/database"
	"github.com/nao1215/floorscan/internal/imagehost"
	"github.com/nao1215/floorscan/internal/log"
	"github.com/nao1215/floorscan/internal/pipeline"
	"github.com/nao1215/floorscan/internal/transport"
	"github.com/nao1215/floorscan/internal/vision"
	"github.com/spf13/cobra"
)

// loadConfig builds the configuration for cmd: defaults, then the
// configuration file, then the environment, then the global flags.
// Command-specific flags are applied by the caller.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(configPath, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	if cmd.Flags().Changed("verbose") {
		if cfg.Verbose, err = cmd.Flags().GetBool("verbose"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("log-format") {
		if cfg.LogFormat, err = cmd.Flags().GetString("log-format"); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// addNetworkFlags registers the outbound connection flags.
func addNetworkFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("proxy", "x", "",
		"Route outbound requests through a SOCKS5 proxy (host:port)")
	cmd.Flags().DurationP("timeout", "t", 0,
		"Timeout for each outbound request (0 means no timeout)")
}

// applyNetworkFlags copies the network flags that were set onto cfg.
func applyNetworkFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	if cmd.Flags().Changed("proxy") {
		if cfg.ProxyAddress, err = cmd.Flags().GetString("proxy"); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("timeout") {
		if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
			return err
		}
	}
	return nil
}

// newLogger creates the secure logger for cfg. base is the level used
// when --verbose is not set.
func newLogger(w io.Writer, cfg *config.Config, base slog.Level) *slog.Logger {
	return log.New(w, cfg.LogFormat, log.Level(cfg.Verbose, base))
}

// newExtractionPipeline wires the image host and model clients onto one
// transport and returns a factory for extraction pipelines. When a proxy is
// configured it is checked before anything is sent through it.
func newExtractionPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (func() *pipeline.Pipeline, error) {
	tc, err := transport.NewClient(cfg.ProxyAddress, cfg.Timeout, transport.WithUserAgent(cfg.UserAgent))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	if status := tc.CheckConnection(ctx); status.Error() != nil {
		return nil, fmt.Errorf("proxy check failed: %s (make sure a SOCKS5 proxy is running at %s): %w",
			status, cfg.ProxyAddress, status.Error())
	} else if status == transport.ProxyStatusOK {
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
	}

	httpClient := tc.HTTPClient()

	hostOpts := []imagehost.Option{
		imagehost.WithEndpoint(cfg.ImageHostEndpoint),
		imagehost.WithLogger(logger),
	}
	if cfg.ImageExpiration > 0 {
		hostOpts = append(hostOpts, imagehost.WithExpiration(cfg.ImageExpiration))
	}
	uploader := imagehost.NewClient(httpClient, cfg.ImageHostAPIKey, hostOpts...)

	modelOpts := []vision.Option{
		vision.WithEndpoint(cfg.ModelEndpoint),
		vision.WithModel(cfg.ModelName),
		vision.WithLogger(logger),
	}
	if cfg.ImageDetail != "" {
		modelOpts = append(modelOpts, vision.WithImageDetail(cfg.ImageDetail))
	}
	if cfg.MaxTokens > 0 {
		modelOpts = append(modelOpts, vision.WithMaxTokens(cfg.MaxTokens))
	}
	completer := vision.NewClient(httpClient, cfg.ModelAPIKey, modelOpts...)

	return func() *pipeline.Pipeline {
		return pipeline.NewExtractionPipeline(uploader, completer, pipeline.WithLogger(logger))
	}, nil
}

// openHistory opens the history database when recording is enabled.
// It returns nil when cfg.SaveToDB is false.
func openHistory(cfg *config.Config, logger *slog.Logger) (*database.HistoryDB, error) {
	if !cfg.SaveToDB {
		return nil, nil
	}
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Info("history database opened", "path", db.Path())
	return db, nil
}
