package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/floorscan/internal/config"
	"github.com/nao1215/floorscan/internal/database"
	"github.com/nao1215/floorscan/internal/model"
	"github.com/nao1215/floorscan/internal/pipeline"
	"github.com/nao1215/floorscan/internal/render"
	"github.com/spf13/cobra"
)

// NewExtractCmd creates the extract command.
func NewExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <image>...",
		Short: "Extract room measurements from local floor-plan images",
		Long: `Extract runs the same pipeline as the web endpoint on local files.

Each image is uploaded to the image host, the model is asked for the room
measurements, and the answer is printed in the selected format. Several
images are processed concurrently; one failure does not stop the others.

Examples:
  # Print a text table
  floorscan extract plan.png

  # Write the HTML table served by the web endpoint
  floorscan extract --format html -o plan.html plan.png

  # Extract a directory of plans, four at a time, as JSON
  floorscan extract --format json --concurrency 4 plans/*.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: runExtractCmd,
	}

	cmd.Flags().StringP("format", "f", render.FormatText,
		"Output format: "+strings.Join(render.Formats(), ", "))
	cmd.Flags().StringP("output", "o", "",
		"Write output to specified file path (creates directories if needed)")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of images extracted at once")
	cmd.Flags().Bool("save", false,
		"Record extractions in the history database")
	addNetworkFlags(cmd)

	return cmd
}

// extractOptions are the per-invocation settings of the extract command.
type extractOptions struct {
	format string
	output string
	files  []string
}

// runExtractCmd executes the extract command.
func runExtractCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := applyExtractFlags(cmd, cfg, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg, slog.LevelWarn)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runExtract(ctx, cmd, cfg, opts, logger)
}

// applyExtractFlags copies the extract flags that were set onto cfg and
// returns the output options.
func applyExtractFlags(cmd *cobra.Command, cfg *config.Config, args []string) (*extractOptions, error) {
	opts := &extractOptions{files: args}

	var err error
	if opts.format, err = cmd.Flags().GetString("format"); err != nil {
		return nil, err
	}
	if opts.output, err = cmd.Flags().GetString("output"); err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("concurrency") {
		if cfg.Concurrency, err = cmd.Flags().GetInt("concurrency"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("save") {
		if cfg.SaveToDB, err = cmd.Flags().GetBool("save"); err != nil {
			return nil, err
		}
	}
	if err := applyNetworkFlags(cmd, cfg); err != nil {
		return nil, err
	}

	// Reject an unknown format before any upload happens.
	if _, err := render.New(opts.format, io.Discard); err != nil {
		return nil, err
	}
	return opts, nil
}

// runExtract extracts every file and writes the results in input order.
func runExtract(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts *extractOptions, logger *slog.Logger) error {
	images, err := readImages(opts.files)
	if err != nil {
		return err
	}

	newPipeline, err := newExtractionPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}

	db, err := openHistory(cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	output, closeOutput, err := openOutput(cmd.OutOrStdout(), opts.output)
	if err != nil {
		return err
	}
	defer closeOutput()

	writer, err := render.New(opts.format, output)
	if err != nil {
		return err
	}

	if len(images) > 1 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Extracting %d images (concurrency: %d)...\n", len(images), cfg.Concurrency)
	}
	startTime := time.Now()

	bp := pipeline.NewBatchProcessor(newPipeline,
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithBatchLogger(logger),
	)

	results := make([]*model.Extraction, len(images))
	var mu sync.Mutex
	done := 0
	batchErr := bp.ProcessBatchWithCallback(ctx, images, func(extraction *model.Extraction, index int) {
		mu.Lock()
		defer mu.Unlock()
		results[index] = extraction
		done++
		if len(images) > 1 {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s: %s\n", done, len(images), extraction.Filename(), extraction.Status)
		}
	})

	failed := 0
	for _, extraction := range results {
		if extraction == nil {
			continue
		}
		saveExtraction(ctx, db, extraction, logger)

		if !extraction.Succeeded() {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "Extraction failed for %s at %s: %v\n",
				extraction.Filename(), extraction.FailedStep, extraction.Error)
			continue
		}
		if _, err := writer.Write(extraction); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	if len(images) > 1 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Extraction completed in %s\n", time.Since(startTime).Round(time.Millisecond))
	}
	if batchErr != nil {
		return batchErr
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d extractions failed", failed, len(images))
	}
	return nil
}

// readImages loads the files named on the command line.
func readImages(paths []string) ([]*model.UploadedImage, error) {
	images := make([]*model.UploadedImage, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path) //nolint:gosec // User-provided image path is intentional
		if err != nil {
			return nil, fmt.Errorf("failed to read image: %w", err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("image file is empty: %s", path)
		}
		images = append(images, model.NewUploadedImage(filepath.Base(path), http.DetectContentType(data), data))
	}
	return images, nil
}

// openOutput returns the destination for rendered results: path when set,
// stdout otherwise. The returned function closes a created file.
func openOutput(stdout io.Writer, path string) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// saveExtraction records the extraction when a database is open.
// If db is nil, this function is a no-op.
func saveExtraction(ctx context.Context, db *database.HistoryDB, extraction *model.Extraction, logger *slog.Logger) {
	if db == nil {
		return
	}
	if err := db.SaveExtraction(context.WithoutCancel(ctx), extraction); err != nil {
		logger.Error("failed to save extraction", "file", extraction.Filename(), "error", err)
		return
	}
	logger.Info("extraction saved to database", "id", extraction.ID)
}
