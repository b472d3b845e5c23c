package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/floorscan/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of images processed at once by default.
const DefaultConcurrency = 4

// BatchProcessor runs the extraction pipeline over several images
// concurrently. It uses errgroup to manage goroutines and the limit.
//
// Design decision: We use a separate BatchProcessor rather than adding batch
// functionality to Pipeline so the Pipeline stays focused on one image.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each image.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of concurrent extractions.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent extractions.
// Values below 1 are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
// The pipelineFactory is called once per image so no step state leaks
// between extractions.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch extracts measurements from every image.
// Results are returned in input order. A failed extraction is recorded on its
// own Extraction and does not stop the others. The error is non-nil only when
// ctx was cancelled; extractions that never started are then nil.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, images []*model.UploadedImage) ([]*model.Extraction, error) {
	results := make([]*model.Extraction, len(images))
	err := bp.ProcessBatchWithCallback(ctx, images, func(extraction *model.Extraction, index int) {
		results[index] = extraction
	})
	return results, err
}

// ProcessBatchWithCallback extracts measurements from every image and calls
// callback as each extraction finishes. The callback runs on the worker
// goroutine and must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	images []*model.UploadedImage,
	callback func(extraction *model.Extraction, index int),
) error {
	bp.logger.Info("starting batch extraction",
		"total_images", len(images),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, image := range images {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			extraction := model.NewExtraction(image)
			if err := bp.pipelineFactory().Execute(ctx, extraction); err != nil {
				bp.logger.Warn("extraction failed",
					"file", extraction.Filename(),
					"index", i+1,
					"total", len(images),
					"error", err,
				)
			}

			callback(extraction, i)
			// Failures are recorded on the extraction; keep the others going.
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch extraction complete",
		"total_images", len(images),
		"elapsed", time.Since(startTime),
	)
	return err
}
