package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/floorscan/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the extraction
// filled in by the previous steps.
//
// Design decision: We use an interface rather than function types because
// steps carry their own collaborators (HTTP clients, loggers) and a Name()
// for logging and for the extraction's step record.
type Step interface {
	// Do executes the pipeline step.
	// Returns an error if the step fails; non-critical problems should be
	// recorded as warnings on the extraction and return nil.
	Do(ctx context.Context, extraction *model.Extraction) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
// It stops at the first step that returns an error.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
//
// Design decision: We check ctx.Done() before each step rather than
// inside it. Steps that block on the network pass ctx to their requests,
// so cancellation still interrupts them.
//
// The first error stops the run, marks the extraction as failed and is
// returned. On success the extraction is marked as succeeded.
func (p *Pipeline) Execute(ctx context.Context, extraction *model.Extraction) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"extraction", extraction.ID,
				"reason", ctx.Err(),
			)
			extraction.Fail(step.Name(), ctx.Err())
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"extraction", extraction.ID,
			"file", extraction.Filename(),
		)

		if err := step.Do(ctx, extraction); err != nil {
			level, msg := slog.LevelError, "step failed"
			if model.IsClientError(err) {
				level, msg = slog.LevelDebug, "step rejected input"
			}
			p.logger.Log(ctx, level, msg,
				"step", step.Name(),
				"extraction", extraction.ID,
				"file", extraction.Filename(),
				"error", err,
			)
			extraction.Fail(step.Name(), err)
			return err
		}

		extraction.PerformedSteps = append(extraction.PerformedSteps, step.Name())
	}

	extraction.Complete()
	p.logger.Info("extraction completed",
		"extraction", extraction.ID,
		"file", extraction.Filename(),
		"rooms", extraction.Measurements.Len(),
		"warnings", len(extraction.Warnings),
		"elapsed", extraction.Duration(),
	)
	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}

// NewExtractionPipeline builds the standard pipeline:
// validate, metadata, upload, query, parse.
func NewExtractionPipeline(uploader Uploader, completer Completer, opts ...Option) *Pipeline {
	p := New(opts...)
	p.AddSteps(
		NewValidateStep(),
		NewMetadataStep(WithMetadataLogger(p.logger)),
		NewUploadStep(uploader),
		NewQueryStep(completer),
		NewParseStep(WithParseLogger(p.logger)),
	)
	return p
}
