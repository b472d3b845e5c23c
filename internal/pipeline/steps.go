package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
	"github.com/nao1215/floorscan/internal/measure"
	"github.com/nao1215/floorscan/internal/model"
	"github.com/nao1215/floorscan/internal/vision"
)

// Uploader publishes an image and returns its public URL.
// *imagehost.Client implements it.
type Uploader interface {
	Upload(ctx context.Context, image *model.UploadedImage) (string, error)
}

// Completer asks a vision model about an image.
// *vision.Client implements it.
type Completer interface {
	Complete(ctx context.Context, prompt, imageURL string) (string, error)
}

// Step names, as recorded in Extraction.PerformedSteps and FailedStep.
const (
	StepValidate = "validate"
	StepMetadata = "metadata"
	StepUpload   = "upload"
	StepQuery    = "query"
	StepParse    = "parse"
)

// ValidateStep rejects extractions without image bytes.
type ValidateStep struct{}

// NewValidateStep creates a new validation step.
func NewValidateStep() *ValidateStep {
	return &ValidateStep{}
}

// Name returns the step name.
func (s *ValidateStep) Name() string {
	return StepValidate
}

// Do executes the validation step.
func (s *ValidateStep) Do(_ context.Context, extraction *model.Extraction) error {
	if extraction.Image.IsEmpty() {
		return &model.ValidationError{Field: "floorplan", Reason: "no file uploaded"}
	}
	return nil
}

// metadataTags are the EXIF tags copied onto the extraction.
// GPS tags are reduced to a single "GPS" marker.
var metadataTags = map[string]bool{
	"Make":               true,
	"Model":              true,
	"Software":           true,
	"DateTime":           true,
	"DateTimeOriginal":   true,
	"Artist":             true,
	"Copyright":          true,
	"HostComputer":       true,
	"ImageWidth":         true,
	"ImageLength":        true,
	"PixelXDimension":    true,
	"PixelYDimension":    true,
	"ProcessingSoftware": true,
}

// MetadataStep records EXIF tags found in the upload.
// Floor plans are often phone photos or scanner output, and the tags help
// operators tell them apart in the history. The step never fails.
type MetadataStep struct {
	logger *slog.Logger
}

// MetadataStepOption configures a MetadataStep.
type MetadataStepOption func(*MetadataStep)

// WithMetadataLogger sets a custom logger for the metadata step.
func WithMetadataLogger(logger *slog.Logger) MetadataStepOption {
	return func(s *MetadataStep) {
		s.logger = logger
	}
}

// NewMetadataStep creates a new EXIF metadata step.
func NewMetadataStep(opts ...MetadataStepOption) *MetadataStep {
	s := &MetadataStep{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *MetadataStep) Name() string {
	return StepMetadata
}

// Do executes the metadata step.
func (s *MetadataStep) Do(_ context.Context, extraction *model.Extraction) error {
	tags, err := ReadMetadata(extraction.Image.Data)
	if err != nil {
		s.logger.Debug("no EXIF metadata",
			"file", extraction.Filename(),
			"ext", extraction.Image.Extension(),
			"reason", err,
		)
		return nil
	}
	if extraction.Metadata == nil {
		extraction.Metadata = make(map[string]string, len(tags))
	}
	for k, v := range tags {
		extraction.Metadata[k] = v
	}
	if _, ok := tags["GPS"]; ok {
		s.logger.Warn("uploaded image carries GPS coordinates",
			"file", extraction.Filename(),
			"extraction", extraction.ID,
		)
	}
	return nil
}

// ReadMetadata extracts the interesting EXIF tags from image bytes.
// It returns an error when the image has no readable EXIF block.
func ReadMetadata(data []byte) (map[string]string, error) {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		return nil, err
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse EXIF data: %w", err)
	}

	tags := make(map[string]string)
	for _, entry := range entries {
		switch {
		case strings.HasPrefix(entry.TagName, "GPS"):
			tags["GPS"] = "present"
		case metadataTags[entry.TagName]:
			if value := strings.TrimSpace(entry.Formatted); value != "" {
				tags[entry.TagName] = value
			}
		}
	}
	return tags, nil
}

// UploadStep publishes the image and records the hosted URL.
type UploadStep struct {
	uploader Uploader
}

// NewUploadStep creates a new upload step.
func NewUploadStep(uploader Uploader) *UploadStep {
	return &UploadStep{uploader: uploader}
}

// Name returns the step name.
func (s *UploadStep) Name() string {
	return StepUpload
}

// Do executes the upload step.
func (s *UploadStep) Do(ctx context.Context, extraction *model.Extraction) error {
	hostedURL, err := s.uploader.Upload(ctx, extraction.Image)
	if err != nil {
		return err
	}
	extraction.HostedURL = hostedURL
	return nil
}

// QueryStep builds the Extraction Prompt and asks the model once.
type QueryStep struct {
	completer Completer
}

// NewQueryStep creates a new model query step.
func NewQueryStep(completer Completer) *QueryStep {
	return &QueryStep{completer: completer}
}

// Name returns the step name.
func (s *QueryStep) Name() string {
	return StepQuery
}

// Do executes the query step.
func (s *QueryStep) Do(ctx context.Context, extraction *model.Extraction) error {
	extraction.Prompt = vision.BuildPrompt(extraction.HostedURL)

	text, err := s.completer.Complete(ctx, extraction.Prompt, extraction.HostedURL)
	if err != nil {
		return err
	}
	extraction.RawResponse = text
	return nil
}

// ParseStep turns the model reply into the Measurement Map.
type ParseStep struct {
	logger *slog.Logger
}

// ParseStepOption configures a ParseStep.
type ParseStepOption func(*ParseStep)

// WithParseLogger sets a custom logger for the parse step.
func WithParseLogger(logger *slog.Logger) ParseStepOption {
	return func(s *ParseStep) {
		s.logger = logger
	}
}

// NewParseStep creates a new parse step.
func NewParseStep(opts ...ParseStepOption) *ParseStep {
	s := &ParseStep{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ParseStep) Name() string {
	return StepParse
}

// Do executes the parse step.
func (s *ParseStep) Do(_ context.Context, extraction *model.Extraction) error {
	result, err := measure.Parse(extraction.RawResponse)
	if err != nil {
		return err
	}

	extraction.Measurements = result.Measurements
	for _, warning := range result.Warnings {
		extraction.AddWarning("%s", warning)
	}
	if len(result.Warnings) > 0 {
		s.logger.Warn("model response had unusable entries",
			"extraction", extraction.ID,
			"warnings", len(result.Warnings),
		)
	}
	return nil
}
