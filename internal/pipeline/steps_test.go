package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/nao1215/floorscan/internal/measure"
	"github.com/nao1215/floorscan/internal/model"
)

// fakeUploader is a test double for the image host.
type fakeUploader struct {
	url   string
	err   error
	calls atomic.Int32
}

func (f *fakeUploader) Upload(_ context.Context, _ *model.UploadedImage) (string, error) {
	f.calls.Add(1)
	return f.url, f.err
}

// fakeCompleter is a test double for the vision model.
type fakeCompleter struct {
	reply     string
	err       error
	calls     atomic.Int32
	gotPrompt string
	gotURL    string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt, imageURL string) (string, error) {
	f.calls.Add(1)
	f.gotPrompt = prompt
	f.gotURL = imageURL
	return f.reply, f.err
}

// TestExtractionPipeline runs the standard pipeline against test doubles.
func TestExtractionPipeline(t *testing.T) {
	t.Parallel()

	t.Run("round trip fills in every stage", func(t *testing.T) {
		t.Parallel()

		uploader := &fakeUploader{url: "https://host/img.png"}
		completer := &fakeCompleter{reply: `{"Great Room":"19'-9\" x 12'-4\""}`}
		p := NewExtractionPipeline(uploader, completer, WithLogger(discardLogger()))
		extraction := model.NewExtraction(testImage())

		if err := p.Execute(context.Background(), extraction); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if extraction.HostedURL != "https://host/img.png" {
			t.Errorf("unexpected hosted URL %q", extraction.HostedURL)
		}
		if completer.gotURL != "https://host/img.png" {
			t.Errorf("model received URL %q", completer.gotURL)
		}
		if !strings.Contains(completer.gotPrompt, "https://host/img.png") {
			t.Error("expected prompt to contain the hosted URL")
		}
		if extraction.Prompt != completer.gotPrompt {
			t.Error("expected prompt to be recorded on the extraction")
		}
		if v, ok := extraction.Measurements.Get("Great Room"); !ok || v != `19'-9" x 12'-4"` {
			t.Errorf("unexpected measurement %q", v)
		}
	})

	t.Run("upload failure never reaches the model", func(t *testing.T) {
		t.Parallel()

		uploader := &fakeUploader{err: &model.UploadError{StatusCode: 500, Err: errors.New("down")}}
		completer := &fakeCompleter{}
		p := NewExtractionPipeline(uploader, completer, WithLogger(discardLogger()))
		extraction := model.NewExtraction(testImage())

		err := p.Execute(context.Background(), extraction)
		if !errors.Is(err, model.ErrUpload) {
			t.Fatalf("expected ErrUpload, got %v", err)
		}
		if completer.calls.Load() != 0 {
			t.Errorf("expected no model call, got %d", completer.calls.Load())
		}
		if extraction.FailedStep != StepUpload {
			t.Errorf("expected failed step %q, got %q", StepUpload, extraction.FailedStep)
		}
	})

	t.Run("empty image fails validation without calls", func(t *testing.T) {
		t.Parallel()

		uploader := &fakeUploader{url: "u"}
		completer := &fakeCompleter{}
		p := NewExtractionPipeline(uploader, completer, WithLogger(discardLogger()))
		extraction := model.NewExtraction(model.NewUploadedImage("plan.png", "", nil))

		err := p.Execute(context.Background(), extraction)
		if !errors.Is(err, model.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		if uploader.calls.Load() != 0 || completer.calls.Load() != 0 {
			t.Error("expected no downstream calls")
		}
	})

	t.Run("rejected input is logged below error level", func(t *testing.T) {
		t.Parallel()

		var rejected, failed bytes.Buffer
		debugLogger := func(buf *bytes.Buffer) *slog.Logger {
			return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		}

		p := NewExtractionPipeline(&fakeUploader{url: "u"}, &fakeCompleter{}, WithLogger(debugLogger(&rejected)))
		err := p.Execute(context.Background(), model.NewExtraction(model.NewUploadedImage("plan.png", "", nil)))
		if !errors.Is(err, model.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		if strings.Contains(rejected.String(), "level=ERROR") {
			t.Errorf("validation failure logged at error level:\n%s", rejected.String())
		}
		if !strings.Contains(rejected.String(), "step rejected input") {
			t.Errorf("expected a debug record for the rejection:\n%s", rejected.String())
		}

		uploader := &fakeUploader{err: &model.UploadError{StatusCode: 500, Err: errors.New("down")}}
		p = NewExtractionPipeline(uploader, &fakeCompleter{}, WithLogger(debugLogger(&failed)))
		if err := p.Execute(context.Background(), model.NewExtraction(testImage())); err == nil {
			t.Fatal("expected upload error")
		}
		if !strings.Contains(failed.String(), "level=ERROR") {
			t.Errorf("expected upload failure at error level:\n%s", failed.String())
		}
	})

	t.Run("reply without JSON fails with ParseError", func(t *testing.T) {
		t.Parallel()

		p := NewExtractionPipeline(
			&fakeUploader{url: "u"},
			&fakeCompleter{reply: "I could not read the plan."},
			WithLogger(discardLogger()),
		)
		extraction := model.NewExtraction(testImage())

		err := p.Execute(context.Background(), extraction)
		if !errors.Is(err, model.ErrParse) {
			t.Fatalf("expected ErrParse, got %v", err)
		}
		if !errors.Is(err, measure.ErrNoJSONBlock) {
			t.Errorf("expected ErrNoJSONBlock, got %v", err)
		}
		if extraction.RawResponse != "I could not read the plan." {
			t.Error("expected raw response to be kept for diagnosis")
		}
	})

	t.Run("model failure surfaces ModelQueryError", func(t *testing.T) {
		t.Parallel()

		p := NewExtractionPipeline(
			&fakeUploader{url: "u"},
			&fakeCompleter{err: &model.ModelQueryError{StatusCode: 429, Err: errors.New("rate limited")}},
			WithLogger(discardLogger()),
		)
		extraction := model.NewExtraction(testImage())

		if err := p.Execute(context.Background(), extraction); !errors.Is(err, model.ErrModelQuery) {
			t.Fatalf("expected ErrModelQuery, got %v", err)
		}
		if extraction.FailedStep != StepQuery {
			t.Errorf("unexpected failed step %q", extraction.FailedStep)
		}
	})

	t.Run("non-string entries become warnings", func(t *testing.T) {
		t.Parallel()

		p := NewExtractionPipeline(
			&fakeUploader{url: "u"},
			&fakeCompleter{reply: `{"Den":"8'","Garage":240}`},
			WithLogger(discardLogger()),
		)
		extraction := model.NewExtraction(testImage())

		if err := p.Execute(context.Background(), extraction); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if extraction.Measurements.Len() != 1 {
			t.Errorf("expected 1 entry, got %d", extraction.Measurements.Len())
		}
		if !extraction.HasWarnings() {
			t.Error("expected a warning for the dropped entry")
		}
	})
}

// TestMetadataStep tests EXIF collection.
func TestMetadataStep(t *testing.T) {
	t.Parallel()

	t.Run("image without EXIF is not an error", func(t *testing.T) {
		t.Parallel()

		step := NewMetadataStep(WithMetadataLogger(discardLogger()))
		extraction := model.NewExtraction(testImage())

		if err := step.Do(context.Background(), extraction); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(extraction.Metadata) != 0 {
			t.Errorf("expected no metadata, got %v", extraction.Metadata)
		}
	})

	t.Run("ReadMetadata reports missing EXIF", func(t *testing.T) {
		t.Parallel()

		if _, err := ReadMetadata([]byte("not an image")); err == nil {
			t.Error("expected an error for data without EXIF")
		}
	})
}
