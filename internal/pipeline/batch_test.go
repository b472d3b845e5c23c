package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/floorscan/internal/model"
)

// TestBatchProcessorNew tests the BatchProcessor constructor.
func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() })
		if bp.concurrency != DefaultConcurrency {
			t.Errorf("expected default concurrency %d, got %d", DefaultConcurrency, bp.concurrency)
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() }, WithConcurrency(0))
		if bp.concurrency != DefaultConcurrency {
			t.Errorf("expected concurrency %d, got %d", DefaultConcurrency, bp.concurrency)
		}
	})
}

// TestProcessBatch tests concurrent extraction.
func TestProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("returns results in input order and keeps going after failures", func(t *testing.T) {
		t.Parallel()

		images := make([]*model.UploadedImage, 5)
		for i := range images {
			images[i] = model.NewUploadedImage(fmt.Sprintf("plan-%d.png", i), "", []byte{byte(i + 1)})
		}

		factory := func() *Pipeline {
			p := New(WithLogger(discardLogger()))
			p.AddStep(&mockStep{name: "check", doFunc: func(_ context.Context, e *model.Extraction) error {
				if e.Filename() == "plan-2.png" {
					return errors.New("unreadable")
				}
				return nil
			}})
			return p
		}

		bp := NewBatchProcessor(factory, WithConcurrency(2), WithBatchLogger(discardLogger()))
		results, err := bp.ProcessBatch(context.Background(), images)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != len(images) {
			t.Fatalf("expected %d results, got %d", len(images), len(results))
		}
		for i, r := range results {
			if r.Filename() != images[i].Filename {
				t.Errorf("result %d is %q", i, r.Filename())
			}
			wantFailed := i == 2
			if (r.Status == model.StatusFailed) != wantFailed {
				t.Errorf("result %d has status %s", i, r.Status)
			}
		}
	})

	t.Run("limits concurrency", func(t *testing.T) {
		t.Parallel()

		var running, peak atomic.Int32
		factory := func() *Pipeline {
			p := New(WithLogger(discardLogger()))
			p.AddStep(&mockStep{name: "slow", doFunc: func(context.Context, *model.Extraction) error {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return nil
			}})
			return p
		}

		images := make([]*model.UploadedImage, 8)
		for i := range images {
			images[i] = testImage()
		}

		bp := NewBatchProcessor(factory, WithConcurrency(2), WithBatchLogger(discardLogger()))
		if _, err := bp.ProcessBatch(context.Background(), images); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if peak.Load() > 2 {
			t.Errorf("expected at most 2 concurrent extractions, got %d", peak.Load())
		}
	})

	t.Run("callback sees every extraction", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		seen := make(map[int]bool)

		bp := NewBatchProcessor(func() *Pipeline { return New(WithLogger(discardLogger())) }, WithBatchLogger(discardLogger()))
		images := []*model.UploadedImage{testImage(), testImage(), testImage()}

		err := bp.ProcessBatchWithCallback(context.Background(), images, func(_ *model.Extraction, index int) {
			mu.Lock()
			defer mu.Unlock()
			seen[index] = true
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(seen) != 3 {
			t.Errorf("expected 3 callbacks, got %d", len(seen))
		}
	})
}
