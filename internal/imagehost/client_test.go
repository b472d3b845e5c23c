package imagehost

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/nao1215/floorscan/internal/model"
)

// discardLogger keeps test output quiet.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestClientUpload tests the ImgBB relay against a mock host.
func TestClientUpload(t *testing.T) {
	t.Parallel()

	t.Run("posts form fields and returns data.url", func(t *testing.T) {
		t.Parallel()

		var got url.Values
		var contentType string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			contentType = r.Header.Get("Content-Type")
			if err := r.ParseForm(); err != nil {
				t.Errorf("failed to parse form: %v", err)
			}
			got = r.PostForm
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":{"url":"https://host/img.png"},"success":true,"status":200}`)) //nolint:errcheck
		}))
		defer server.Close()

		c := NewClient(server.Client(), "test-key", WithEndpoint(server.URL), WithLogger(discardLogger()))
		image := model.NewUploadedImage("plan.png", "image/png", []byte("PNGDATA"))

		hostedURL, err := c.Upload(context.Background(), image)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if hostedURL != "https://host/img.png" {
			t.Errorf("unexpected URL %q", hostedURL)
		}
		if contentType != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type %q", contentType)
		}
		if got.Get("key") != "test-key" {
			t.Errorf("unexpected key %q", got.Get("key"))
		}
		if got.Get("name") != "plan.png" {
			t.Errorf("unexpected name %q", got.Get("name"))
		}
		if got.Get("image") != base64.StdEncoding.EncodeToString([]byte("PNGDATA")) {
			t.Errorf("unexpected image payload %q", got.Get("image"))
		}
		if got.Has("expiration") {
			t.Error("expected no expiration field by default")
		}
	})

	t.Run("sends expiration when configured", func(t *testing.T) {
		t.Parallel()

		var expiration string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm() //nolint:errcheck
			expiration = r.PostForm.Get("expiration")
			_, _ = w.Write([]byte(`{"data":{"url":"https://host/a.png"}}`)) //nolint:errcheck
		}))
		defer server.Close()

		c := NewClient(server.Client(), "k", WithEndpoint(server.URL), WithExpiration(600), WithLogger(discardLogger()))
		if _, err := c.Upload(context.Background(), model.NewUploadedImage("a.png", "", []byte{1})); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if expiration != "600" {
			t.Errorf("expected expiration 600, got %q", expiration)
		}
	})

	t.Run("non-success status returns UploadError", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"status_code":400,"error":{"message":"Invalid API v1 key."}}`)) //nolint:errcheck
		}))
		defer server.Close()

		c := NewClient(server.Client(), "bad", WithEndpoint(server.URL), WithLogger(discardLogger()))
		_, err := c.Upload(context.Background(), model.NewUploadedImage("a.png", "", []byte{1}))

		var uploadErr *model.UploadError
		if !errors.As(err, &uploadErr) {
			t.Fatalf("expected *model.UploadError, got %v", err)
		}
		if uploadErr.StatusCode != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", uploadErr.StatusCode)
		}
		if uploadErr.Err.Error() != "Invalid API v1 key." {
			t.Errorf("expected host message, got %q", uploadErr.Err.Error())
		}
	})

	t.Run("non-JSON error body falls back to status text", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>bad gateway</html>")) //nolint:errcheck
		}))
		defer server.Close()

		c := NewClient(server.Client(), "k", WithEndpoint(server.URL), WithLogger(discardLogger()))
		_, err := c.Upload(context.Background(), model.NewUploadedImage("a.png", "", []byte{1}))
		if !errors.Is(err, model.ErrUpload) {
			t.Fatalf("expected ErrUpload, got %v", err)
		}
	})

	t.Run("missing data.url returns ErrMissingURL", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":{},"success":true}`)) //nolint:errcheck
		}))
		defer server.Close()

		c := NewClient(server.Client(), "k", WithEndpoint(server.URL), WithLogger(discardLogger()))
		_, err := c.Upload(context.Background(), model.NewUploadedImage("a.png", "", []byte{1}))
		if !errors.Is(err, ErrMissingURL) {
			t.Errorf("expected ErrMissingURL, got %v", err)
		}
		if !errors.Is(err, model.ErrUpload) {
			t.Errorf("expected ErrUpload, got %v", err)
		}
	})

	t.Run("malformed JSON returns UploadError", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`not json`)) //nolint:errcheck
		}))
		defer server.Close()

		c := NewClient(server.Client(), "k", WithEndpoint(server.URL), WithLogger(discardLogger()))
		_, err := c.Upload(context.Background(), model.NewUploadedImage("a.png", "", []byte{1}))
		if !errors.Is(err, model.ErrUpload) {
			t.Errorf("expected ErrUpload, got %v", err)
		}
	})

	t.Run("empty image is rejected without a request", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
		}))
		defer server.Close()

		c := NewClient(server.Client(), "k", WithEndpoint(server.URL), WithLogger(discardLogger()))
		_, err := c.Upload(context.Background(), model.NewUploadedImage("a.png", "", nil))
		if !errors.Is(err, ErrEmptyImage) {
			t.Errorf("expected ErrEmptyImage, got %v", err)
		}
		if calls.Load() != 0 {
			t.Errorf("expected no request, got %d", calls.Load())
		}
	})

	t.Run("network failure returns UploadError without status", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
		endpoint := server.URL
		server.Close()

		c := NewClient(&http.Client{}, "k", WithEndpoint(endpoint), WithLogger(discardLogger()))
		_, err := c.Upload(context.Background(), model.NewUploadedImage("a.png", "", []byte{1}))

		var uploadErr *model.UploadError
		if !errors.As(err, &uploadErr) {
			t.Fatalf("expected *model.UploadError, got %v", err)
		}
		if uploadErr.StatusCode != 0 {
			t.Errorf("expected status 0, got %d", uploadErr.StatusCode)
		}
	})

	t.Run("default endpoint is ImgBB", func(t *testing.T) {
		t.Parallel()

		c := NewClient(nil, "k")
		if c.Endpoint() != DefaultEndpoint {
			t.Errorf("unexpected endpoint %q", c.Endpoint())
		}
	})
}
