package vision

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nao1215/floorscan/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// completionBody builds a minimal chat completion reply carrying content.
func completionBody(t *testing.T, content string) []byte {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"id":    "chatcmpl-1",
		"model": "gpt-4o",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
	})
	if err != nil {
		t.Fatalf("failed to marshal reply: %v", err)
	}
	return body
}

// TestClientComplete tests the chat completion client against a mock API.
func TestClientComplete(t *testing.T) {
	t.Parallel()

	t.Run("sends one user message with text and image parts", func(t *testing.T) {
		t.Parallel()

		var got chatRequest
		var auth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(completionBody(t, `{"Den":"8'-0\" x 4'-6\""}`)) //nolint:errcheck
		}))
		defer server.Close()

		c := NewClient(server.Client(), "sk-test", WithEndpoint(server.URL), WithLogger(discardLogger()))
		text, err := c.Complete(context.Background(), "read the plan", "https://host/img.png")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != `{"Den":"8'-0\" x 4'-6\""}` {
			t.Errorf("unexpected text %q", text)
		}
		if auth != "Bearer sk-test" {
			t.Errorf("unexpected Authorization header %q", auth)
		}
		if got.Model != DefaultModel {
			t.Errorf("expected model %q, got %q", DefaultModel, got.Model)
		}
		if got.N != 1 {
			t.Errorf("expected n=1, got %d", got.N)
		}
		if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
			t.Fatalf("expected one user message, got %+v", got.Messages)
		}
		parts := got.Messages[0].Content
		if len(parts) != 2 {
			t.Fatalf("expected 2 content parts, got %d", len(parts))
		}
		if parts[0].Type != "text" || parts[0].Text != "read the plan" {
			t.Errorf("unexpected text part %+v", parts[0])
		}
		if parts[1].Type != "image_url" || parts[1].ImageURL == nil || parts[1].ImageURL.URL != "https://host/img.png" {
			t.Errorf("unexpected image part %+v", parts[1])
		}
	})

	t.Run("honors model and detail options", func(t *testing.T) {
		t.Parallel()

		var got chatRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&got) //nolint:errcheck
			_, _ = w.Write(completionBody(t, "{}"))  //nolint:errcheck
		}))
		defer server.Close()

		c := NewClient(server.Client(), "k",
			WithEndpoint(server.URL),
			WithModel("gpt-4o-mini"),
			WithImageDetail("high"),
			WithMaxTokens(512),
			WithLogger(discardLogger()),
		)
		if _, err := c.Complete(context.Background(), "p", "https://host/a.png"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Model != "gpt-4o-mini" {
			t.Errorf("unexpected model %q", got.Model)
		}
		if got.MaxTokens != 512 {
			t.Errorf("unexpected max_tokens %d", got.MaxTokens)
		}
		if got.Messages[0].Content[1].ImageURL.Detail != "high" {
			t.Errorf("unexpected detail %q", got.Messages[0].Content[1].ImageURL.Detail)
		}
		if c.Model() != "gpt-4o-mini" {
			t.Errorf("Model() = %q", c.Model())
		}
	})

	t.Run("non-success status captures the API message", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`)) //nolint:errcheck
		}))
		defer server.Close()

		c := NewClient(server.Client(), "bad", WithEndpoint(server.URL), WithLogger(discardLogger()))
		_, err := c.Complete(context.Background(), "p", "u")

		var queryErr *model.ModelQueryError
		if !errors.As(err, &queryErr) {
			t.Fatalf("expected *model.ModelQueryError, got %v", err)
		}
		if queryErr.StatusCode != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", queryErr.StatusCode)
		}
		if queryErr.Err.Error() != "Incorrect API key provided" {
			t.Errorf("unexpected message %q", queryErr.Err.Error())
		}
	})

	t.Run("empty choices returns ErrNoChoices", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"id":"x","choices":[]}`)) //nolint:errcheck
		}))
		defer server.Close()

		c := NewClient(server.Client(), "k", WithEndpoint(server.URL), WithLogger(discardLogger()))
		_, err := c.Complete(context.Background(), "p", "u")
		if !errors.Is(err, ErrNoChoices) {
			t.Errorf("expected ErrNoChoices, got %v", err)
		}
		if !errors.Is(err, model.ErrModelQuery) {
			t.Errorf("expected ErrModelQuery, got %v", err)
		}
	})

	t.Run("refusal returns ErrRefused", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"","refusal":"cannot help"}}]}`)) //nolint:errcheck
		}))
		defer server.Close()

		c := NewClient(server.Client(), "k", WithEndpoint(server.URL), WithLogger(discardLogger()))
		_, err := c.Complete(context.Background(), "p", "u")
		if !errors.Is(err, ErrRefused) {
			t.Errorf("expected ErrRefused, got %v", err)
		}
	})

	t.Run("malformed JSON returns ModelQueryError", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>`)) //nolint:errcheck
		}))
		defer server.Close()

		c := NewClient(server.Client(), "k", WithEndpoint(server.URL), WithLogger(discardLogger()))
		_, err := c.Complete(context.Background(), "p", "u")
		if !errors.Is(err, model.ErrModelQuery) {
			t.Errorf("expected ErrModelQuery, got %v", err)
		}
	})

	t.Run("canceled context returns ModelQueryError", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(completionBody(t, "{}")) //nolint:errcheck
		}))
		defer server.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		c := NewClient(server.Client(), "k", WithEndpoint(server.URL), WithLogger(discardLogger()))
		_, err := c.Complete(ctx, "p", "u")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if !errors.Is(err, model.ErrModelQuery) {
			t.Errorf("expected ErrModelQuery, got %v", err)
		}
	})
}

func TestNewClientDefaults(t *testing.T) {
	t.Parallel()

	c := NewClient(nil, "k")
	if c.client != http.DefaultClient {
		t.Error("expected http.DefaultClient when nil is given")
	}
	if c.endpoint != DefaultEndpoint {
		t.Errorf("unexpected endpoint %q", c.endpoint)
	}
	if c.Model() != DefaultModel {
		t.Errorf("unexpected model %q", c.Model())
	}
}
