package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/floorscan/internal/model"
)

const (
	// DefaultEndpoint is the OpenAI chat completion endpoint.
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"

	// DefaultModel is a vision-capable chat model.
	DefaultModel = "gpt-4o"
)

// maxResponseSize caps how much of the model API reply we read.
const maxResponseSize = 4 << 20

// Model query errors. They are always wrapped in *model.ModelQueryError.
var (
	// ErrNoChoices is returned when the API reply has an empty choices list.
	ErrNoChoices = errors.New("model returned no choices")

	// ErrRefused is returned when the model refused to answer.
	ErrRefused = errors.New("model refused the request")
)

// Client calls the chat completion API.
type Client struct {
	client    *http.Client
	endpoint  string
	apiKey    string
	model     string
	detail    string
	maxTokens int
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the chat completion endpoint. Any OpenAI-compatible
// server (Azure OpenAI, vLLM, Ollama) can be used.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithModel sets the model name.
func WithModel(name string) Option {
	return func(c *Client) {
		c.model = name
	}
}

// WithImageDetail sets the image detail level ("low", "high" or "auto").
// Empty leaves the API default.
func WithImageDetail(detail string) Option {
	return func(c *Client) {
		c.detail = detail
	}
}

// WithMaxTokens limits the completion length. Zero leaves the API default.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a model client that authenticates with apiKey.
func NewClient(client *http.Client, apiKey string, opts ...Option) *Client {
	c := &Client{
		client:   client,
		endpoint: DefaultEndpoint,
		apiKey:   apiKey,
		model:    DefaultModel,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = http.DefaultClient
	}
	return c
}

// Complete sends prompt and the image URL as one user message and returns
// the text of the single completion. Failures are *model.ModelQueryError.
func (c *Client) Complete(ctx context.Context, prompt, imageURL string) (string, error) {
	start := time.Now()
	text, err := c.complete(ctx, prompt, imageURL)
	if err != nil {
		c.logger.Error("model query failed",
			"endpoint", c.endpoint,
			"model", c.model,
			"error", err,
		)
		return "", err
	}

	c.logger.Debug("model query completed",
		"model", c.model,
		"elapsed", time.Since(start),
		"response_length", len(text),
	)
	return text, nil
}

func (c *Client) complete(ctx context.Context, prompt, imageURL string) (string, error) {
	body, err := json.Marshal(c.newRequest(prompt, imageURL))
	if err != nil {
		return "", &model.ModelQueryError{Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &model.ModelQueryError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &model.ModelQueryError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", &model.ModelQueryError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &model.ModelQueryError{StatusCode: resp.StatusCode, Err: apiError(resp.StatusCode, data)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &model.ModelQueryError{StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid JSON response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &model.ModelQueryError{StatusCode: resp.StatusCode, Err: ErrNoChoices}
	}

	choice := parsed.Choices[0]
	if choice.Message.Content == "" && choice.Message.Refusal != "" {
		return "", &model.ModelQueryError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %s", ErrRefused, choice.Message.Refusal)}
	}
	if parsed.Usage != nil {
		c.logger.Debug("model token usage",
			"prompt_tokens", parsed.Usage.PromptTokens,
			"completion_tokens", parsed.Usage.CompletionTokens,
		)
	}
	return choice.Message.Content, nil
}

func (c *Client) newRequest(prompt, imageURLValue string) chatRequest {
	return chatRequest{
		Model: c.model,
		N:     1,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &imageURL{URL: imageURLValue, Detail: c.detail}},
				},
			},
		},
		MaxTokens: c.maxTokens,
	}
}

// apiError builds an error from a non-success reply, preferring the API's
// own message.
func apiError(status int, body []byte) error {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return errors.New(parsed.Error.Message)
	}
	text := strings.TrimSpace(string(body))
	if text == "" || len(text) > 200 {
		return errors.New(http.StatusText(status))
	}
	return errors.New(text)
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}
