package imagehost

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nao1215/floorscan/internal/model"
)

// DefaultEndpoint is the ImgBB upload endpoint.
const DefaultEndpoint = "https://api.imgbb.com/1/upload"

// maxResponseSize caps how much of the host's reply we read.
// A successful ImgBB reply is well under 4KB.
const maxResponseSize = 1 << 20

// Relay errors. They are always wrapped in *model.UploadError.
var (
	// ErrEmptyImage is returned when the image has no bytes.
	ErrEmptyImage = errors.New("image is empty")

	// ErrMissingURL is returned when the host reply lacks data.url.
	ErrMissingURL = errors.New("image host response has no data.url")
)

// uploadResponse mirrors the parts of the ImgBB reply we use.
type uploadResponse struct {
	Data struct {
		URL        string `json:"url"`
		DisplayURL string `json:"display_url"`
		DeleteURL  string `json:"delete_url"`
	} `json:"data"`
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Error   struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client uploads images to the image host.
//
// Design decision: We require an external http.Client rather than
// creating one internally because proxy and timeout configuration is
// handled by the transport package, and tests substitute httptest clients.
type Client struct {
	client     *http.Client
	endpoint   string
	apiKey     string
	expiration int
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the upload endpoint (used by tests and self-hosted
// ImgBB-compatible services).
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithExpiration asks the host to delete the image after the given number
// of seconds. Zero keeps the image indefinitely.
func WithExpiration(seconds int) Option {
	return func(c *Client) {
		c.expiration = seconds
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a relay client that authenticates with apiKey.
func NewClient(client *http.Client, apiKey string, opts ...Option) *Client {
	c := &Client{
		client:   client,
		endpoint: DefaultEndpoint,
		apiKey:   apiKey,
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

// Upload publishes image and returns its public URL.
// Every failure is logged and returned as *model.UploadError; there is no retry.
func (c *Client) Upload(ctx context.Context, image *model.UploadedImage) (string, error) {
	if image == nil {
		image = &model.UploadedImage{}
	}
	hostedURL, err := c.upload(ctx, image)
	if err != nil {
		c.logger.Error("image upload failed",
			"endpoint", c.endpoint,
			"filename", image.Filename,
			"error", err,
		)
		return "", err
	}

	c.logger.Debug("image uploaded",
		"filename", image.Filename,
		"url", hostedURL,
	)
	return hostedURL, nil
}

func (c *Client) upload(ctx context.Context, image *model.UploadedImage) (string, error) {
	if image.IsEmpty() {
		return "", &model.UploadError{Err: ErrEmptyImage}
	}

	form := url.Values{}
	form.Set("key", c.apiKey)
	form.Set("image", base64.StdEncoding.EncodeToString(image.Data))
	form.Set("name", image.Filename)
	if c.expiration > 0 {
		form.Set("expiration", strconv.Itoa(c.expiration))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &model.UploadError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &model.UploadError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", &model.UploadError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	var parsed uploadResponse
	decodeErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", &model.UploadError{StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}
	if decodeErr != nil {
		return "", &model.UploadError{StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid JSON response: %w", decodeErr)}
	}
	if parsed.Data.URL == "" {
		return "", &model.UploadError{StatusCode: resp.StatusCode, Err: ErrMissingURL}
	}

	return parsed.Data.URL, nil
}

// Endpoint returns the configured upload endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}
