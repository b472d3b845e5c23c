package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "floorscan"

	// DefaultImageHostEndpoint is the ImgBB upload API.
	DefaultImageHostEndpoint = "https://api.imgbb.com/1/upload"

	// DefaultModelEndpoint is the OpenAI chat completion API.
	DefaultModelEndpoint = "https://api.openai.com/v1/chat/completions"

	// DefaultModelName is a vision-capable chat model.
	DefaultModelName = "gpt-4o"

	// DefaultListenAddress matches the port the web form has always used.
	DefaultListenAddress = ":3000"

	// DefaultMaxUploadSize caps multipart uploads. ImgBB rejects files over
	// 32 MiB, so a larger upload could never succeed anyway.
	DefaultMaxUploadSize = 32 << 20

	// DefaultShutdownTimeout is how long in-flight requests may run after
	// SIGINT/SIGTERM.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultConcurrency is the number of images extracted at once by the CLI.
	DefaultConcurrency = 4

	// DefaultUserAgent identifies floorscan in outbound requests.
	DefaultUserAgent = "floorscan/1.0 (+https://github.com/nao1215/floorscan)"

	// DefaultLogFormat is the slog handler used when none is configured.
	DefaultLogFormat = LogFormatText

	// MinImageExpiration and MaxImageExpiration bound the ImgBB expiration
	// parameter in seconds.
	MinImageExpiration = 60
	MaxImageExpiration = 15552000
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds all configuration options for floorscan.
// It is built once at startup and passed to constructors; nothing reads
// configuration from globals afterwards.
//
// Design decision: We use a single flat struct instead of nested structs
// for simplicity. The YAML file is nested for readability and is flattened
// into this struct by ApplyFile.
type Config struct {
	// ImageHostAPIKey is the ImgBB API key.
	ImageHostAPIKey string

	// ImageHostEndpoint is the upload endpoint.
	ImageHostEndpoint string

	// ImageExpiration asks the image host to delete uploads after this many
	// seconds. Zero keeps them indefinitely.
	ImageExpiration int

	// ModelAPIKey is the OpenAI API key.
	ModelAPIKey string

	// ModelEndpoint is the chat completion endpoint. Any OpenAI-compatible
	// server can be used.
	ModelEndpoint string

	// ModelName is the vision-capable model to query.
	ModelName string

	// ImageDetail is the image_url detail level ("low", "high", "auto").
	// Empty leaves the API default.
	ImageDetail string

	// MaxTokens limits the completion length. Zero leaves the API default.
	MaxTokens int

	// ListenAddress is the HTTP server address.
	ListenAddress string

	// MaxUploadSize is the largest accepted upload in bytes. Zero disables
	// the limit.
	MaxUploadSize int64

	// MaxInFlight limits concurrent extraction requests. Zero means no limit.
	MaxInFlight int

	// ShutdownTimeout bounds graceful shutdown of the HTTP server.
	ShutdownTimeout time.Duration

	// Timeout is the overall timeout of each outbound request. Zero means no
	// timeout, leaving cancellation to the request context.
	Timeout time.Duration

	// ProxyAddress routes outbound requests through a SOCKS5 proxy
	// ("host:port"). Empty connects directly.
	ProxyAddress string

	// UserAgent is sent with every outbound request.
	UserAgent string

	// Concurrency is the number of images the CLI extracts at once.
	Concurrency int

	// DBDir is the directory of the SQLite history database.
	// Defaults to the XDG data directory (~/.local/share/floorscan on Linux).
	DBDir string

	// SaveToDB records every extraction in the history database.
	SaveToDB bool

	// Verbose enables debug logging.
	Verbose bool

	// LogFormat selects the slog handler ("text" or "json").
	LogFormat string

	// ConfigFilePath is the configuration file that was loaded, if any.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (endpoints, limits).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		ImageHostEndpoint: DefaultImageHostEndpoint,
		ModelEndpoint:     DefaultModelEndpoint,
		ModelName:         DefaultModelName,
		ListenAddress:     DefaultListenAddress,
		MaxUploadSize:     DefaultMaxUploadSize,
		ShutdownTimeout:   DefaultShutdownTimeout,
		UserAgent:         DefaultUserAgent,
		Concurrency:       DefaultConcurrency,
		DBDir:             XDGDataDir(),
		LogFormat:         DefaultLogFormat,
	}
}

// XDGDataDir returns the XDG data directory for floorscan.
// On Linux: ~/.local/share/floorscan
// On macOS: ~/Library/Application Support/floorscan
// On Windows: %LOCALAPPDATA%\floorscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for floorscan.
// On Linux: ~/.config/floorscan
// On macOS: ~/Library/Application Support/floorscan
// On Windows: %APPDATA%\floorscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the settings shared by every command.
// It returns the first problem found as a sentinel error.
//
// Credentials are checked separately by ValidateCredentials because
// commands such as history and init never call the APIs.
func (c *Config) Validate() error {
	if !isHTTPURL(c.ImageHostEndpoint) {
		return ErrInvalidImageHostEndpoint
	}
	if !isHTTPURL(c.ModelEndpoint) {
		return ErrInvalidModelEndpoint
	}
	if c.ModelName == "" {
		return ErrMissingModelName
	}
	if c.ImageExpiration != 0 && (c.ImageExpiration < MinImageExpiration || c.ImageExpiration > MaxImageExpiration) {
		return ErrInvalidImageExpiration
	}
	switch c.ImageDetail {
	case "", "low", "high", "auto":
	default:
		return ErrInvalidImageDetail
	}
	if c.MaxTokens < 0 {
		return ErrInvalidMaxTokens
	}
	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if c.MaxUploadSize < 0 {
		return ErrInvalidMaxUploadSize
	}
	if c.MaxInFlight < 0 {
		return ErrInvalidMaxInFlight
	}
	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return ErrInvalidLogFormat
	}
	return nil
}

// ValidateCredentials checks that both API keys are present.
func (c *Config) ValidateCredentials() error {
	if c.ImageHostAPIKey == "" {
		return ErrMissingImageHostKey
	}
	if c.ModelAPIKey == "" {
		return ErrMissingModelKey
	}
	return nil
}

// isHTTPURL reports whether s is an absolute http(s) URL.
func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
