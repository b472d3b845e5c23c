package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".floorscan"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File represents the structure of the .floorscan configuration file.
// Zero values mean "not set" and leave the current setting unchanged.
type File struct {
	ImageHost ImageHostFile `yaml:"imagehost,omitempty"`
	Model     ModelFile     `yaml:"model,omitempty"`
	Server    ServerFile    `yaml:"server,omitempty"`
	Network   NetworkFile   `yaml:"network,omitempty"`
	History   HistoryFile   `yaml:"history,omitempty"`
	Log       LogFile       `yaml:"log,omitempty"`
}

// ImageHostFile is the imagehost section.
type ImageHostFile struct {
	APIKey     string `yaml:"apiKey,omitempty"`
	Endpoint   string `yaml:"endpoint,omitempty"`
	Expiration int    `yaml:"expiration,omitempty"`
}

// ModelFile is the model section.
type ModelFile struct {
	APIKey    string `yaml:"apiKey,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	Name      string `yaml:"name,omitempty"`
	Detail    string `yaml:"detail,omitempty"`
	MaxTokens int    `yaml:"maxTokens,omitempty"`
}

// ServerFile is the server section.
type ServerFile struct {
	Listen          string        `yaml:"listen,omitempty"`
	MaxUploadSize   *int64        `yaml:"maxUploadSize,omitempty"`
	MaxInFlight     int           `yaml:"maxInFlight,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty"`
}

// NetworkFile is the network section.
type NetworkFile struct {
	Proxy       string        `yaml:"proxy,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	UserAgent   string        `yaml:"userAgent,omitempty"`
	Concurrency int           `yaml:"concurrency,omitempty"`
}

// HistoryFile is the history section.
type HistoryFile struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	DBDir   string `yaml:"dbDir,omitempty"`
}

// LogFile is the log section.
type LogFile struct {
	Format  string `yaml:"format,omitempty"`
	Verbose bool   `yaml:"verbose,omitempty"`
}

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error based on whether the path was
// explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .floorscan in the current directory
// 3. Look for .floorscan in the user's home directory
// 4. Look for .floorscan in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	candidates := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), DefaultConfigFile))

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// ApplyFile overlays the settings present in f onto c.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}

	setString(&c.ImageHostAPIKey, f.ImageHost.APIKey)
	setString(&c.ImageHostEndpoint, f.ImageHost.Endpoint)
	setInt(&c.ImageExpiration, f.ImageHost.Expiration)

	setString(&c.ModelAPIKey, f.Model.APIKey)
	setString(&c.ModelEndpoint, f.Model.Endpoint)
	setString(&c.ModelName, f.Model.Name)
	setString(&c.ImageDetail, f.Model.Detail)
	setInt(&c.MaxTokens, f.Model.MaxTokens)

	setString(&c.ListenAddress, f.Server.Listen)
	if f.Server.MaxUploadSize != nil {
		c.MaxUploadSize = *f.Server.MaxUploadSize
	}
	setInt(&c.MaxInFlight, f.Server.MaxInFlight)
	if f.Server.ShutdownTimeout != 0 {
		c.ShutdownTimeout = f.Server.ShutdownTimeout
	}

	setString(&c.ProxyAddress, f.Network.Proxy)
	if f.Network.Timeout != 0 {
		c.Timeout = f.Network.Timeout
	}
	setString(&c.UserAgent, f.Network.UserAgent)
	setInt(&c.Concurrency, f.Network.Concurrency)

	if f.History.Enabled {
		c.SaveToDB = true
	}
	setString(&c.DBDir, f.History.DBDir)

	setString(&c.LogFormat, f.Log.Format)
	if f.Log.Verbose {
		c.Verbose = true
	}
}

// Environment variable names.
const (
	EnvImageHostAPIKey   = "IMGBB_API_KEY"
	EnvModelAPIKey       = "OPENAI_API_KEY"
	EnvImageHostEndpoint = "FLOORSCAN_IMAGEHOST_ENDPOINT"
	EnvModelEndpoint     = "FLOORSCAN_MODEL_ENDPOINT"
	EnvModelName         = "FLOORSCAN_MODEL"
	EnvListenAddress     = "FLOORSCAN_LISTEN"
	EnvMaxUploadSize     = "FLOORSCAN_MAX_UPLOAD_SIZE"
	EnvMaxInFlight       = "FLOORSCAN_MAX_IN_FLIGHT"
	EnvTimeout           = "FLOORSCAN_TIMEOUT"
	EnvProxy             = "FLOORSCAN_PROXY"
	EnvDBDir             = "FLOORSCAN_DB_DIR"
	EnvHistory           = "FLOORSCAN_HISTORY"
	EnvLogFormat         = "FLOORSCAN_LOG_FORMAT"
)

// ApplyEnv overlays settings from the environment. lookup is normally
// os.LookupEnv; tests pass a map-backed function.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		return v, ok && v != ""
	}

	if v, ok := get(EnvImageHostAPIKey); ok {
		c.ImageHostAPIKey = v
	}
	if v, ok := get(EnvModelAPIKey); ok {
		c.ModelAPIKey = v
	}
	if v, ok := get(EnvImageHostEndpoint); ok {
		c.ImageHostEndpoint = v
	}
	if v, ok := get(EnvModelEndpoint); ok {
		c.ModelEndpoint = v
	}
	if v, ok := get(EnvModelName); ok {
		c.ModelName = v
	}
	if v, ok := get(EnvListenAddress); ok {
		c.ListenAddress = v
	}
	if v, ok := get(EnvProxy); ok {
		c.ProxyAddress = v
	}
	if v, ok := get(EnvDBDir); ok {
		c.DBDir = v
	}
	if v, ok := get(EnvLogFormat); ok {
		c.LogFormat = v
	}

	if v, ok := get(EnvMaxUploadSize); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidEnvironment, EnvMaxUploadSize, err)
		}
		c.MaxUploadSize = n
	}
	if v, ok := get(EnvMaxInFlight); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidEnvironment, EnvMaxInFlight, err)
		}
		c.MaxInFlight = n
	}
	if v, ok := get(EnvTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidEnvironment, EnvTimeout, err)
		}
		c.Timeout = d
	}
	if v, ok := get(EnvHistory); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidEnvironment, EnvHistory, err)
		}
		c.SaveToDB = b
	}
	return nil
}

// Load builds a Config from defaults, the configuration file and the
// environment. configPath may be empty to search the default locations;
// an explicit path that does not exist is an error.
func Load(configPath string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := NewConfig()

	path := FindConfigFile(configPath)
	if configPath != "" && path == "" {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
	}
	if path != "" {
		f, err := LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg.ApplyFile(f)
		cfg.ConfigFilePath = path
	}

	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
