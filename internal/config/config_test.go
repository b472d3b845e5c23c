package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestNewConfig tests that default values are set correctly.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default endpoints point at ImgBB and OpenAI", func(t *testing.T) {
		t.Parallel()

		if cfg.ImageHostEndpoint != "https://api.imgbb.com/1/upload" {
			t.Errorf("unexpected image host endpoint %q", cfg.ImageHostEndpoint)
		}
		if cfg.ModelEndpoint != "https://api.openai.com/v1/chat/completions" {
			t.Errorf("unexpected model endpoint %q", cfg.ModelEndpoint)
		}
	})

	t.Run("default model is gpt-4o", func(t *testing.T) {
		t.Parallel()

		if cfg.ModelName != "gpt-4o" {
			t.Errorf("expected gpt-4o, got %q", cfg.ModelName)
		}
	})

	t.Run("default upload limit is 32 MiB", func(t *testing.T) {
		t.Parallel()

		if cfg.MaxUploadSize != 32*1024*1024 {
			t.Errorf("expected 32 MiB, got %d", cfg.MaxUploadSize)
		}
	})

	t.Run("outbound requests and in-flight requests are unbounded by default", func(t *testing.T) {
		t.Parallel()

		if cfg.Timeout != 0 {
			t.Errorf("expected no timeout, got %s", cfg.Timeout)
		}
		if cfg.MaxInFlight != 0 {
			t.Errorf("expected no in-flight limit, got %d", cfg.MaxInFlight)
		}
	})

	t.Run("defaults pass validation", func(t *testing.T) {
		t.Parallel()

		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("history is off and lives in the XDG data dir", func(t *testing.T) {
		t.Parallel()

		if cfg.SaveToDB {
			t.Error("expected history to be disabled")
		}
		if cfg.DBDir != XDGDataDir() {
			t.Errorf("expected %q, got %q", XDGDataDir(), cfg.DBDir)
		}
		if !strings.HasSuffix(XDGDataDir(), AppName) || !strings.HasSuffix(XDGConfigDir(), AppName) {
			t.Error("expected XDG dirs to end with the app name")
		}
	})
}

// TestConfigValidate tests configuration validation.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{name: "relative image host endpoint", modify: func(c *Config) { c.ImageHostEndpoint = "/upload" }, want: ErrInvalidImageHostEndpoint},
		{name: "ftp model endpoint", modify: func(c *Config) { c.ModelEndpoint = "ftp://host/x" }, want: ErrInvalidModelEndpoint},
		{name: "empty model name", modify: func(c *Config) { c.ModelName = "" }, want: ErrMissingModelName},
		{name: "expiration below minimum", modify: func(c *Config) { c.ImageExpiration = 59 }, want: ErrInvalidImageExpiration},
		{name: "expiration above maximum", modify: func(c *Config) { c.ImageExpiration = MaxImageExpiration + 1 }, want: ErrInvalidImageExpiration},
		{name: "unknown image detail", modify: func(c *Config) { c.ImageDetail = "ultra" }, want: ErrInvalidImageDetail},
		{name: "negative max tokens", modify: func(c *Config) { c.MaxTokens = -1 }, want: ErrInvalidMaxTokens},
		{name: "negative timeout", modify: func(c *Config) { c.Timeout = -time.Second }, want: ErrInvalidTimeout},
		{name: "negative upload size", modify: func(c *Config) { c.MaxUploadSize = -1 }, want: ErrInvalidMaxUploadSize},
		{name: "negative in-flight limit", modify: func(c *Config) { c.MaxInFlight = -1 }, want: ErrInvalidMaxInFlight},
		{name: "zero shutdown timeout", modify: func(c *Config) { c.ShutdownTimeout = 0 }, want: ErrInvalidShutdownTimeout},
		{name: "zero concurrency", modify: func(c *Config) { c.Concurrency = 0 }, want: ErrInvalidConcurrency},
		{name: "unknown log format", modify: func(c *Config) { c.LogFormat = "xml" }, want: ErrInvalidLogFormat},
		{name: "expiration at minimum is valid", modify: func(c *Config) { c.ImageExpiration = MinImageExpiration }, want: nil},
		{name: "json log format is valid", modify: func(c *Config) { c.LogFormat = LogFormatJSON }, want: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tc.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestConfigValidateCredentials(t *testing.T) {
	t.Parallel()

	t.Run("missing image host key", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.ModelAPIKey = "sk-test"
		if err := cfg.ValidateCredentials(); !errors.Is(err, ErrMissingImageHostKey) {
			t.Errorf("expected ErrMissingImageHostKey, got %v", err)
		}
	})

	t.Run("missing model key", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.ImageHostAPIKey = "imgbb"
		if err := cfg.ValidateCredentials(); !errors.Is(err, ErrMissingModelKey) {
			t.Errorf("expected ErrMissingModelKey, got %v", err)
		}
	})

	t.Run("both keys present", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.ImageHostAPIKey = "imgbb"
		cfg.ModelAPIKey = "sk-test"
		if err := cfg.ValidateCredentials(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

// mapLookup returns an os.LookupEnv replacement backed by env.
func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	t.Run("reads keys and overrides", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		err := cfg.ApplyEnv(mapLookup(map[string]string{
			EnvImageHostAPIKey: "imgbb-key",
			EnvModelAPIKey:     "sk-key",
			EnvModelName:       "gpt-4o-mini",
			EnvMaxUploadSize:   "1024",
			EnvMaxInFlight:     "8",
			EnvTimeout:         "90s",
			EnvHistory:         "true",
			EnvProxy:           "127.0.0.1:1080",
		}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.ImageHostAPIKey != "imgbb-key" || cfg.ModelAPIKey != "sk-key" {
			t.Error("expected API keys from the environment")
		}
		if cfg.ModelName != "gpt-4o-mini" {
			t.Errorf("unexpected model %q", cfg.ModelName)
		}
		if cfg.MaxUploadSize != 1024 || cfg.MaxInFlight != 8 {
			t.Errorf("unexpected limits %d/%d", cfg.MaxUploadSize, cfg.MaxInFlight)
		}
		if cfg.Timeout != 90*time.Second {
			t.Errorf("unexpected timeout %s", cfg.Timeout)
		}
		if !cfg.SaveToDB {
			t.Error("expected history to be enabled")
		}
		if cfg.ProxyAddress != "127.0.0.1:1080" {
			t.Errorf("unexpected proxy %q", cfg.ProxyAddress)
		}
	})

	t.Run("empty values are ignored", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		if err := cfg.ApplyEnv(mapLookup(map[string]string{EnvModelName: ""})); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.ModelName != DefaultModelName {
			t.Errorf("expected default model, got %q", cfg.ModelName)
		}
	})

	t.Run("unparsable numbers return ErrInvalidEnvironment", func(t *testing.T) {
		t.Parallel()

		for _, key := range []string{EnvMaxUploadSize, EnvMaxInFlight, EnvTimeout, EnvHistory} {
			cfg := NewConfig()
			err := cfg.ApplyEnv(mapLookup(map[string]string{key: "lots"}))
			if !errors.Is(err, ErrInvalidEnvironment) {
				t.Errorf("%s: expected ErrInvalidEnvironment, got %v", key, err)
			}
		}
	})
}

// writeConfig writes content to a .floorscan file in a temporary directory.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("file values override defaults and environment overrides the file", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, `
imagehost:
  apiKey: file-imgbb
  expiration: 600
model:
  apiKey: file-openai
  name: gpt-4o-mini
  detail: high
server:
  listen: ":8080"
  maxUploadSize: 0
  shutdownTimeout: 5s
network:
  timeout: 2m
history:
  enabled: true
  dbDir: /tmp/floorscan-history
log:
  format: json
`)

		cfg, err := Load(path, mapLookup(map[string]string{EnvModelAPIKey: "env-openai"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.ConfigFilePath != path {
			t.Errorf("unexpected config path %q", cfg.ConfigFilePath)
		}
		if cfg.ImageHostAPIKey != "file-imgbb" {
			t.Errorf("unexpected image host key %q", cfg.ImageHostAPIKey)
		}
		if cfg.ModelAPIKey != "env-openai" {
			t.Errorf("expected environment to win, got %q", cfg.ModelAPIKey)
		}
		if cfg.ImageExpiration != 600 || cfg.ModelName != "gpt-4o-mini" || cfg.ImageDetail != "high" {
			t.Errorf("unexpected model settings %+v", cfg)
		}
		if cfg.ListenAddress != ":8080" {
			t.Errorf("unexpected listen address %q", cfg.ListenAddress)
		}
		if cfg.MaxUploadSize != 0 {
			t.Errorf("expected explicit 0 upload limit, got %d", cfg.MaxUploadSize)
		}
		if cfg.ShutdownTimeout != 5*time.Second || cfg.Timeout != 2*time.Minute {
			t.Errorf("unexpected durations %s/%s", cfg.ShutdownTimeout, cfg.Timeout)
		}
		if !cfg.SaveToDB || cfg.DBDir != "/tmp/floorscan-history" {
			t.Errorf("unexpected history settings %v/%q", cfg.SaveToDB, cfg.DBDir)
		}
		if cfg.LogFormat != LogFormatJSON {
			t.Errorf("unexpected log format %q", cfg.LogFormat)
		}
	})

	t.Run("explicit missing path returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), mapLookup(nil))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("malformed YAML returns an error", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, "model: [unterminated")
		if _, err := Load(path, mapLookup(nil)); err == nil {
			t.Error("expected a parse error")
		}
	})
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("empty file yields an empty File", func(t *testing.T) {
		t.Parallel()

		f, err := LoadConfigFile(writeConfig(t, ""))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cfg := NewConfig()
		cfg.ApplyFile(f)
		if *cfg != *NewConfig() {
			t.Error("expected an empty file to leave defaults unchanged")
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit existing path is returned", func(t *testing.T) {
		t.Parallel()

		path := writeConfig(t, "")
		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("explicit missing path returns empty string", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "missing")); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}
