package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and ValidateCredentials()
// and can be matched with errors.Is().
var (
	// ErrMissingImageHostKey is returned when no ImgBB API key is configured.
	ErrMissingImageHostKey = errors.New("missing image host API key: set IMGBB_API_KEY or imagehost.apiKey")

	// ErrMissingModelKey is returned when no OpenAI API key is configured.
	ErrMissingModelKey = errors.New("missing model API key: set OPENAI_API_KEY or model.apiKey")

	// ErrInvalidImageHostEndpoint is returned when the upload endpoint is not an http(s) URL.
	ErrInvalidImageHostEndpoint = errors.New("invalid image host endpoint: must be an absolute http(s) URL")

	// ErrInvalidModelEndpoint is returned when the model endpoint is not an http(s) URL.
	ErrInvalidModelEndpoint = errors.New("invalid model endpoint: must be an absolute http(s) URL")

	// ErrMissingModelName is returned when the model name is empty.
	ErrMissingModelName = errors.New("missing model name")

	// ErrInvalidImageExpiration is returned when the expiration is outside 60..15552000 seconds.
	ErrInvalidImageExpiration = errors.New("invalid image expiration: must be 0 or between 60 and 15552000 seconds")

	// ErrInvalidImageDetail is returned for an unknown image detail level.
	ErrInvalidImageDetail = errors.New("invalid image detail: must be low, high or auto")

	// ErrInvalidMaxTokens is returned when max tokens is negative.
	ErrInvalidMaxTokens = errors.New("invalid max tokens: must be non-negative")

	// ErrInvalidTimeout is returned when the timeout is negative.
	// Use 0 for no timeout.
	ErrInvalidTimeout = errors.New("invalid timeout: must be non-negative")

	// ErrInvalidMaxUploadSize is returned when the upload limit is negative.
	// Use 0 for no limit.
	ErrInvalidMaxUploadSize = errors.New("invalid max upload size: must be non-negative")

	// ErrInvalidMaxInFlight is returned when the in-flight limit is negative.
	// Use 0 for no limit.
	ErrInvalidMaxInFlight = errors.New("invalid max in-flight requests: must be non-negative")

	// ErrInvalidShutdownTimeout is returned when the shutdown timeout is not positive.
	ErrInvalidShutdownTimeout = errors.New("invalid shutdown timeout: must be positive")

	// ErrInvalidConcurrency is returned when the concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidLogFormat is returned for a log format other than text or json.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrInvalidEnvironment is returned when an environment variable cannot be parsed.
	ErrInvalidEnvironment = errors.New("invalid environment variable")
)
