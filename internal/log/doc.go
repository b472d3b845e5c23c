// Package log provides secure logging built on top of the standard slog
// package.
//
// floorscan handles two API credentials (the ImgBB key and the OpenAI key)
// and logs outbound requests and their failures. The SecureHandler keeps
// those credentials out of log output:
//   - attributes with credential-like keys (authorization, api_key, key, ...)
//     are replaced entirely
//   - values that look like credentials (Bearer headers, sk- keys, long
//     alphanumeric tokens) are replaced entirely
//   - credential query parameters inside URLs and sk- keys embedded in error
//     messages are masked in place, keeping the rest of the text readable
//
// Even in verbose mode, sensitive values are masked.
//
// # Usage
//
//	logger := log.New(os.Stderr, log.FormatText, slog.LevelInfo)
//	logger.Info("uploading", "url", "https://api.imgbb.com/1/upload?key=abc")
//	// url=https://api.imgbb.com/1/upload?key=***REDACTED***
//	slog.SetDefault(logger)
package log
