package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// Log output formats accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// sensitiveKeys contains attribute keys that should always be sanitized.
var sensitiveKeys = map[string]bool{
	// HTTP headers
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"proxy-authorization": true,

	// API credentials
	"key":            true,
	"api_key":        true,
	"apikey":         true,
	"api-key":        true,
	"imgbb_api_key":  true,
	"openai_api_key": true,
	"access_token":   true,
	"secret_key":     true,

	// Generic secrets
	"password":   true,
	"secret":     true,
	"token":      true,
	"credential": true,
}

// sensitiveKeywords mark a key as sensitive when contained anywhere in it.
// The bare word "key" is excluded because of false positives such as
// "primary_key" or "monkey"; exact "key" is in sensitiveKeys.
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "apikey", "api_key",
}

// sensitivePatterns match values that are credentials in their entirety.
var sensitivePatterns = []*regexp.Regexp{
	// OpenAI keys (sk-..., sk-proj-...)
	regexp.MustCompile(`^sk-[A-Za-z0-9_-]{16,}$`),

	// Bearer tokens
	regexp.MustCompile(`(?i)^bearer\s+.+`),

	// Basic auth
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),

	// JWT tokens
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),

	// Long alphanumeric strings, which covers 32-hex ImgBB keys
	regexp.MustCompile(`^[a-zA-Z0-9]{32,}$`),
}

// inlinePatterns mask credentials embedded in longer text such as URLs and
// error messages. The first group is kept.
var inlinePatterns = []*regexp.Regexp{
	// Credential query parameters
	regexp.MustCompile(`(?i)([?&](?:key|api_key|apikey|token|access_token)=)[^&\s"']+`),

	// Authorization header values quoted in errors
	regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]+`),

	// OpenAI keys anywhere in the text
	regexp.MustCompile(`(sk-)[A-Za-z0-9_-]{16,}`),
}

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// SecureHandler wraps an slog.Handler to sanitize sensitive information.
// It intercepts log records and sanitizes attribute values that match
// sensitive key names or value patterns before passing them to the
// underlying handler.
//
// Design decision: We use a handler wrapper rather than a custom logger so
// it works with any underlying handler (text, JSON) and with libraries
// that accept a *slog.Logger.
type SecureHandler struct {
	// handler is the underlying slog handler that receives sanitized records.
	handler slog.Handler
}

// NewSecureHandler creates a new SecureHandler wrapping the given handler.
// If handler is nil, the returned SecureHandler will use slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled reports whether the handler handles records at the given level.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's message and attributes and passes it to the
// underlying handler.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, RedactText(r.Message), r.PC)

	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(h.sanitizeAttr(a))
		return true
	})

	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a new handler with the given attributes added.
// Attributes are sanitized before being added.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitizedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitizedAttrs[i] = h.sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitizedAttrs)}
}

// WithGroup returns a new handler with the given group name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

// sanitizeAttr sanitizes a single attribute, recursively handling groups.
func (h *SecureHandler) sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		sanitizedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			sanitizedAttrs[i] = h.sanitizeAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitizedAttrs...)}
	}

	keyLower := strings.ToLower(a.Key)
	if sensitiveKeys[keyLower] || containsSensitiveKeyword(keyLower) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		value := a.Value.String()
		if isSensitiveValue(value) {
			return slog.String(a.Key, MaskValue)
		}
		if redacted := RedactText(value); redacted != value {
			return slog.String(a.Key, redacted)
		}
	case slog.KindAny:
		// Errors from net/http quote the request URL; mask what they carry.
		if err, ok := a.Value.Any().(error); ok && err != nil {
			msg := err.Error()
			if redacted := RedactText(msg); redacted != msg {
				return slog.Any(a.Key, &redactedError{msg: redacted, err: err})
			}
		}
	}

	return a
}

// redactedError keeps the error chain of a sanitized error intact.
type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

// containsSensitiveKeyword checks if the key contains sensitive keywords.
func containsSensitiveKeyword(key string) bool {
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

// isSensitiveValue checks if a value is a credential in its entirety.
func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// RedactText masks credentials embedded in s, such as key= query
// parameters, Bearer tokens and sk- keys.
func RedactText(s string) string {
	for _, pattern := range inlinePatterns {
		s = pattern.ReplaceAllString(s, "${1}"+MaskValue)
	}
	return s
}

// New creates a secure logger writing format ("text" or "json") at level.
// An unknown format falls back to text.
func New(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(NewSecureHandler(handler))
}

// Level returns Debug when verbose is set, otherwise base.
func Level(verbose bool, base slog.Level) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return base
}

// NewSecureLogger creates a text logger for CLI use: Debug when verbose,
// Warn otherwise.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return New(w, FormatText, Level(verbose, slog.LevelWarn))
}

// NewSecureJSONLogger is NewSecureLogger with JSON output.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return New(w, FormatJSON, Level(verbose, slog.LevelWarn))
}
