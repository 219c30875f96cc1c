// Package errors provides error parsing and classification for the chat relay.
// It maps upstream provider failures and malformed client input onto a small
// taxonomy that the HTTP layer can translate into safe client responses.
package errors

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Kind categorizes a relay error.
type Kind string

const (
	// KindInvalidRequest indicates malformed client input. No upstream call was made.
	KindInvalidRequest Kind = "invalid_request"

	// KindUnknownModel indicates a modelType with no entry in the model table.
	KindUnknownModel Kind = "unknown_model"

	// KindUpstreamError indicates a non-2xx response from the AI provider.
	KindUpstreamError Kind = "upstream_error"

	// KindUpstreamTimeout indicates the upstream call exceeded its deadline.
	KindUpstreamTimeout Kind = "upstream_timeout"

	// KindMissingAPIKey indicates the provider API key was absent at startup.
	KindMissingAPIKey Kind = "missing_api_key"
)

// RelayError is a classified failure within the chat relay pipeline.
type RelayError struct {
	// Kind is the error category.
	Kind Kind

	// StatusCode is the upstream HTTP status, if any.
	StatusCode int

	// Message is a human-readable description. Logged server-side only;
	// never returned to clients verbatim for upstream failures.
	Message string

	// UpstreamType is the provider-specific error type, if parseable.
	UpstreamType string
}

func (e *RelayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewInvalidRequest creates an InvalidRequest error.
func NewInvalidRequest(message string) *RelayError {
	return &RelayError{Kind: KindInvalidRequest, Message: message}
}

// NewUnknownModel creates an UnknownModel error for an unmapped model type.
func NewUnknownModel(modelType string) *RelayError {
	return &RelayError{Kind: KindUnknownModel, Message: fmt.Sprintf("no upstream model mapped for model type %q", modelType)}
}

// NewUpstreamTimeout creates an UpstreamTimeout error.
func NewUpstreamTimeout(message string) *RelayError {
	return &RelayError{Kind: KindUpstreamTimeout, Message: message}
}

// NewMissingAPIKey creates a MissingAPIKey error.
func NewMissingAPIKey() *RelayError {
	return &RelayError{Kind: KindMissingAPIKey, Message: "provider API key is not configured"}
}

// maxUpstreamBodyLog bounds how much of an upstream error body is retained
// for diagnostics. Bodies are logged server-side, never sent to clients.
const maxUpstreamBodyLog = 512

// ParseUpstreamError classifies a non-2xx provider response.
// It extracts the provider's error type and message when the body follows
// the Anthropic error envelope, and falls back to the truncated raw body.
func ParseUpstreamError(statusCode int, body []byte) *RelayError {
	relayErr := &RelayError{
		Kind:       KindUpstreamError,
		StatusCode: statusCode,
	}

	errObj := gjson.GetBytes(body, "error")
	if errObj.Exists() {
		relayErr.UpstreamType = errObj.Get("type").String()
		relayErr.Message = errObj.Get("message").String()
	}
	if relayErr.Message == "" {
		relayErr.Message = Truncate(string(body), maxUpstreamBodyLog)
	}

	return relayErr
}

// KindOf returns the Kind of err if it is a RelayError, or KindUpstreamError
// for anything else that escapes the pipeline.
func KindOf(err error) Kind {
	var relayErr *RelayError
	if errors.As(err, &relayErr) {
		return relayErr.Kind
	}
	return KindUpstreamError
}

// IsClientError reports whether err should map to HTTP 400.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindInvalidRequest, KindUnknownModel:
		return true
	default:
		return false
	}
}

// Truncate shortens s to at most n bytes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
