// Package apperr defines the error taxonomy shared across the Voxweave
// backend and the sanitizer applied to every string that leaves the process.
//
// Every failure surfaced over HTTP is exactly one [*Error]. The HTTP layer
// serialises the Code, Message, and Details fields into the error envelope;
// anything that is not an [*Error] becomes INTERNAL_ERROR with a generic
// message and the full detail logged server-side only.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
)

// Error codes returned in the HTTP error envelope.
const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeInvalidProvider       = "INVALID_PROVIDER"
	CodeProviderNotConfigured = "PROVIDER_NOT_CONFIGURED"
	CodeProviderAuth          = "PROVIDER_AUTH_ERROR"
	CodeProviderAPI           = "PROVIDER_API_ERROR"
	CodeProviderRateLimit     = "PROVIDER_RATE_LIMIT"
	CodeJobNotFound           = "JOB_NOT_FOUND"
	CodeJobNotCompleted       = "JOB_NOT_COMPLETED"
	CodeAudioProcessing       = "AUDIO_PROCESSING_ERROR"
	CodeInternal              = "INTERNAL_ERROR"
)

// Error is the structured application error. It carries everything the HTTP
// layer needs to build the error envelope without inspecting error text.
type Error struct {
	// Code is one of the Code* constants.
	Code string

	// HTTPStatus is the response status for this error kind.
	HTTPStatus int

	// Message is the client-facing description. Provider-originated messages
	// must already be sanitized when they reach this field.
	Message string

	// Details holds structured context (provider name, job id, field name).
	Details map[string]any

	// Err is the wrapped cause, if any. Never serialised to clients.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two [*Error] values by Code, so sentinel-style comparisons like
// errors.Is(err, apperr.RateLimit("")) work regardless of message text.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// AsError extracts an [*Error] from an error chain, or nil.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// ── Constructors ─────────────────────────────────────────────────────────────

// Validation reports invalid client input.
func Validation(message string, details map[string]any) *Error {
	return &Error{
		Code:       CodeValidation,
		HTTPStatus: http.StatusBadRequest,
		Message:    message,
		Details:    details,
	}
}

// TextEmpty reports empty or whitespace-only text input.
func TextEmpty() *Error {
	return Validation("Text input cannot be empty", map[string]any{"field": "text"})
}

// InvalidProvider reports a provider name that is not registered.
func InvalidProvider(provider string) *Error {
	return &Error{
		Code:       CodeInvalidProvider,
		HTTPStatus: http.StatusBadRequest,
		Message:    fmt.Sprintf("Provider %q is not available", provider),
		Details:    map[string]any{"provider": provider},
	}
}

// ProviderNotConfigured reports a registered provider with no credentials.
func ProviderNotConfigured(provider string) *Error {
	return &Error{
		Code:       CodeProviderNotConfigured,
		HTTPStatus: http.StatusBadRequest,
		Message:    fmt.Sprintf("Provider %q is not configured. Set the API key in Settings.", provider),
		Details:    map[string]any{"provider": provider},
	}
}

// Auth reports credentials rejected by the remote provider.
func Auth(provider, detail string) *Error {
	msg := fmt.Sprintf("Authentication failed for provider %q", provider)
	if detail != "" {
		msg += ": " + Sanitize(detail)
	}
	return &Error{
		Code:       CodeProviderAuth,
		HTTPStatus: http.StatusBadGateway,
		Message:    msg,
		Details:    map[string]any{"provider": provider},
	}
}

// API reports any other failure attributable to the remote provider.
func API(provider, detail string) *Error {
	msg := fmt.Sprintf("Provider %q returned an error", provider)
	if detail != "" {
		msg += ": " + Sanitize(detail)
	}
	return &Error{
		Code:       CodeProviderAPI,
		HTTPStatus: http.StatusBadGateway,
		Message:    msg,
		Details:    map[string]any{"provider": provider},
	}
}

// RateLimit reports a provider throttle response. The retry wrapper matches
// on this code.
func RateLimit(provider string) *Error {
	return &Error{
		Code:       CodeProviderRateLimit,
		HTTPStatus: http.StatusTooManyRequests,
		Message:    fmt.Sprintf("Rate limit exceeded for provider %q. Wait and try again.", provider),
		Details:    map[string]any{"provider": provider},
	}
}

// JobNotFound reports an unknown job id.
func JobNotFound(jobID string) *Error {
	return &Error{
		Code:       CodeJobNotFound,
		HTTPStatus: http.StatusNotFound,
		Message:    fmt.Sprintf("Job %q not found", jobID),
		Details:    map[string]any{"job_id": jobID},
	}
}

// JobNotCompleted reports a job whose audio is not yet available.
func JobNotCompleted(jobID, status string) *Error {
	return &Error{
		Code:       CodeJobNotCompleted,
		HTTPStatus: http.StatusConflict,
		Message:    fmt.Sprintf("Job %q is not completed (current status: %s)", jobID, status),
		Details:    map[string]any{"job_id": jobID, "status": status},
	}
}

// AudioProcessing reports a stitcher or decoder failure.
func AudioProcessing(detail string) *Error {
	msg := "Audio processing failed"
	if detail != "" {
		msg += ": " + Sanitize(detail)
	}
	return &Error{
		Code:       CodeAudioProcessing,
		HTTPStatus: http.StatusInternalServerError,
		Message:    msg,
	}
}

// Internal wraps an unexpected error. The client sees a generic message;
// the cause stays on the wrapped error for logging.
func Internal(err error) *Error {
	return &Error{
		Code:       CodeInternal,
		HTTPStatus: http.StatusInternalServerError,
		Message:    "Internal server error",
		Err:        err,
	}
}

// ── Sanitization ─────────────────────────────────────────────────────────────

var (
	keyLikeRe = regexp.MustCompile(`[A-Za-z0-9_\-]{20,}`)
	urlRe     = regexp.MustCompile(`https?://\S+`)
)

// Sanitize redacts key-like substrings and URLs from a message before it is
// surfaced to a client or written to a log. Key redaction runs first so that
// credentials embedded in URLs are covered either way.
func Sanitize(raw string) string {
	s := keyLikeRe.ReplaceAllString(raw, "[REDACTED]")
	return urlRe.ReplaceAllString(s, "[URL REDACTED]")
}
