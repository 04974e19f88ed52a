package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPayloadTooLarge indicates that an upload exceeded the size limit.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrExtraction indicates that text or topics could not be extracted.
	ErrExtraction = errors.New("extraction failed")

	// ErrRateLimited indicates that the request was rate limited.
	ErrRateLimited = errors.New("rate limited")

	// ErrCancelled indicates that an operation was cancelled.
	ErrCancelled = errors.New("cancelled")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// ExtractionError reports that a component could not produce usable output
// from otherwise well-formed input (an image-only PDF, an unparseable oracle reply).
type ExtractionError struct {
	Source  string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s extraction failed: %s: %v", e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s extraction failed: %s", e.Source, e.Message)
}

// Is reports whether target is ErrExtraction.
func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtraction
}

// Unwrap returns the underlying cause error.
func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// RateLimitError provides details about a rate limit error.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// ExternalAPIError provides details about an external API error.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// ErrorKind classifies a pipeline failure for the transport layer.
type ErrorKind string

const (
	// KindValidation is a client input problem (4xx).
	KindValidation ErrorKind = "validation"
	// KindExtraction means the input was accepted but nothing usable came out of it.
	KindExtraction ErrorKind = "extraction"
	// KindUpstream means the topic oracle or another dependency failed.
	KindUpstream ErrorKind = "upstream"
	// KindUnexpected covers everything else.
	KindUnexpected ErrorKind = "unexpected"
)

// StageError is the single failure type returned by the analysis pipeline.
// Message is safe to show to clients; Cause carries the internal detail and
// is only logged.
type StageError struct {
	Stage   Stage
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *StageError) Unwrap() error {
	return e.Cause
}

// PublicMessage returns the client-facing description of the failure.
func (e *StageError) PublicMessage() string {
	return e.Message
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewExtractionError creates a new ExtractionError.
func NewExtractionError(source, message string, cause error) *ExtractionError {
	return &ExtractionError{
		Source:  source,
		Message: message,
		Cause:   cause,
	}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		Source:     source,
		RetryAfter: retryAfter,
	}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// NewStageError creates a new StageError.
func NewStageError(stage Stage, kind ErrorKind, message string, cause error) *StageError {
	return &StageError{
		Stage:   stage,
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}
