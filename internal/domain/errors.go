package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every ValidationError
	ErrValidation = errors.New("validation failed")

	// ErrUpload is matched by every UploadError
	ErrUpload = errors.New("upload failed")

	// ErrPoll is matched by every PollError
	ErrPoll = errors.New("poll failed")

	// ErrParseFailure is matched by every ParseFailure
	ErrParseFailure = errors.New("response body is not valid JSON")
)

// ValidationError reports missing or invalid caller input. No network call was made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a validation error for a single field
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// UploadError wraps a failed submission. HTTPStatus is zero when the upstream was never reached.
type UploadError struct {
	HTTPStatus int
	Excerpt    string
	Cause      error
}

func (e *UploadError) Error() string {
	if e.HTTPStatus == 0 {
		return fmt.Sprintf("upload failed: %v", e.Cause)
	}
	return fmt.Sprintf("upload rejected with status %d: %s", e.HTTPStatus, e.Excerpt)
}

func (e *UploadError) Unwrap() error {
	return e.Cause
}

func (e *UploadError) Is(target error) bool {
	return target == ErrUpload
}

// PollErrorKind classifies an ERROR outcome
type PollErrorKind string

const (
	PollErrorUpstreamStatus PollErrorKind = "upstream_status"
	PollErrorParseFailure   PollErrorKind = "parse_failure"
	PollErrorUpstreamCode   PollErrorKind = "upstream_code"
)

// PollError describes why a poll reconciled to ERROR
type PollError struct {
	Kind       PollErrorKind
	HTTPStatus int
	Code       string
	Excerpt    string
	Cause      error
}

func (e *PollError) Error() string {
	switch e.Kind {
	case PollErrorUpstreamStatus:
		return fmt.Sprintf("result fetch failed with status %d: %s", e.HTTPStatus, e.Excerpt)
	case PollErrorParseFailure:
		return fmt.Sprintf("result body could not be parsed: %s", e.Excerpt)
	case PollErrorUpstreamCode:
		return fmt.Sprintf("upstream returned code %s", e.Code)
	default:
		return fmt.Sprintf("result fetch failed: %v", e.Cause)
	}
}

func (e *PollError) Unwrap() error {
	return e.Cause
}

func (e *PollError) Is(target error) bool {
	return target == ErrPoll
}

// ParseFailure is a 2xx response whose body could not be decoded
type ParseFailure struct {
	Excerpt string
	Cause   error
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("parse failure: %v", e.Cause)
}

func (e *ParseFailure) Unwrap() error {
	return e.Cause
}

func (e *ParseFailure) Is(target error) bool {
	return target == ErrParseFailure
}
