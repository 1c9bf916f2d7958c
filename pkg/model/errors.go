package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is the sentinel matched by errors.Is for any NotFoundError.
var ErrNotFound = errors.New("not found")

// ErrUpstream is the sentinel matched by errors.Is for any UpstreamError.
var ErrUpstream = errors.New("upstream unavailable")

// ErrInvalidData is the sentinel matched by errors.Is for any
// InvalidDataError.
var ErrInvalidData = errors.New("invalid upstream data")

// NotFoundError reports that a project or resource is absent from a
// component's view of the repository. Composite components may recover from
// it by consulting sibling sources; at the outer boundary it maps to a 404.
type NotFoundError struct {
	// Project is the normalized project name that was requested.
	Project string

	// Resource is the requested filename, empty for project-level lookups.
	Resource string
}

func (e *NotFoundError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("resource %q of project %q was not found in the configured source", e.Resource, e.Project)
	}
	return fmt.Sprintf("project %q was not found in the configured source", e.Project)
}

func (*NotFoundError) Unwrap() error { return ErrNotFound }

// UpstreamError reports a network, transport or status failure of an
// underlying source. It must never be downgraded to a NotFoundError by a
// composing component.
type UpstreamError struct {
	// Source identifies the failing source, typically its base URL.
	Source string

	Err error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("source %s unavailable", e.Source)
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUpstream, e.Err}
	}
	return []error{ErrUpstream}
}

// InvalidDataError reports that an upstream payload could not be parsed
// into the model. It is surfaced as a distinct failure, never silently
// coerced into an empty result, so operators can detect a misbehaving
// source.
type InvalidDataError struct {
	// Source identifies the origin of the malformed payload.
	Source string

	// Reason is a short human-readable description of the defect.
	Reason string

	Err error
}

func (e *InvalidDataError) Error() string {
	msg := fmt.Sprintf("invalid data from %s: %s", e.Source, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidDataError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidData, e.Err}
	}
	return []error{ErrInvalidData}
}
