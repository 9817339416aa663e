// Package services defines the business logic for journal entries, derived
// analyses, the background analysis coordinator, and the read-side
// projection. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

// Entry-related errors.
var (
	// ErrEmptyContent is returned when entry content is empty after
	// trimming whitespace.
	ErrEmptyContent = errors.New("entry content is empty")

	// ErrContentTooLong is returned when entry content exceeds the
	// maximum allowed length (10,000 runes).
	ErrContentTooLong = errors.New("entry content too long")

	// ErrEntryNotFound indicates that the requested entry does not exist.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrStorage is returned when a durable write failed even after the
	// cleanup-and-retry pass. The entry is not silently dropped; the
	// caller sees this error instead.
	ErrStorage = errors.New("durable write failed")

	// ErrSnapshotVersion is returned when an imported snapshot carries a
	// schema version newer than this build understands.
	ErrSnapshotVersion = errors.New("unsupported snapshot version")
)

// Analysis-related errors.
var (
	// ErrAnalysisNotFound indicates that no analysis record exists for
	// the requested entry id.
	ErrAnalysisNotFound = errors.New("analysis not found")

	// ErrIllegalTransition is returned when a caller attempts a status
	// change the state machine forbids (e.g. completing a record that
	// never went in-progress).
	ErrIllegalTransition = errors.New("illegal analysis status transition")
)
