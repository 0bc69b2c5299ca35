// Package apperrors defines the error kinds surfaced by the dump/load
// engine. Configuration problems are detected before any I/O; source,
// integrity and apply errors are produced per work unit and aggregated
// by the scheduler rather than thrown.
package apperrors

import (
	"errors"
	"fmt"
)

// ConfigError indicates invalid user-supplied configuration, e.g. a
// malformed exclusion entry or an unknown compatibility option. It is
// always raised before any database or filesystem I/O happens.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

// Configf builds a ConfigError from a format string.
func Configf(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// SourceError wraps a failure reading from the source server, either
// catalog introspection or row streaming. Retryable.
type SourceError struct {
	Op     string // e.g. "show create table", "stream rows"
	Object string // qualified object name, if known
	Err    error
}

func (e *SourceError) Error() string {
	if e.Object != "" {
		return fmt.Sprintf("source error: %s %s: %v", e.Op, e.Object, e.Err)
	}
	return fmt.Sprintf("source error: %s: %v", e.Op, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// IntegrityError indicates a dump artifact whose content does not match
// its recorded checksum. Not retryable; the artifact must be considered
// corrupt.
type IntegrityError struct {
	Artifact string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity error: artifact %s: checksum mismatch, expected %s, got %s",
		e.Artifact, e.Expected, e.Actual)
}

// ApplyError wraps a failure applying DDL or rows to the target server.
// Retryable per scheduler policy.
type ApplyError struct {
	Unit string
	Err  error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply error: unit %s: %v", e.Unit, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// IsConfig reports whether err is, or wraps, a ConfigError.
func IsConfig(err error) bool {
	var t *ConfigError
	return errors.As(err, &t)
}

// IsIntegrity reports whether err is, or wraps, an IntegrityError.
func IsIntegrity(err error) bool {
	var t *IntegrityError
	return errors.As(err, &t)
}

// Retryable reports whether err represents a transient failure that the
// scheduler may retry. Integrity and configuration errors never are;
// context cancellation is terminal.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if IsConfig(err) || IsIntegrity(err) {
		return false
	}
	var src *SourceError
	var app *ApplyError
	return errors.As(err, &src) || errors.As(err, &app)
}
