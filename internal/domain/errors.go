package domain

import (
	"errors"
	"fmt"
)

// ErrInterrupted reports an anti-automation interruption under the fail-fast
// policy. Progress has been checkpointed by the time it is returned.
var ErrInterrupted = errors.New("anti-automation interruption detected")

// ErrStaleContainer marks a post container that was invalidated by a page
// re-render before it could be read. The container is skipped, not retried.
var ErrStaleContainer = errors.New("post container went stale")

// ConfigError reports malformed credentials, filters, or crawl parameters.
// It is fatal at startup and never retried.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// ParseError reports a timestamp that did not match the expected format. A bad
// timestamp corrupts ordering, so callers must propagate it rather than
// swallow it.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse timestamp %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ExtractionError reports a post container missing a required sub-element.
// The container is skipped and does not count toward dedup decisions.
type ExtractionError struct {
	Missing string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract post: missing %s", e.Missing)
}
