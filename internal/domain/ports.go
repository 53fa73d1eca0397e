package domain

import (
	"context"
	"time"
)

// WaitOutcome is the tri-state result of a bounded wait for a page condition.
// Errors travel separately: a timeout is a normal outcome, not a failure.
type WaitOutcome int

const (
	// WaitFound means the condition appeared within the timeout.
	WaitFound WaitOutcome = iota
	// WaitTimedOut means the condition did not appear within the timeout.
	WaitTimedOut
)

// Locator names a page region the browser knows how to find. Concrete
// selectors live with the browser implementation; the crawl driver only
// reasons about what the region means.
type Locator int

const (
	// LocatorInterruption is the anti-automation error message region.
	LocatorInterruption Locator = iota
	// LocatorPostContainer is any rendered post container in the feed.
	LocatorPostContainer
)

// Container is a snapshot of one rendered post container. Err is set instead
// of HTML when the container was invalidated by a re-render before it could
// be read; such containers are skipped.
type Container struct {
	HTML string
	Err  error
}

// Browser abstracts the controlled browser session rendering the feed. All
// calls block with the caller's context as the cancellation bound; the
// session is exclusively owned by one crawl and must be released with Close
// on every exit path.
type Browser interface {
	// Navigate loads the given URL in the session's tab.
	Navigate(ctx context.Context, url string) error

	// WaitFor polls for the locator's region to become visible within the
	// timeout.
	WaitFor(ctx context.Context, loc Locator, timeout time.Duration) (WaitOutcome, error)

	// Containers snapshots the currently rendered post containers in
	// document order, including the trailing sentinel element.
	Containers(ctx context.Context) ([]Container, error)

	// ScrollToBottom commands a scroll to the bottom of the document.
	ScrollToBottom(ctx context.Context) error

	// DocumentHeight reports the current document extent, used to detect
	// when a page has stopped growing.
	DocumentHeight(ctx context.Context) (int64, error)

	// Close releases the browser session.
	Close() error
}

// Extractor turns one rendered container into a Record. It fails with
// *ExtractionError when a required sub-element is missing and with
// ErrStaleContainer when the container was invalidated; both mean "skip".
type Extractor interface {
	Extract(c Container) (Record, error)
}

// CheckpointStore persists and restores crawl progress.
type CheckpointStore interface {
	// LoadLatest returns the most recently written checkpoint by file
	// modification time, or nil when none exists.
	LoadLatest() (*Collection, error)

	// WriteIntermediate writes a new timestamped snapshot without touching
	// prior ones. Returns the path written.
	WriteIntermediate(c *Collection) (string, error)

	// WriteFinal writes the terminal snapshot. Returns the path written.
	WriteFinal(c *Collection) (string, error)

	// RemoveIntermediates deletes all intermediate snapshots.
	RemoveIntermediates() error
}
