package domain

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// InterruptionPolicy decides what happens when the anti-automation signal is
// detected.
type InterruptionPolicy string

const (
	// PolicyContinue checkpoints, sleeps the detection wait, and re-issues
	// the same query.
	PolicyContinue InterruptionPolicy = "continue"
	// PolicyFail checkpoints, then terminates the crawl with ErrInterrupted.
	PolicyFail InterruptionPolicy = "fail"
)

// Params configures one crawl.
type Params struct {
	// StartDate is the exclusive upper time bound (unix seconds) of the
	// first search query.
	StartDate int64

	// EndDate is the inclusive lower time bound (unix seconds); a candidate
	// record older than it terminates the crawl.
	EndDate int64

	// WaitShort paces page loads and scroll settling.
	WaitShort time.Duration

	// WaitLong bounds the interruption and empty-page checks.
	WaitLong time.Duration

	// DetectionWait is how long to back off after an interruption under
	// PolicyContinue.
	DetectionWait time.Duration

	// MaxEmptyPages is the number of consecutive empty result pages after
	// which the crawl treats the feed as exhausted.
	MaxEmptyPages int

	// AutoSave enables intermediate checkpoints every AutoSaveInterval
	// accepted records.
	AutoSave         bool
	AutoSaveInterval int

	// OnInterruption selects the interruption policy.
	OnInterruption InterruptionPolicy
}

// Crawler is the crawl state machine. It walks the search feed backward
// through time one boundary at a time: issue a query, check for
// interruptions, check for an empty page, scroll-and-extract until the
// document stops growing, then recompute the boundary from the oldest
// accepted record and loop. It owns the collection, the dedup ledger and the
// crawl cursor; collaborators are reached only through ports.
type Crawler struct {
	browser   Browser
	extractor Extractor
	store     CheckpointStore
	query     *Query
	params    Params
	logger    *slog.Logger

	collection *Collection
	ledger     *Ledger
	boundary   int64
	emptyPages int
	reachedAll bool
}

// NewCrawler creates a crawler starting from params.StartDate with an empty
// collection.
func NewCrawler(browser Browser, extractor Extractor, store CheckpointStore, query *Query, params Params, logger *slog.Logger) *Crawler {
	c := &Crawler{
		browser:    browser,
		extractor:  extractor,
		store:      store,
		query:      query,
		params:     params,
		logger:     logger,
		collection: NewCollection(),
		boundary:   params.StartDate,
	}
	c.ledger = NewLedger(c.collection)
	return c
}

// Collection exposes the accumulated records, e.g. for archiving after a
// successful crawl.
func (c *Crawler) Collection() *Collection {
	return c.collection
}

// Resume seeds the collection and ledger from the most recent checkpoint and
// moves the boundary to the earliest restored record's date. Returns false
// when there is nothing to resume.
func (c *Crawler) Resume() (bool, error) {
	col, err := c.store.LoadLatest()
	if err != nil {
		return false, fmt.Errorf("load savepoint: %w", err)
	}
	if col == nil || col.Len() == 0 {
		return false, nil
	}

	c.collection = col
	c.ledger = NewLedger(col)

	found := false
	var earliest int64
	for _, r := range col.Records() {
		ts, err := ToUnixSeconds(r.Date)
		if err != nil {
			continue
		}
		if !found || ts < earliest {
			earliest = ts
			found = true
		}
	}
	if found {
		c.boundary = earliest
	}

	c.logger.Info("resumed from savepoint",
		"records", col.Len(),
		"boundary", DayString(c.boundary),
	)
	return true, nil
}

// Run executes the crawl until the end date is passed, the empty-page limit
// is reached, or a fatal error occurs. On any error, including cancellation,
// progress is checkpointed best-effort before the error propagates; the
// browser session is released on every exit path.
func (c *Crawler) Run(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			c.logger.Error("crawl aborted, saving progress", "error", err)
			if _, serr := c.store.WriteIntermediate(c.collection); serr != nil {
				c.logger.Error("best-effort savepoint failed", "error", serr)
			}
		}
		if cerr := c.browser.Close(); cerr != nil {
			c.logger.Error("failed to release browser session", "error", cerr)
		}
	}()

	for {
		if c.reachedAll {
			return c.finish()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		c.logger.Info("issuing search", "boundary", DayString(c.boundary), "records", c.collection.Len())
		if err := c.browser.Navigate(ctx, c.query.SearchURL(c.boundary)); err != nil {
			return fmt.Errorf("navigate to search: %w", err)
		}
		if err := sleep(ctx, c.params.WaitShort); err != nil {
			return err
		}

		proceed, err := c.checkInterruption(ctx)
		if err != nil {
			return err
		}
		if !proceed {
			continue
		}

		proceed, err = c.checkEmpty(ctx)
		if err != nil {
			return err
		}
		if !proceed {
			continue
		}

		if err := c.scrollExtract(ctx); err != nil {
			return err
		}
	}
}

// checkInterruption polls for the anti-automation signal. It returns false
// when the caller should re-issue the same query (interruption absorbed under
// PolicyContinue).
func (c *Crawler) checkInterruption(ctx context.Context) (bool, error) {
	outcome, err := c.browser.WaitFor(ctx, LocatorInterruption, c.params.WaitLong)
	if err != nil {
		return false, fmt.Errorf("check interruption: %w", err)
	}
	if outcome != WaitFound {
		return true, nil
	}

	c.logger.Warn("interruption detected, saving progress")
	if _, err := c.store.WriteIntermediate(c.collection); err != nil {
		return false, fmt.Errorf("savepoint on interruption: %w", err)
	}

	if c.params.OnInterruption == PolicyFail {
		return false, ErrInterrupted
	}

	c.logger.Info("backing off before retrying", "wait", c.params.DetectionWait)
	if err := sleep(ctx, c.params.DetectionWait); err != nil {
		return false, err
	}
	return false, nil
}

// checkEmpty polls for at least one post container. An empty page steps the
// boundary one calendar day back; hitting the consecutive-empty-page limit
// means the feed is exhausted. Returns false when the caller should re-issue
// the query with the stepped boundary.
func (c *Crawler) checkEmpty(ctx context.Context) (bool, error) {
	outcome, err := c.browser.WaitFor(ctx, LocatorPostContainer, c.params.WaitLong)
	if err != nil {
		return false, fmt.Errorf("wait for posts: %w", err)
	}
	if outcome == WaitFound {
		c.emptyPages = 0
		return true, nil
	}

	c.boundary = OneDayEarlier(c.boundary)
	c.emptyPages++
	c.logger.Info("no posts found, stepping back a day",
		"boundary", DayString(c.boundary),
		"attempt", fmt.Sprintf("%d/%d", c.emptyPages, c.params.MaxEmptyPages),
	)
	if c.emptyPages >= c.params.MaxEmptyPages {
		c.logger.Info("reached all available posts")
		c.reachedAll = true
	}
	return false, nil
}

// scrollExtract runs extraction passes over the page until the document
// height stabilizes or the end date is passed. Each pass enumerates the
// rendered containers (minus the trailing sentinel), extracts candidate
// records, filters them through the ledger and appends the accepted ones.
func (c *Crawler) scrollExtract(ctx context.Context) error {
	lastHeight, err := c.browser.DocumentHeight(ctx)
	if err != nil {
		return fmt.Errorf("read document height: %w", err)
	}

	accepted := 0
	for {
		containers, err := c.browser.Containers(ctx)
		if err != nil {
			return fmt.Errorf("enumerate containers: %w", err)
		}
		if len(containers) > 0 {
			// The last container is the feed's trailing sentinel, not a post.
			containers = containers[:len(containers)-1]
		}

		for _, el := range containers {
			rec, err := c.extractor.Extract(el)
			if err != nil {
				// Stale or unparseable container: skip, no dedup decision.
				continue
			}

			key := rec.Key()
			if c.ledger.Contains(key) {
				continue
			}

			ts, err := ToUnixSeconds(rec.Date)
			if err != nil {
				return fmt.Errorf("candidate record: %w", err)
			}
			if ts < c.params.EndDate {
				c.logger.Info("end date passed", "record_date", rec.Date)
				c.reachedAll = true
				break
			}

			c.ledger.Add(key)
			c.collection.Append(rec)
			accepted++

			if c.params.AutoSave && c.collection.Len()%c.params.AutoSaveInterval == 0 {
				path, err := c.store.WriteIntermediate(c.collection)
				if err != nil {
					return fmt.Errorf("autosave: %w", err)
				}
				c.logger.Info("autosaved progress", "path", path, "records", c.collection.Len())
			}
		}

		if c.reachedAll {
			return nil
		}

		if err := c.browser.ScrollToBottom(ctx); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		if err := sleep(ctx, c.params.WaitShort); err != nil {
			return err
		}

		newHeight, err := c.browser.DocumentHeight(ctx)
		if err != nil {
			return fmt.Errorf("read document height: %w", err)
		}
		if newHeight == lastHeight {
			c.advanceBoundary(accepted)
			return nil
		}
		lastHeight = newHeight
	}
}

// advanceBoundary recomputes the next search boundary after a page stopped
// growing. It anchors to the last accepted record so the next query stays
// dense near retrieved content, stepping a full day back only when that
// record is not already older than the current boundary. A page that accepted
// nothing steps back a day unconditionally: re-issuing an identical query on
// a duplicate-only page would never make progress.
func (c *Crawler) advanceBoundary(accepted int) {
	last, ok := c.collection.Last()
	if accepted == 0 || !ok {
		c.boundary = OneDayEarlier(c.boundary)
		return
	}

	lastUnix, err := ToUnixSeconds(last.Date)
	if err != nil {
		c.logger.Warn("unparseable last record date, stepping back a day", "date", last.Date)
		c.boundary = OneDayEarlier(c.boundary)
		return
	}

	if lastUnix >= c.boundary {
		c.boundary = OneDayEarlier(lastUnix)
	} else {
		c.boundary = lastUnix
	}
}

// finish is the terminal transition: intermediate checkpoints are removed and
// the final snapshot written.
func (c *Crawler) finish() error {
	c.logger.Info("all posts have been harvested", "records", c.collection.Len())
	if err := c.store.RemoveIntermediates(); err != nil {
		return fmt.Errorf("remove savepoints: %w", err)
	}
	path, err := c.store.WriteFinal(c.collection)
	if err != nil {
		return fmt.Errorf("write final snapshot: %w", err)
	}
	c.logger.Info("final snapshot written", "path", path)
	return nil
}

// sleep blocks for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
