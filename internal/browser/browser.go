// Package browser drives a real Chrome session over the DevTools protocol
// and implements the domain.Browser port.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"postharvest/internal/domain"
)

// Selectors for the search timeline markup.
const (
	timelineSelector     = `div[aria-label="Timeline: Search timeline"]`
	containerSelector    = timelineSelector + ` > div > div`
	postCellSelector     = `div[data-testid="cellInnerDiv"]`
	interruptionSelector = `div[aria-label="Home timeline"] > div > div > div > span`
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

// Options configures the Chrome session.
type Options struct {
	// Headless runs Chrome without a visible window. Interactive logins on
	// heavily bot-checked sites tend to need a headed session.
	Headless bool

	// UserAgent overrides the default desktop user agent.
	UserAgent string
}

// Session is one exclusively-owned Chrome session. It implements
// domain.Browser for the lifetime of a single crawl.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// NewSession launches Chrome and opens a tab. The caller must Close the
// session on every exit path.
func NewSession(parent context.Context, opts Options, logger *slog.Logger) (*Session, error) {
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(ua),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	cancel := func() {
		cancelTab()
		cancelAlloc()
	}

	// Force the browser process to start so launch failures surface here
	// instead of on the first navigation.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	logger.Info("browser session started", "headless", opts.Headless)
	return &Session{ctx: tabCtx, cancel: cancel, logger: logger}, nil
}

// Navigate loads the URL in the session's tab.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// WaitFor polls for the locator's region within the timeout. A timeout is a
// normal outcome, not an error.
func (s *Session) WaitFor(ctx context.Context, loc domain.Locator, timeout time.Duration) (domain.WaitOutcome, error) {
	sel, err := selectorFor(loc)
	if err != nil {
		return domain.WaitTimedOut, err
	}

	merged, cancel, stop := s.tab(ctx)
	defer cancel()
	defer stop()
	waitCtx, cancelWait := context.WithTimeout(merged, timeout)
	defer cancelWait()

	err = chromedp.Run(waitCtx, chromedp.WaitVisible(sel, chromedp.ByQuery))
	switch {
	case err == nil:
		return domain.WaitFound, nil
	case errors.Is(err, context.DeadlineExceeded):
		return domain.WaitTimedOut, nil
	default:
		return domain.WaitTimedOut, fmt.Errorf("wait for %q: %w", sel, err)
	}
}

// Containers snapshots the rendered post containers as per-node outer HTML.
// A node that disappears between enumeration and capture (the feed re-renders
// while scrolling) yields a stale entry rather than failing the whole pass.
func (s *Session) Containers(ctx context.Context) ([]domain.Container, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, chromedp.Nodes(containerSelector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("enumerate post containers: %w", err)
	}

	containers := make([]domain.Container, 0, len(nodes))
	for _, n := range nodes {
		var outer string
		err := s.run(ctx, chromedp.OuterHTML([]cdp.NodeID{n.NodeID}, &outer, chromedp.ByNodeID))
		if err != nil {
			containers = append(containers, domain.Container{Err: domain.ErrStaleContainer})
			continue
		}
		containers = append(containers, domain.Container{HTML: outer})
	}
	return containers, nil
}

// ScrollToBottom commands a scroll to the bottom of the document.
func (s *Session) ScrollToBottom(ctx context.Context) error {
	err := s.run(ctx, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight);`, nil))
	if err != nil {
		return fmt.Errorf("scroll to bottom: %w", err)
	}
	return nil
}

// DocumentHeight reports the current document extent.
func (s *Session) DocumentHeight(ctx context.Context) (int64, error) {
	var height int64
	err := s.run(ctx, chromedp.Evaluate(`document.body.scrollHeight`, &height))
	if err != nil {
		return 0, fmt.Errorf("read document height: %w", err)
	}
	return height, nil
}

// Close releases the Chrome session.
func (s *Session) Close() error {
	s.cancel()
	return nil
}

// tab derives a context from the session's tab that is additionally cancelled
// when the caller's context is. Both returned funcs must be called when done.
func (s *Session) tab(ctx context.Context) (context.Context, context.CancelFunc, func() bool) {
	merged, cancel := context.WithCancel(s.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return merged, cancel, stop
}

func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	merged, cancel, stop := s.tab(ctx)
	defer cancel()
	defer stop()
	return chromedp.Run(merged, actions...)
}

func selectorFor(loc domain.Locator) (string, error) {
	switch loc {
	case domain.LocatorInterruption:
		return interruptionSelector, nil
	case domain.LocatorPostContainer:
		return postCellSelector, nil
	default:
		return "", fmt.Errorf("unknown locator %d", loc)
	}
}
