package browser

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"postharvest/internal/domain"
)

const loginURL = "https://x.com/i/flow/login"

// Login flow selectors.
const (
	usernameInputSelector  = `input[autocomplete="username"]`
	passwordInputSelector  = `input[name="password"]`
	loginButtonSelector    = `button[data-testid="LoginForm_Login_Button"]`
	challengeInputSelector = `input[data-testid="ocfEnterTextTextInput"]`
)

const (
	loginStepTimeout = 30 * time.Second
	// How long to wait for the suspicious-login challenge to show up before
	// assuming it was skipped.
	challengeTimeout = 5 * time.Second
)

// Login drives the interactive login flow: username, the optional
// suspicious-login email challenge, then password. Keystrokes are paced with
// randomized delays. A challenge with no email configured is fatal.
func (s *Session) Login(ctx context.Context, username, password, email string) error {
	if err := s.run(ctx, chromedp.Navigate(loginURL)); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}

	if err := s.awaitVisible(ctx, usernameInputSelector, loginStepTimeout); err != nil {
		return fmt.Errorf("username prompt: %w", err)
	}
	if err := s.typeSlowly(ctx, usernameInputSelector, username); err != nil {
		return fmt.Errorf("enter username: %w", err)
	}
	if err := s.run(ctx, chromedp.SendKeys(usernameInputSelector, kb.Enter, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("submit username: %w", err)
	}

	if err := s.handleEmailChallenge(ctx, email); err != nil {
		return err
	}

	if err := s.awaitVisible(ctx, passwordInputSelector, loginStepTimeout); err != nil {
		return fmt.Errorf("password prompt: %w", err)
	}
	if err := s.typeSlowly(ctx, passwordInputSelector, password); err != nil {
		return fmt.Errorf("enter password: %w", err)
	}
	if err := s.run(ctx, chromedp.Click(loginButtonSelector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("submit login: %w", err)
	}

	s.logger.Info("login flow completed")
	return nil
}

// handleEmailChallenge answers the suspicious-login prompt when it appears.
// The prompt being absent is the normal case.
func (s *Session) handleEmailChallenge(ctx context.Context, email string) error {
	if err := s.awaitVisible(ctx, challengeInputSelector, challengeTimeout); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return fmt.Errorf("email challenge: %w", err)
	}

	s.logger.Warn("suspicious login challenge detected")
	if email == "" {
		return &domain.ConfigError{
			Field:  "email",
			Reason: "suspicious login challenge requires an email, but none is configured",
		}
	}
	if err := s.typeSlowly(ctx, challengeInputSelector, email); err != nil {
		return fmt.Errorf("enter email: %w", err)
	}
	if err := s.run(ctx, chromedp.SendKeys(challengeInputSelector, kb.Enter, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("submit email: %w", err)
	}
	return nil
}

// awaitVisible blocks until the selector is visible or the timeout elapses.
// Unlike WaitFor, expiry is returned as context.DeadlineExceeded because the
// login flow treats most missing steps as failures.
func (s *Session) awaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	merged, cancel, stop := s.tab(ctx)
	defer cancel()
	defer stop()
	waitCtx, cancelWait := context.WithTimeout(merged, timeout)
	defer cancelWait()
	return chromedp.Run(waitCtx, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

// typeSlowly sends text one key at a time with human-looking delays.
func (s *Session) typeSlowly(ctx context.Context, sel, text string) error {
	for _, r := range text {
		if err := s.run(ctx, chromedp.SendKeys(sel, string(r), chromedp.ByQuery)); err != nil {
			return err
		}
		delay := time.Duration(50+rand.Intn(150)) * time.Millisecond
		if err := waitOrCancel(ctx, delay); err != nil {
			return err
		}
	}
	return nil
}

func waitOrCancel(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
