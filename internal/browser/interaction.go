// internal/browser/interaction.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Strategy decides how a value reaches a form field.
type Strategy int

const (
	// StrategyType simulates keystrokes.
	StrategyType Strategy = iota
	// StrategyAssign sets the value directly and fires bubbling input and
	// change events. Masked inputs that reformat keystrokes need this.
	StrategyAssign
)

func (s Strategy) String() string {
	if s == StrategyAssign {
		return "assign"
	}
	return "type"
}

// Field is a value to place into the element matched by Selector.
type Field struct {
	Name     string
	Selector string
	Value    string
	Strategy Strategy
}

// Navigate loads url and waits until the new document is parsed and has a
// body. Subresources are not waited for. It is never retried.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := s.run(navCtx, navigateDOMReady(url), chromedp.WaitReady("body", chromedp.ByQuery))
	if err == nil {
		s.logger.Debug("Navigation complete.", zap.String("url", url), zap.Duration("took", time.Since(start)))
		return nil
	}

	switch {
	case errors.Is(err, ErrSessionClosed):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(navCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s after %s", ErrNavigationTimeout, url, timeout)
	default:
		return fmt.Errorf("%w: %s: %v", ErrNavigation, url, err)
	}
}

// navigateDOMReady issues the navigation and returns once the document it
// created fires DOMContentLoaded. chromedp.Navigate would also wait for load.
func navigateDOMReady(url string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		lctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var mu sync.Mutex
		parsed := make(map[cdp.LoaderID]bool)
		fired := make(chan struct{}, 1)
		chromedp.ListenTarget(lctx, func(ev interface{}) {
			e, ok := ev.(*page.EventLifecycleEvent)
			if !ok || e.Name != "DOMContentLoaded" {
				return
			}
			mu.Lock()
			parsed[e.LoaderID] = true
			mu.Unlock()
			select {
			case fired <- struct{}{}:
			default:
			}
		})

		_, loaderID, errorText, _, err := page.Navigate(url).Do(ctx)
		switch {
		case err != nil:
			return err
		case errorText != "":
			return fmt.Errorf("page load error %s", errorText)
		case loaderID == "":
			// Same-document navigation; there is no new document to wait for.
			return nil
		}

		for {
			mu.Lock()
			done := parsed[loaderID]
			mu.Unlock()
			if done {
				return nil
			}
			select {
			case <-fired:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// WaitFor polls cond until it holds or timeout elapses. Evaluation errors
// while polling, such as a context lost to a page transition, count as "not yet".
func (s *Session) WaitFor(ctx context.Context, cond Condition, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	expr := cond.Expression()
	for {
		var ok bool
		err := s.run(waitCtx, chromedp.Evaluate(expr, &ok))
		if errors.Is(err, ErrSessionClosed) {
			return err
		}
		if err == nil && ok {
			return nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %s after %s", ErrWaitTimeout, cond, timeout)
		case <-ticker.C:
		}
	}
}

// Sleep pauses for d, for pages that keep rendering after the load event.
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	return sleep(ctx, d)
}

// Fill waits for the field's element then applies its strategy.
func (s *Session) Fill(ctx context.Context, f Field, timeout time.Duration) error {
	if err := s.waitElement(ctx, f.Selector, timeout); err != nil {
		return err
	}

	actCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var err error
	switch f.Strategy {
	case StrategyAssign:
		var ok bool
		err = s.run(actCtx, chromedp.Evaluate(assignScript(f.Selector, f.Value), &ok))
		if err == nil && !ok {
			err = fmt.Errorf("%w: %s", ErrElementNotFound, f.Selector)
		}
	default:
		err = s.run(actCtx, chromedp.SendKeys(f.Selector, f.Value, chromedp.ByQuery))
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrElementNotFound), ctx.Err() != nil:
			return err
		case actCtx.Err() != nil:
			// Present but never actionable within the step budget.
			return fmt.Errorf("%w: %s not fillable after %s", ErrElementNotFound, f.Selector, timeout)
		}
		return fmt.Errorf("failed to fill %s (%s): %w", f.Selector, f.Strategy, err)
	}

	s.logger.Debug("Field filled.", zap.String("field", f.Name), zap.Stringer("strategy", f.Strategy))
	return nil
}

// Submit waits for the submit control and clicks it. It does not wait for a
// navigation to follow.
func (s *Session) Submit(ctx context.Context, selector string, timeout time.Duration) error {
	if err := s.waitElement(ctx, selector, timeout); err != nil {
		return err
	}

	actCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.run(actCtx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if actCtx.Err() != nil {
			return fmt.Errorf("%w: %s not clickable after %s", ErrElementNotFound, selector, timeout)
		}
		return fmt.Errorf("failed to click %s: %w", selector, err)
	}
	return nil
}

// URL returns the tab's current location.
func (s *Session) URL(ctx context.Context) (string, error) {
	var u string
	if err := s.run(ctx, chromedp.Location(&u)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return u, nil
}

// Screenshot captures the visible viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

func (s *Session) waitElement(ctx context.Context, selector string, timeout time.Duration) error {
	err := s.WaitFor(ctx, ElementExists(selector), timeout)
	if errors.Is(err, ErrWaitTimeout) {
		return fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	return err
}

// assignScript sets the value through the native setter so frameworks that
// track input state observe the change.
func assignScript(selector, value string) string {
	sel, _ := json.MarshalToString(selector)
	val, _ := json.MarshalToString(value)
	return fmt.Sprintf(`(function (sel, value) {
	const el = document.querySelector(sel);
	if (!el) return false;
	if (typeof el.focus === "function") el.focus();
	const desc = Object.getOwnPropertyDescriptor(Object.getPrototypeOf(el), "value");
	if (desc && desc.set) { desc.set.call(el, value); } else { el.value = value; }
	el.dispatchEvent(new Event("input", { bubbles: true }));
	el.dispatchEvent(new Event("change", { bubbles: true }));
	return true;
})(%s, %s)`, sel, val)
}
