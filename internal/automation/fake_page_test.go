package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/sorteando-crawler/internal/browser"
	"github.com/xkilldash9x/sorteando-crawler/internal/extract"
)

// fakePage scripts a site: before submit it shows the form, after submit it
// shows the configured result page. Conditions are decided immediately.
type fakePage struct {
	mu sync.Mutex

	navErr    error
	submitErr error
	formReady bool
	missing   map[string]bool
	submitted bool
	blockWait bool

	afterURL    string
	afterText   string
	afterLinks  []string
	afterBlocks []extract.Block

	filled      []browser.Field
	slept       time.Duration
	closeCalls  int
	screenshots int
}

func newFormPage() *fakePage {
	return &fakePage{formReady: true, missing: map[string]bool{}}
}

func (p *fakePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if p.navErr != nil {
		return p.navErr
	}
	return ctx.Err()
}

func (p *fakePage) Sleep(ctx context.Context, d time.Duration) error {
	p.mu.Lock()
	p.slept += d
	p.mu.Unlock()
	return ctx.Err()
}

func (p *fakePage) present(selector string) bool {
	return p.formReady && !p.submitted && !p.missing[selector]
}

func (p *fakePage) Fill(ctx context.Context, f browser.Field, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.present(f.Selector) {
		return fmt.Errorf("%w: %s", browser.ErrElementNotFound, f.Selector)
	}
	p.filled = append(p.filled, f)
	return nil
}

func (p *fakePage) Submit(ctx context.Context, selector string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.present(selector) {
		return fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	if p.submitErr != nil {
		return p.submitErr
	}
	p.submitted = true
	return nil
}

func (p *fakePage) WaitFor(ctx context.Context, cond browser.Condition, timeout time.Duration) error {
	if p.blockWait {
		<-ctx.Done()
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var ok bool
	if cond.Kind == browser.KindElementExists {
		ok = p.present(cond.Value)
	} else {
		url, text := p.current()
		ok = cond.Matches(url, text)
	}
	if !ok {
		return fmt.Errorf("%w: %s after %s", browser.ErrWaitTimeout, cond, timeout)
	}
	return nil
}

func (p *fakePage) current() (string, string) {
	if p.submitted {
		return p.afterURL, p.afterText
	}
	return "https://site.test/form", "Formulário"
}

func (p *fakePage) Snapshot(ctx context.Context) (extract.Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	url, text := p.current()
	doc := extract.Document{URL: url, BodyText: text}
	if p.submitted {
		doc.Links = p.afterLinks
		doc.Blocks = p.afterBlocks
	}
	return doc, nil
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	p.screenshots++
	p.mu.Unlock()
	return []byte("\x89PNG fake"), nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	p.closeCalls++
	p.mu.Unlock()
	return nil
}

// launcherFor returns a Launcher handing out page and counting launches.
func launcherFor(page *fakePage, launches *int) Launcher {
	return func(ctx context.Context) (Page, error) {
		*launches++
		return page, nil
	}
}
