package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/sorteando-crawler/internal/browser"
	"github.com/xkilldash9x/sorteando-crawler/internal/extract"
)

// Page is the browser surface a workflow drives. *browser.Session implements it.
type Page interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	Sleep(ctx context.Context, d time.Duration) error
	Fill(ctx context.Context, f browser.Field, timeout time.Duration) error
	Submit(ctx context.Context, selector string, timeout time.Duration) error
	WaitFor(ctx context.Context, cond browser.Condition, timeout time.Duration) error
	Snapshot(ctx context.Context) (extract.Document, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Launcher opens a fresh page backed by its own browser.
type Launcher func(ctx context.Context) (Page, error)

// SignalWait is a two-tier wait: Primary first, then Fallback when Primary
// times out. Each condition gets the full Timeout. When Required is false a
// timeout on both is recorded and the run continues.
type SignalWait struct {
	Primary  browser.Condition
	Fallback browser.Condition
	Timeout  time.Duration
	Required bool
}

func (w SignalWait) hasFallback() bool { return w.Fallback.Value != "" }

// Workflow is the declarative description of one automation run.
type Workflow struct {
	Name              string
	URL               string
	NavigationTimeout time.Duration
	// Settle is an extra pause after navigation for pages that keep rendering.
	Settle         time.Duration
	ReadySelector  string
	FormTimeout    time.Duration
	Fields         []browser.Field
	SubmitSelector string
	SubmitTimeout  time.Duration
	Outcome        SignalWait
	// Secondary is an optional, never fatal, wait for late content.
	Secondary *SignalWait
	Spec      extract.Spec
}

// Outcome is the result of one run. Err is nil exactly when the run succeeded.
type Outcome struct {
	Workflow string
	State    State
	Fields   map[string]string
	History  []Transition
	Duration time.Duration
	Err      *Error
}

// Succeeded reports whether the run produced every required field.
func (o Outcome) Succeeded() bool { return o.Err == nil && o.State == StateSucceeded }

// machine tracks the state of a single run.
type machine struct {
	wf      Workflow
	state   State
	history []Transition
	logger  *zap.Logger
	now     func() time.Time
}

func (m *machine) transition(to State, note string) {
	if !CanTransition(m.state, to) {
		// A programming error in the step order; keep the run observable.
		m.logger.Error("Illegal state transition.", zap.String("from", string(m.state)), zap.String("to", string(to)))
	}
	m.history = append(m.history, Transition{From: m.state, To: to, Note: note, At: m.now()})
	m.logger.Debug("Transition.", zap.String("from", string(m.state)), zap.String("to", string(to)), zap.String("note", note))
	m.state = to
}

func (m *machine) note(note string) { m.transition(m.state, note) }

// fail moves to Failed and builds the typed error for the current state.
func (m *machine) fail(kind ErrorKind, err error) *Error {
	failed := &Error{Kind: kind, State: m.state, Err: err}
	m.transition(StateFailed, kind.String())
	return failed
}

// Run drives wf to a terminal state. The page it opens is closed exactly once
// before Run returns, whatever the outcome. capture, when set, is invoked on
// failure while the page is still open.
func Run(ctx context.Context, wf Workflow, launch Launcher, capture DiagnosticFunc, logger *zap.Logger) Outcome {
	start := time.Now()
	m := &machine{
		wf:     wf,
		state:  StateCreated,
		logger: logger.With(zap.String("workflow", wf.Name)),
		now:    time.Now,
	}

	out := Outcome{Workflow: wf.Name}
	fields, failure := m.execute(ctx, launch, capture)

	out.State = m.state
	out.Fields = fields
	out.History = m.history
	out.Duration = time.Since(start)
	out.Err = failure
	return out
}

func (m *machine) execute(ctx context.Context, launch Launcher, capture DiagnosticFunc) (map[string]string, *Error) {
	wf := m.wf

	page, err := launch(ctx)
	if err != nil {
		kind := classify(ctx, err)
		if kind != KindCanceled {
			kind = KindLaunch
		}
		return nil, m.fail(kind, err)
	}
	defer page.Close()

	failWith := func(kind ErrorKind, err error) *Error {
		failure := m.fail(kind, err)
		if capture != nil {
			failure.Diagnostic = capture(page, wf.Name, failure)
		}
		return failure
	}
	failStep := func(err error) *Error { return failWith(classify(ctx, err), err) }

	// Created -> Navigated
	if err := page.Navigate(ctx, wf.URL, wf.NavigationTimeout); err != nil {
		return nil, failStep(err)
	}
	m.transition(StateNavigated, wf.URL)

	if wf.Settle > 0 {
		if err := page.Sleep(ctx, wf.Settle); err != nil {
			return nil, failStep(err)
		}
		m.note(NoteSettled)
	}

	// Navigated -> FormFilled
	if wf.ReadySelector != "" {
		if err := page.WaitFor(ctx, browser.ElementExists(wf.ReadySelector), wf.FormTimeout); err != nil {
			if errors.Is(err, browser.ErrWaitTimeout) {
				err = fmt.Errorf("%w: %s", browser.ErrElementNotFound, wf.ReadySelector)
			}
			return nil, failStep(err)
		}
	}
	for _, f := range wf.Fields {
		if err := page.Fill(ctx, f, wf.FormTimeout); err != nil {
			return nil, failStep(err)
		}
	}
	m.transition(StateFormFilled, "")

	// FormFilled -> Submitted
	if err := page.Submit(ctx, wf.SubmitSelector, wf.SubmitTimeout); err != nil {
		return nil, failStep(err)
	}
	m.transition(StateSubmitted, "")

	// Submitted -> AwaitingOutcome
	m.transition(StateAwaitingOutcome, "")
	if err := m.await(ctx, page, wf.Outcome, NoteOutcomeTimeout); err != nil {
		if wf.Outcome.Required || ctx.Err() != nil {
			return nil, failStep(err)
		}
	}
	if wf.Secondary != nil {
		if err := m.await(ctx, page, *wf.Secondary, NoteSecondaryTimeout); err != nil && ctx.Err() != nil {
			return nil, failStep(err)
		}
	}

	// AwaitingOutcome -> Extracted
	doc, err := page.Snapshot(ctx)
	if err != nil {
		return nil, failStep(err)
	}
	res := extract.Extract(doc, wf.Spec)
	m.transition(StateExtracted, "")

	if !res.Complete() {
		failure := failWith(KindExtractionIncomplete, nil)
		failure.Missing = res.Missing()
		if failure.Diagnostic == "" {
			failure.Diagnostic = res.BodyText
		}
		return res.Fields, failure
	}

	m.transition(StateSucceeded, "")
	return res.Fields, nil
}

// await runs a two-tier signal wait. A timeout is recorded under timeoutNote
// and returned; the caller decides whether it is fatal.
func (m *machine) await(ctx context.Context, page Page, w SignalWait, timeoutNote string) error {
	primaryNote, fallbackNote := NotePrimarySignal, NoteFallbackSignal
	if timeoutNote == NoteSecondaryTimeout {
		primaryNote = NoteSecondarySignal
	}

	err := page.WaitFor(ctx, w.Primary, w.Timeout)
	if err == nil {
		m.note(primaryNote)
		return nil
	}
	if !errors.Is(err, browser.ErrWaitTimeout) || !w.hasFallback() {
		if errors.Is(err, browser.ErrWaitTimeout) {
			m.note(timeoutNote)
		}
		return err
	}

	err = page.WaitFor(ctx, w.Fallback, w.Timeout)
	if err == nil {
		m.note(fallbackNote)
		return nil
	}
	if errors.Is(err, browser.ErrWaitTimeout) {
		m.note(timeoutNote)
	}
	return err
}
