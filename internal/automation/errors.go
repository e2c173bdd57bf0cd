package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/sorteando-crawler/internal/browser"
)

// ErrorKind classifies why a run failed.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindBusy
	KindLaunch
	KindNavigation
	KindNavigationTimeout
	KindWaitTimeout
	KindFormNotFound
	KindExtractionIncomplete
	KindCanceled
)

var kindNames = map[ErrorKind]string{
	KindUnknown:              "unknown",
	KindValidation:           "validation",
	KindBusy:                 "busy",
	KindLaunch:               "launch",
	KindNavigation:           "navigation",
	KindNavigationTimeout:    "navigation-timeout",
	KindWaitTimeout:          "wait-timeout",
	KindFormNotFound:         "form-not-found",
	KindExtractionIncomplete: "extraction-incomplete",
	KindCanceled:             "canceled",
}

func (k ErrorKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrBusy                 = &Error{Kind: KindBusy}
	ErrLaunch               = &Error{Kind: KindLaunch}
	ErrNavigation           = &Error{Kind: KindNavigation}
	ErrNavigationTimeout    = &Error{Kind: KindNavigationTimeout}
	ErrWaitTimeout          = &Error{Kind: KindWaitTimeout}
	ErrFormNotFound         = &Error{Kind: KindFormNotFound}
	ErrExtractionIncomplete = &Error{Kind: KindExtractionIncomplete}
	ErrCanceled             = &Error{Kind: KindCanceled}
)

// Error is the typed failure of a run. Diagnostic holds page text captured at
// the point of failure and is meant for logs only.
type Error struct {
	Kind       ErrorKind
	State      State
	Missing    []string
	Fields     []FieldError
	Diagnostic string
	Err        error
}

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"path"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.State != "" {
		fmt.Fprintf(&sb, " in state %s", e.State)
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&sb, ": missing %s", strings.Join(e.Missing, ", "))
	}
	for _, f := range e.Fields {
		fmt.Fprintf(&sb, "; %s: %s", f.Field, f.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// classify maps a step error onto a failure kind. Context errors only mean
// cancellation when the run's own ctx is done; otherwise a step budget ran
// out and the failure is a timeout of that step.
func classify(ctx context.Context, err error) ErrorKind {
	ctxErr := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	switch {
	case ctxErr && ctx.Err() != nil:
		return KindCanceled
	case errors.Is(err, browser.ErrLaunch):
		return KindLaunch
	case errors.Is(err, browser.ErrNavigationTimeout):
		return KindNavigationTimeout
	case errors.Is(err, browser.ErrNavigation):
		return KindNavigation
	case errors.Is(err, browser.ErrElementNotFound):
		return KindFormNotFound
	case errors.Is(err, browser.ErrWaitTimeout), ctxErr:
		return KindWaitTimeout
	default:
		return KindUnknown
	}
}
