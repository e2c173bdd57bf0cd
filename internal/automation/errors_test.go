package automation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/sorteando-crawler/internal/browser"
)

func TestError_Is(t *testing.T) {
	cause := fmt.Errorf("%w: #nome", browser.ErrElementNotFound)
	err := error(&Error{Kind: KindFormNotFound, State: StateNavigated, Err: cause})

	assert.ErrorIs(t, err, ErrFormNotFound)
	assert.NotErrorIs(t, err, ErrWaitTimeout)
	assert.ErrorIs(t, err, browser.ErrElementNotFound, "the browser cause stays reachable")
	assert.Equal(t, "form-not-found in state navigated: element not found: #nome", err.Error())
}

func TestError_Message(t *testing.T) {
	err := &Error{
		Kind:    KindValidation,
		Fields:  []FieldError{{Field: "email", Message: "must be a valid email address"}},
		Missing: nil,
	}
	assert.Equal(t, "validation; email: must be a valid email address", err.Error())

	err = &Error{Kind: KindExtractionIncomplete, State: StateExtracted, Missing: []string{"eventId"}}
	assert.Equal(t, "extraction-incomplete in state extracted: missing eventId", err.Error())

	assert.Equal(t, "kind(77)", ErrorKind(77).String())
}

func TestClassify(t *testing.T) {
	live := context.Background()
	done, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want ErrorKind
	}{
		{"launch", live, fmt.Errorf("%w: boom", browser.ErrLaunch), KindLaunch},
		{"navigation timeout", live, fmt.Errorf("%w: x", browser.ErrNavigationTimeout), KindNavigationTimeout},
		{"navigation", live, fmt.Errorf("%w: x", browser.ErrNavigation), KindNavigation},
		{"element not found", live, fmt.Errorf("%w: x", browser.ErrElementNotFound), KindFormNotFound},
		{"wait timeout", live, fmt.Errorf("%w: x", browser.ErrWaitTimeout), KindWaitTimeout},
		{"run deadline", done, context.DeadlineExceeded, KindCanceled},
		{"run canceled", done, fmt.Errorf("wrapped: %w", context.Canceled), KindCanceled},
		{"step budget expired", live, fmt.Errorf("failed to click #go: %w", context.Canceled), KindWaitTimeout},
		{"step deadline expired", live, context.DeadlineExceeded, KindWaitTimeout},
		{"other", live, errors.New("other"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.ctx, tt.err))
		})
	}
}

func TestCanTransition(t *testing.T) {
	order := []State{StateCreated, StateNavigated, StateFormFilled, StateSubmitted, StateAwaitingOutcome, StateExtracted, StateSucceeded}
	for i := 0; i < len(order)-1; i++ {
		assert.True(t, CanTransition(order[i], order[i+1]), "%s -> %s", order[i], order[i+1])
		assert.True(t, CanTransition(order[i], StateFailed), "%s -> failed", order[i])
		assert.True(t, CanTransition(order[i], order[i]), "notes inside %s", order[i])
	}

	assert.False(t, CanTransition(StateCreated, StateSubmitted))
	assert.False(t, CanTransition(StateSucceeded, StateFailed))
	assert.False(t, CanTransition(StateFailed, StateFailed))
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateExtracted.Terminal())
}

func TestRequestValidation(t *testing.T) {
	assert.NoError(t, CreateEventRequest{Name: "Rifa", Email: "dono@rifa.com.br"}.Validate())

	err := RegisterRequest{EventID: " ", Name: "a", Phone: "", City: "c", Email: "Ana <ana@x.com>"}.Validate()
	var failure *Error
	assert.True(t, errors.As(err, &failure))
	assert.Equal(t, []FieldError{
		{Field: "numero_sorteio", Message: "is required"},
		{Field: "telefone", Message: "is required"},
		{Field: "email", Message: "must be a valid email address"},
	}, failure.Fields)

	err = CreateEventRequest{Name: "a", Email: "a@localhost"}.Validate()
	assert.ErrorIs(t, err, ErrValidation)
}
