package automation

import "time"

// State is a step of the automation state machine.
type State string

const (
	StateCreated         State = "created"
	StateNavigated       State = "navigated"
	StateFormFilled      State = "form-filled"
	StateSubmitted       State = "submitted"
	StateAwaitingOutcome State = "awaiting-outcome"
	StateExtracted       State = "extracted"
	StateSucceeded       State = "succeeded"
	StateFailed          State = "failed"
)

// Notes attached to transitions that do not change state.
const (
	NotePrimarySignal    = "primary-signal"
	NoteFallbackSignal   = "fallback-signal"
	NoteOutcomeTimeout   = "outcome-signal-timeout"
	NoteSecondarySignal  = "secondary-signal"
	NoteSecondaryTimeout = "secondary-signal-timeout"
	NoteSettled          = "settled"
)

// Transition is one entry of a run's history. From equals To for the named
// non-fatal events recorded inside a state.
type Transition struct {
	From State
	To   State
	Note string
	At   time.Time
}

var allowed = map[State][]State{
	StateCreated:         {StateNavigated, StateFailed},
	StateNavigated:       {StateFormFilled, StateFailed},
	StateFormFilled:      {StateSubmitted, StateFailed},
	StateSubmitted:       {StateAwaitingOutcome, StateFailed},
	StateAwaitingOutcome: {StateExtracted, StateFailed},
	StateExtracted:       {StateSucceeded, StateFailed},
}

// CanTransition reports whether the machine may move from one state to another.
func CanTransition(from, to State) bool {
	if from == to {
		return from != StateSucceeded && from != StateFailed
	}
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}
