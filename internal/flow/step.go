package flow

import "github.com/m3rciful/langbot/core/telegram/state"

// Outcome classifies what a step did.
type Outcome int

const (
	// Stay keeps the user on the same step: an accumulator change, an
	// empty sentinel, or rejected input to retry.
	Stay Outcome = iota + 1
	// Advance moved the user to the next step.
	Advance
	// NoChange closed an edit that would not change anything; nothing was
	// written back.
	NoChange
)

func (o Outcome) String() string {
	switch o {
	case Stay:
		return "stay"
	case Advance:
		return "advance"
	case NoChange:
		return "no_change"
	default:
		return "unknown"
	}
}

// Step reports the result of one flow input.
type Step struct {
	Outcome Outcome
	State   state.State
	// Topics is the accumulator content after topic steps.
	Topics Topics
}
