package update

import (
	"fmt"

	apperrors "puzzlemania/internal/errors"
)

// State is a step of a single update attempt.
type State string

const (
	StateIdle                   State = "idle"
	StateChecking               State = "checking"
	StateDescriptorReady        State = "descriptor_ready"
	StateUpToDate               State = "up_to_date"
	StateDownloadConfirmPending State = "download_confirm_pending"
	StateDownloading            State = "downloading"
	StateVerifying              State = "verifying"
	StateApplyConfirmPending    State = "apply_confirm_pending"
	StateApplying               State = "applying"
	StateDone                   State = "done"
	StateAborted                State = "aborted"
)

var allowedTransitions = map[State]map[State]struct{}{
	StateIdle: {
		StateChecking: {},
	},
	StateChecking: {
		StateDescriptorReady: {},
		StateAborted:         {},
	},
	StateDescriptorReady: {
		StateUpToDate:               {},
		StateDownloadConfirmPending: {},
		StateAborted:                {},
	},
	StateDownloadConfirmPending: {
		StateDownloading: {},
		StateAborted:     {},
	},
	StateDownloading: {
		StateVerifying: {},
		StateAborted:   {},
	},
	StateVerifying: {
		StateApplyConfirmPending: {},
		StateAborted:             {},
	},
	StateApplyConfirmPending: {
		StateApplying: {},
		StateAborted:  {},
	},
	StateApplying: {
		StateDone:    {},
		StateAborted: {},
	},
}

// IsTerminal reports whether the attempt has finished.
func (s State) IsTerminal() bool {
	return s == StateUpToDate || s == StateDone || s == StateAborted
}

// CanTransitionTo verifies whether moving to target is allowed.
func (s State) CanTransitionTo(target State) error {
	if transitions, ok := allowedTransitions[s]; ok {
		if _, allowed := transitions[target]; allowed {
			return nil
		}
	}
	return apperrors.New(apperrors.CodeInvalidTransition, fmt.Sprintf("cannot transition from %s to %s", s, target), nil)
}
