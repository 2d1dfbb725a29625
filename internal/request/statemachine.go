package request

import "fmt"

// The portal the engine replaced let agents set any status at any time, which
// allowed double-completion and resurrecting closed cases. Transitions are now
// enforced: a request moves strictly forward through the progress ranking,
// may move laterally between the in-flight rank-3 states, and may be rejected
// or cancelled from any non-terminal state.

// CanTransition reports whether from may move to target.
func CanTransition(from, target Status) bool {
	if from == target {
		return false
	}
	if from.Terminal() {
		return false
	}
	if target == StatusRejected || target == StatusCancelled {
		return true
	}
	fromRank, targetRank := from.Rank(), target.Rank()
	if fromRank == 3 && targetRank == 3 {
		return true
	}
	return targetRank > fromRank
}

// NextStatus validates the move and returns target unchanged, mirroring the
// appointment state machine's entry point.
func NextStatus(from, target Status) (Status, error) {
	if _, ok := rank[target]; !ok {
		return "", fmt.Errorf("%w: unknown request status %q", ErrInvalidInput, target)
	}
	if !CanTransition(from, target) {
		return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, target)
	}
	return target, nil
}
