package engine

import (
	"bilancio/internal/core"
)

// Classify decides how a transaction affects Available Cash, given the
// match proposal and the user's answer to it.
//
// Unmatched transactions are regular with no prompt. A confirmed match is
// amortized: its cost is already absorbed by the per-period deduction, so
// downstream cash logic must not subtract it again. A declined match is
// regular. An unanswered match stays pending; it never defaults silently to
// either outcome.
func Classify(candidate core.MatchCandidate, confirmation core.Confirmation) core.ClassificationStatus {
	if candidate.MatchedSourceID == nil {
		return core.StatusRegular
	}
	switch confirmation {
	case core.ConfirmYes:
		return core.StatusAmortized
	case core.ConfirmNo:
		return core.StatusRegular
	default:
		return core.StatusPending
	}
}
