package engine

import (
	"strings"
	"unicode"

	"bilancio/internal/core"
)

// DefaultMinCommonLength is the matching threshold used when none is
// configured. Five normalized characters is long enough to rule out
// incidental overlap while still catching truncated bank statement text.
const DefaultMinCommonLength = 5

// SourceMatcher proposes whether an incoming transaction belongs to an
// amortization source. Scoring is the longest common substring of the
// normalized merchant text and source name; a source is a candidate only
// when that length clears the configured minimum. The function is total and
// deterministic: unmatched input yields a candidate with no source.
type SourceMatcher struct {
	minCommonLength int
}

func NewSourceMatcher(minCommonLength int) *SourceMatcher {
	if minCommonLength <= 0 {
		minCommonLength = DefaultMinCommonLength
	}
	return &SourceMatcher{minCommonLength: minCommonLength}
}

// Match scores every source against the transaction's merchant text and
// returns the best candidate above the threshold, ties broken by the most
// recent start date. The amount is carried along as advisory context for
// the confirmation prompt; it never filters the match.
func (m *SourceMatcher) Match(merchantText string, amountCents int64, sources []core.AmortizationEntry) core.MatchCandidate {
	candidate := core.MatchCandidate{
		MerchantText: merchantText,
		AmountCents:  amountCents,
	}

	normalized := normalizeMerchant(merchantText)
	if normalized == "" {
		return candidate
	}

	var best core.AmortizationEntry
	bestScore := 0
	for _, src := range sources {
		score := longestCommonSubstring(normalized, normalizeMerchant(src.SourceName))
		if score < m.minCommonLength {
			continue
		}
		if score > bestScore || (score == bestScore && src.StartDate.After(best.StartDate.Time)) {
			best = src
			bestScore = score
		}
	}
	if bestScore > 0 {
		id := best.ID
		candidate.MatchedSourceID = &id
		candidate.Score = bestScore
	}
	return candidate
}

// normalizeMerchant case-folds and strips everything but letters and
// digits, so "TOYOTA SERVICE #42" and "Toyota Service" compare equal up to
// the trailing digits.
func normalizeMerchant(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// longestCommonSubstring returns the length of the longest contiguous run
// shared by a and b, using a rolling one-row table.
func longestCommonSubstring(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	best := 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > best {
					best = curr[j]
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return best
}
