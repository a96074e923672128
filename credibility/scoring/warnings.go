package scoring

import (
	"fmt"
)

const (
	WarningManipulationKeywords = "Contains potentially misleading information"
	WarningUnverifiedAuthor     = "Author account is not verified"
	WarningUnknownAuthor        = "Author profile unavailable"
	WarningNegativeEvaluations  = "Flagged by other users as questionable"
	WarningExcessiveHyphens     = "Unusual formatting"
)

// Human-readable concerns derived from the factor breakdown, in a stable
// order. A Valid result can still carry warnings; callers decide whether to
// show them.
func (r *Result) Warnings() []string {
	out := []string{}
	if len(r.MatchedKeywords) > 0 {
		out = append(out, fmt.Sprintf("%s (%s)", WarningManipulationKeywords, r.MatchedKeywords[0]))
	}
	if r.AuthorMissing {
		out = append(out, WarningUnknownAuthor)
	} else if fs, ok := r.Factor(FactorAuthorVerified); ok && fs.Contribution == 0 {
		out = append(out, WarningUnverifiedAuthor)
	}
	if r.netNegative {
		out = append(out, WarningNegativeEvaluations)
	}
	if float64(r.hyphens) >= hyphenCeiling {
		out = append(out, WarningExcessiveHyphens)
	}
	return out
}
