// Status derivation from user evaluation counters, and the policy deciding
// which writer owns a post's status.
package evaluation

import (
	"fmt"

	"github.com/pinokio-social/pinokio/models"
)

type Thresholds struct {
	// negative evaluations at or above this mark the post Warning
	Negative int64
	// positive evaluations at or above this mark the post Valid
	Positive int64
}

var DefaultThresholds = Thresholds{
	Negative: 3,
	Positive: 5,
}

// Only Valid counts as positive; Warning and Unknown are both negative.
func IsPositive(v models.Verdict) bool {
	return v == models.VerdictValid
}

// Derives post status from counters. The negative check takes precedence.
func (t Thresholds) Status(positive, negative int64) models.Verdict {
	if negative >= t.Negative {
		return models.VerdictWarning
	}
	if positive >= t.Positive {
		return models.VerdictValid
	}
	return models.VerdictUnknown
}

// Applies a single evaluation to the counters, returning the new counts and status.
func (t Thresholds) Apply(positive, negative int64, v models.Verdict) (int64, int64, models.Verdict) {
	if IsPositive(v) {
		positive++
	} else {
		negative++
	}
	return positive, negative, t.Status(positive, negative)
}

// Decides how a scoring result and counter-derived status interact when both
// write Post.Status.
type Policy string

const (
	// whichever writer runs last sets the status
	PolicyLastWriteWins Policy = "last-write-wins"
	// once a post has at least one evaluation, re-scoring leaves status to the counters
	PolicyCounterWinsOnceEvaluated Policy = "counter-wins"
)

func ParsePolicy(raw string) (Policy, error) {
	switch Policy(raw) {
	case PolicyLastWriteWins, PolicyCounterWinsOnceEvaluated:
		return Policy(raw), nil
	case "":
		return PolicyLastWriteWins, nil
	}
	return "", fmt.Errorf("unknown status policy: %q", raw)
}

// Status to persist when re-scoring a post which already has counters.
func (t Thresholds) ResolveScored(p Policy, post *models.Post, scored models.Verdict) models.Verdict {
	if p == PolicyCounterWinsOnceEvaluated && post.PositiveEvaluationsCount+post.NegativeEvaluationsCount > 0 {
		return t.Status(post.PositiveEvaluationsCount, post.NegativeEvaluationsCount)
	}
	return scored
}
