package models

import (
	"fmt"
)

// Credibility verdict attached to a post, either computed by the scoring
// engine or derived from user evaluations.
//
// Verdicts are ordered Unknown < Warning < Valid.
type Verdict string

const (
	VerdictUnknown Verdict = "Unknown"
	VerdictWarning Verdict = "Warning"
	VerdictValid   Verdict = "Valid"
)

var AllVerdicts = []Verdict{VerdictUnknown, VerdictWarning, VerdictValid}

func ParseVerdict(raw string) (Verdict, error) {
	switch Verdict(raw) {
	case VerdictUnknown, VerdictWarning, VerdictValid:
		return Verdict(raw), nil
	}
	return "", fmt.Errorf("invalid verdict: %q", raw)
}

func (v Verdict) String() string {
	if v == "" {
		return string(VerdictUnknown)
	}
	return string(v)
}

// Position in the Unknown < Warning < Valid ordering. The zero value ranks as Unknown.
func (v Verdict) Rank() int {
	switch v {
	case VerdictWarning:
		return 1
	case VerdictValid:
		return 2
	default:
		return 0
	}
}

// Whether the verdict counts against a post during review-bombing detection (Unknown or Warning).
func (v Verdict) IsSuspect() bool {
	return v.Rank() < VerdictValid.Rank()
}
