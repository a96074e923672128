// Weighted multi-factor credibility scoring for posts.
//
// A Scorer combines author reputation, content signals, user evaluations and
// engagement into a single score in [0,1], and maps that score to a verdict.
// Scoring is pure and deterministic: it performs no I/O and the same inputs
// always produce the same Result, so it is safe to call from the review-bombing
// monitor for transient (unpersisted) verdicts.
package scoring
