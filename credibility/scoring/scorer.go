package scoring

import (
	"fmt"
	"strings"

	"github.com/pinokio-social/pinokio/models"
)

type FactorScore struct {
	Factor       Factor  `json:"factor"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
	Detail       string  `json:"detail,omitempty"`
}

type Result struct {
	Score   float64        `json:"score"`
	Verdict models.Verdict `json:"verdict"`
	Factors []FactorScore  `json:"factors"`
	// manipulation phrases found in the content, if any
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
	// true when no author profile was available
	AuthorMissing bool `json:"author_missing,omitempty"`
	netNegative   bool
	hyphens       int
}

func (r *Result) Factor(f Factor) (FactorScore, bool) {
	for _, fs := range r.Factors {
		if fs.Factor == f {
			return fs, true
		}
	}
	return FactorScore{}, false
}

type Scorer struct {
	Weights  map[Factor]float64
	Keywords *KeywordMatcher
}

func NewScorer() *Scorer {
	return &Scorer{
		Weights:  DefaultWeights,
		Keywords: defaultKeywordMatcher,
	}
}

// Maps a score to a verdict. Monotonic: a higher score never yields a lower verdict.
func VerdictForScore(score float64) models.Verdict {
	if score >= ValidThreshold {
		return models.VerdictValid
	}
	if score >= WarningThreshold {
		return models.VerdictWarning
	}
	return models.VerdictUnknown
}

// Computes the credibility score and verdict of a post. A nil author
// contributes nothing to author-derived factors. Comments may be empty.
func (s *Scorer) Evaluate(post *models.Post, author *models.Author, comments []models.Comment) Result {
	res := Result{
		Factors:       make([]FactorScore, 0, len(AllFactors)),
		AuthorMissing: author == nil,
	}
	if post == nil {
		res.Verdict = VerdictForScore(0)
		return res
	}

	weights := s.Weights
	if weights == nil {
		weights = DefaultWeights
	}
	keywords := s.Keywords
	if keywords == nil {
		keywords = defaultKeywordMatcher
	}

	total := 0.0
	for _, f := range AllFactors {
		w := clamp(weights[f], 0, 1)
		frac, detail := s.fraction(f, post, author, comments, keywords, &res)
		contrib := clamp(frac, 0, 1) * w
		total += contrib
		res.Factors = append(res.Factors, FactorScore{
			Factor:       f,
			Weight:       w,
			Contribution: contrib,
			Detail:       detail,
		})
	}

	res.Score = clamp(total, 0, 1)
	res.Verdict = VerdictForScore(res.Score)
	return res
}

// Returns the fraction of the factor weight earned, before clamping.
func (s *Scorer) fraction(f Factor, post *models.Post, author *models.Author, comments []models.Comment, keywords *KeywordMatcher, res *Result) (float64, string) {
	switch f {
	case FactorAuthorVerified:
		if author == nil {
			return 0, "author unknown"
		}
		if author.IsVerified {
			return 1, "author is verified"
		}
		return 0, "author is not verified"
	case FactorProfileCompleteness:
		if author == nil {
			return 0, "author unknown"
		}
		pc := clamp(float64(author.ProfileCompleteness), 0, profileCompletenessMax)
		return pc / profileCompletenessMax, fmt.Sprintf("profile %.0f%% complete", pc)
	case FactorContentKeywords:
		res.MatchedKeywords = keywords.Match(post.Content)
		if len(res.MatchedKeywords) == 0 {
			return 1, "no manipulation keywords"
		}
		return 0, "contains: " + strings.Join(res.MatchedKeywords, ", ")
	case FactorFollowerFollowingRatio:
		if author == nil {
			return 0, "author unknown"
		}
		following := nonNeg(author.Following)
		if following == 0 {
			return 0, "author follows nobody"
		}
		ratio := float64(nonNeg(author.Followers)) / float64(following)
		return min(ratio/followerRatioCeiling, 1), fmt.Sprintf("follower ratio %.2f", ratio)
	case FactorPositiveEvaluations:
		pos := nonNeg(post.PositiveEvaluationsCount)
		neg := nonNeg(post.NegativeEvaluationsCount)
		res.netNegative = neg > pos
		if pos > neg {
			return 1, fmt.Sprintf("%d positive vs %d negative evaluations", pos, neg)
		}
		return 0, fmt.Sprintf("%d positive vs %d negative evaluations", pos, neg)
	case FactorCommentAnalysis:
		if len(comments) == 0 {
			return 0, "no comments"
		}
		var ling float64
		var interactions int64
		for _, c := range comments {
			ling += clamp(c.LinguisticScore, 0, 1)
			interactions += nonNeg(c.LikesCount) + nonNeg(c.RepliesCount)
		}
		mean := ling / float64(len(comments))
		inter := min(float64(interactions)/commentInteractionCap, 1)
		return 0.5*mean + 0.5*inter, fmt.Sprintf("%d comments, mean linguistic %.2f", len(comments), mean)
	case FactorPostLength:
		return min(float64(len(post.Content))/postLengthCeiling, 1), fmt.Sprintf("%d bytes", len(post.Content))
	case FactorHyphenUsage:
		res.hyphens = strings.Count(post.Content, "-")
		return 1 - min(float64(res.hyphens)/hyphenCeiling, 1), fmt.Sprintf("%d hyphens", res.hyphens)
	case FactorEngagement:
		eng := nonNeg(post.Likes) + nonNeg(post.Comments) + nonNeg(post.Reposts)
		return min(float64(eng)/engagementCeiling, 1), fmt.Sprintf("%d interactions", eng)
	case FactorKeywordTopicConsistency, FactorTopicFrequency:
		return 0, "reserved"
	}
	return 0, ""
}

func clamp(v, lo, hi float64) float64 {
	if v != v { // NaN
		return lo
	}
	return max(lo, min(v, hi))
}

func nonNeg(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
