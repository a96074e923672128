package scoring

type Factor string

const (
	FactorAuthorVerified          Factor = "author_is_verified"
	FactorProfileCompleteness     Factor = "profile_completeness"
	FactorContentKeywords         Factor = "content_keywords"
	FactorFollowerFollowingRatio  Factor = "follower_following_ratio"
	FactorPositiveEvaluations     Factor = "positive_user_evaluations"
	FactorCommentAnalysis         Factor = "comment_analysis"
	FactorPostLength              Factor = "post_length"
	FactorHyphenUsage             Factor = "hyphen_usage"
	FactorEngagement              Factor = "share_comment_like_ratio"
	FactorKeywordTopicConsistency Factor = "keyword_topic_consistency"
	FactorTopicFrequency          Factor = "topic_frequency"
)

// Evaluation order of factors. Results list factors in this order.
var AllFactors = []Factor{
	FactorAuthorVerified,
	FactorProfileCompleteness,
	FactorContentKeywords,
	FactorFollowerFollowingRatio,
	FactorPositiveEvaluations,
	FactorCommentAnalysis,
	FactorPostLength,
	FactorHyphenUsage,
	FactorEngagement,
	FactorKeywordTopicConsistency,
	FactorTopicFrequency,
}

// The single authoritative weight table.
//
// NOTE: weights sum to more than 1.0; the total score is clamped.
var DefaultWeights = map[Factor]float64{
	FactorAuthorVerified:          0.30,
	FactorProfileCompleteness:     0.20,
	FactorContentKeywords:         0.30,
	FactorFollowerFollowingRatio:  0.10,
	FactorPositiveEvaluations:     0.10,
	FactorCommentAnalysis:         0.10,
	FactorPostLength:              0.05,
	FactorHyphenUsage:             0.05,
	FactorEngagement:              0.05,
	FactorKeywordTopicConsistency: 0.10, // reserved, contributes nothing
	FactorTopicFrequency:          0.05, // reserved, contributes nothing
}

// Phrases which suggest manipulative or conspiratorial framing. Matched as
// case-insensitive substrings of post content.
var DefaultManipulationKeywords = []string{
	"fake news",
	"hoax",
	"unverified claim",
	"conspiracy",
}

const (
	ValidThreshold   = 0.7
	WarningThreshold = 0.4
)

// normalization ceilings for the ratio-style factors
const (
	followerRatioCeiling   = 2.0
	commentInteractionCap  = 100.0
	postLengthCeiling      = 1000.0
	hyphenCeiling          = 5.0
	engagementCeiling      = 500.0
	profileCompletenessMax = 100.0
)
