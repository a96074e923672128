package scoring

import (
	"slices"

	"github.com/cloudflare/ahocorasick"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Case-insensitive multi-phrase matcher over post content. Safe for
// concurrent use.
type KeywordMatcher struct {
	keywords []string
	matcher  *ahocorasick.Matcher
}

// Empty phrases are ignored.
func NewKeywordMatcher(keywords []string) *KeywordMatcher {
	kws := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		kws = append(kws, kw)
	}
	dict := make([]string, len(kws))
	for i, kw := range kws {
		dict[i] = cases.Lower(language.Und).String(kw)
	}
	return &KeywordMatcher{
		keywords: kws,
		matcher:  ahocorasick.NewStringMatcher(dict),
	}
}

// Returns the configured phrases found in content, in configuration order.
func (km *KeywordMatcher) Match(content string) []string {
	if content == "" || len(km.keywords) == 0 {
		return nil
	}
	// cases.Caser is stateful, so one per call
	lower := cases.Lower(language.Und).String(content)
	hits := km.matcher.MatchThreadSafe([]byte(lower))
	if len(hits) == 0 {
		return nil
	}
	slices.Sort(hits)
	out := make([]string, 0, len(hits))
	for _, i := range slices.Compact(hits) {
		out = append(out, km.keywords[i])
	}
	return out
}

func (km *KeywordMatcher) Keywords() []string {
	return slices.Clone(km.keywords)
}

var defaultKeywordMatcher = NewKeywordMatcher(DefaultManipulationKeywords)
