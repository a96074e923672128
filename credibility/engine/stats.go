package engine

import (
	"context"
	"fmt"

	"github.com/pinokio-social/pinokio/credibility/countstore"
	"github.com/pinokio-social/pinokio/credibility/modestore"
	"github.com/pinokio-social/pinokio/credibility/store"
	"github.com/pinokio-social/pinokio/models"
)

type Stats struct {
	Mode        modestore.Mode            `json:"mode"`
	Posts       store.PostCounts          `json:"posts"`
	Ingested    map[string]map[string]int `json:"ingested"`
	Evaluations map[string]map[string]int `json:"evaluations"`
	Activations map[string]int            `json:"activations"`
	// distinct signed-in evaluators across all posts, by period
	Evaluators  map[string]int            `json:"evaluators"`
}

func verdictNames() []string {
	out := make([]string, 0, len(models.AllVerdicts))
	for _, v := range models.AllVerdicts {
		out = append(out, string(v))
	}
	return out
}

// Operator overview: current mode, stored post totals, and rolling counters.
func (eng *Engine) Stats(ctx context.Context) (*Stats, error) {
	mode, err := eng.Modes.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading moderation mode: %w", err)
	}
	posts, err := eng.Store.CountPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting posts: %w", err)
	}
	out := &Stats{
		Mode:        mode,
		Posts:       posts,
		Ingested:    make(map[string]map[string]int),
		Evaluations: make(map[string]map[string]int),
		Evaluators:  make(map[string]int),
	}
	if eng.Counters == nil {
		return out, nil
	}
	ingestVals := append(verdictNames(), "elevated")
	for _, period := range countstore.AllPeriods {
		t, err := countstore.Tally(ctx, eng.Counters, countstore.NameIngest, ingestVals, period)
		if err != nil {
			return nil, err
		}
		out.Ingested[period] = t
		t, err = countstore.Tally(ctx, eng.Counters, countstore.NameEvaluation, verdictNames(), period)
		if err != nil {
			return nil, err
		}
		out.Evaluations[period] = t
		n, err := eng.Counters.GetCountDistinct(ctx, countstore.NameEvaluators, countstore.BucketAll, period)
		if err != nil {
			return nil, fmt.Errorf("reading distinct evaluators: %w", err)
		}
		out.Evaluators[period] = n
	}
	out.Activations, err = countstore.Tally(ctx, eng.Counters, countstore.NameActivation, []string{"monitor", "operator"}, countstore.PeriodTotal)
	if err != nil {
		return nil, err
	}
	return out, nil
}
