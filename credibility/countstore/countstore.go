// Rolling counters of engine outcomes, bucketed by hour, day and all-time.
//
// Includes an interface and implementations using redis and in-process memory.
package countstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	PeriodTotal = "total"
	PeriodDay   = "day"
	PeriodHour  = "hour"
)

var AllPeriods = []string{PeriodTotal, PeriodDay, PeriodHour}

// Counter names used by the engine. Values are verdict strings.
const (
	// verdicts assigned at ingestion, including "elevated" bypasses
	NameIngest = "ingest"
	// user evaluations received, by verdict
	NameEvaluation = "evaluation"
	// distinct evaluators, bucketed by post id and BucketAll
	NameEvaluators = "evaluators"
	// monitor activations
	NameActivation = "activation"
)

// distinct-counter bucket spanning every post
const BucketAll = "all"

type CountStore interface {
	GetCount(ctx context.Context, name, val, period string) (int, error)
	Increment(ctx context.Context, name, val string) error
	GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error)
	IncrementDistinct(ctx context.Context, name, bucket, val string) error
}

func periodBucket(name, val, period string, now time.Time) string {
	switch period {
	case PeriodTotal:
		return fmt.Sprintf("%s/%s", name, val)
	case PeriodDay:
		t := now.UTC().Format(time.DateOnly)
		return fmt.Sprintf("%s/%s/%s", name, val, t)
	case PeriodHour:
		t := now.UTC().Format(time.RFC3339)[0:13]
		return fmt.Sprintf("%s/%s/%s", name, val, t)
	default:
		slog.Warn("unhandled counter period", "period", period)
		return fmt.Sprintf("%s/%s", name, val)
	}
}

// Reads one counter across several values for a single period.
func Tally(ctx context.Context, cs CountStore, name string, vals []string, period string) (map[string]int, error) {
	out := make(map[string]int, len(vals))
	for _, v := range vals {
		c, err := cs.GetCount(ctx, name, v, period)
		if err != nil {
			return nil, fmt.Errorf("reading counter %s/%s: %w", name, v, err)
		}
		out[v] = c
	}
	return out, nil
}
