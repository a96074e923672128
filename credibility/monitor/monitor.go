// Review-bombing detection over the stream of recently submitted posts.
//
// The Monitor re-scores every post in a trailing window with transient
// verdicts. When enough of them look suspect it flags those posts for manual
// review and switches the global moderation mode to Elevated. It never
// switches back; that takes an operator.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pinokio-social/pinokio/credibility/modestore"
	"github.com/pinokio-social/pinokio/credibility/scoring"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

type Config struct {
	// trailing window of post creation times to examine
	Window time.Duration
	// no decision is taken on fewer posts than this
	MinSample int
	// Elevated mode triggers when the suspect fraction is strictly greater than this
	OutlierFraction float64
	// max inline checks per second; rate.Inf disables throttling
	ScanLimit rate.Limit
	// upper bound on a single shared check
	CheckTimeout time.Duration
}

const DefaultCheckTimeout = 30 * time.Second

func DefaultConfig() Config {
	return Config{
		Window:          48 * time.Hour,
		MinSample:       10,
		OutlierFraction: 0.3,
		ScanLimit:       rate.Inf,
		CheckTimeout:    DefaultCheckTimeout,
	}
}

// Outcome of a single check.
type Report struct {
	// this check switched the mode to Elevated
	Activated bool `json:"activated"`
	// mode was already Elevated; nothing was examined
	AlreadyActive bool `json:"already_active"`
	// check was throttled and did not run
	Skipped bool   `json:"skipped"`
	Sample  int    `json:"sample"`
	Suspect int    `json:"suspect"`
	Flagged []uint `json:"flagged,omitempty"`
}

func (r *Report) SuspectFraction() float64 {
	if r.Sample == 0 {
		return 0
	}
	return float64(r.Suspect) / float64(r.Sample)
}

type Monitor struct {
	Config  Config
	Scorer  *scoring.Scorer
	Sampler Sampler
	Flagger Flagger
	Modes   modestore.ModeStore
	Logger  *slog.Logger
	// called after the mode has been switched to Elevated
	OnActivate func(ctx context.Context, rep *Report)

	group   singleflight.Group
	limiter *rate.Limiter
}

func NewMonitor(cfg Config, scorer *scoring.Scorer, sampler Sampler, flagger Flagger, modes modestore.ModeStore, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ScanLimit == 0 {
		cfg.ScanLimit = rate.Inf
	}
	return &Monitor{
		Config:  cfg,
		Scorer:  scorer,
		Sampler: sampler,
		Flagger: flagger,
		Modes:   modes,
		Logger:  logger.With("component", "monitor"),
		limiter: rate.NewLimiter(cfg.ScanLimit, 1),
	}
}

// Whether a window of n posts with the given number of suspect verdicts
// constitutes review bombing.
func (c Config) Triggered(n, suspect int) bool {
	if n == 0 || n < c.MinSample {
		return false
	}
	return float64(suspect)/float64(n) > c.OutlierFraction
}

// Examines the window ending at now and switches to Elevated mode if it looks
// like review bombing. Concurrent calls share a single in-flight check.
//
// The decision is fully computed before anything is written, and a check that
// outlives CheckTimeout aborts before any write.
//
// The shared check runs detached from any one caller's context, bounded by
// CheckTimeout. A caller whose context ends while waiting gets its context
// error; the others still receive the result.
func (m *Monitor) CheckAndMaybeActivate(ctx context.Context, now time.Time) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := m.group.DoChan("check", func() (any, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.checkTimeout())
		defer cancel()
		return m.check(cctx, now)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		rep := *res.Val.(*Report)
		return &rep, nil
	}
}

func (m *Monitor) checkTimeout() time.Duration {
	if m.Config.CheckTimeout > 0 {
		return m.Config.CheckTimeout
	}
	return DefaultCheckTimeout
}

func (m *Monitor) check(ctx context.Context, now time.Time) (*Report, error) {
	ctx, span := tracer.Start(ctx, "CheckAndMaybeActivate")
	defer span.End()

	start := time.Now()
	defer func() {
		checkDuration.Observe(time.Since(start).Seconds())
	}()

	if !m.limiter.Allow() {
		checkCount.WithLabelValues("skipped").Inc()
		return &Report{Skipped: true}, nil
	}

	mode, err := m.Modes.Get(ctx)
	if err != nil {
		checkCount.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("reading moderation mode: %w", err)
	}
	if mode.Active {
		checkCount.WithLabelValues("already_active").Inc()
		return &Report{AlreadyActive: true}, nil
	}

	samples, err := m.Sampler.SampleBetween(ctx, now.Add(-m.Config.Window), now)
	if err != nil {
		checkCount.WithLabelValues("error").Inc()
		return nil, err
	}

	rep := &Report{Sample: len(samples)}
	var suspect []uint
	for i := range samples {
		s := &samples[i]
		res := m.Scorer.Evaluate(&s.Post, s.Author, s.Comments)
		if res.Verdict.IsSuspect() {
			suspect = append(suspect, s.Post.ID)
		}
	}
	rep.Suspect = len(suspect)

	lastSampleSize.Set(float64(rep.Sample))
	lastSuspectFraction.Set(rep.SuspectFraction())
	span.SetAttributes(attribute.Int("sample", rep.Sample), attribute.Int("suspect", rep.Suspect))

	if !m.Config.Triggered(rep.Sample, rep.Suspect) {
		checkCount.WithLabelValues("normal").Inc()
		return rep, nil
	}

	if err := ctx.Err(); err != nil {
		checkCount.WithLabelValues("aborted").Inc()
		return nil, fmt.Errorf("review-bombing check aborted before activation: %w", err)
	}

	if err := m.Flagger.FlagPostsForReview(ctx, suspect); err != nil {
		checkCount.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("flagging posts for review: %w", err)
	}
	if err := m.Modes.Set(ctx, true, now); err != nil {
		checkCount.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("activating elevated mode: %w", err)
	}
	rep.Activated = true
	rep.Flagged = suspect

	checkCount.WithLabelValues("activated").Inc()
	flaggedCount.Add(float64(len(suspect)))
	m.Logger.Warn("review bombing detected, elevated moderation mode",
		"sample", rep.Sample, "suspect", rep.Suspect, "fraction", rep.SuspectFraction())

	if m.OnActivate != nil {
		m.OnActivate(ctx, rep)
	}
	return rep, nil
}

// Runs the check on a fixed interval until the context is cancelled. Used
// when the check is moved off the ingestion path.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Logger.Info("starting background review-bombing monitor", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.CheckAndMaybeActivate(ctx, time.Now()); err != nil {
				m.Logger.Error("review-bombing check failed", "err", err)
			}
		}
	}
}
