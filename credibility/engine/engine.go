// Credibility engine: the ingestion gate, user evaluations and reports, status
// lookups, and operator control of the moderation mode.
//
// The Engine wires together the scoring, monitor, evaluation and store
// packages. It owns no state of its own; everything durable lives behind the
// store and modestore interfaces, so several engine instances may share one
// database.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pinokio-social/pinokio/credibility/countstore"
	"github.com/pinokio-social/pinokio/credibility/evaluation"
	"github.com/pinokio-social/pinokio/credibility/modestore"
	"github.com/pinokio-social/pinokio/credibility/monitor"
	"github.com/pinokio-social/pinokio/credibility/scoring"
	"github.com/pinokio-social/pinokio/credibility/store"
	"github.com/pinokio-social/pinokio/models"
)

type Config struct {
	Monitor    monitor.Config
	Thresholds evaluation.Thresholds
	Policy     evaluation.Policy
	// skip the inline review-bombing check; Monitor.Run is expected to be running instead
	BackgroundMonitor bool
	// optional replacement for author lookups, eg a cache in front of the store
	Authors  store.AuthorRepository
	Notifier Notifier
	Logger   *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Monitor:    monitor.DefaultConfig(),
		Thresholds: evaluation.DefaultThresholds,
		Policy:     evaluation.PolicyLastWriteWins,
	}
}

// Most fields must be non-nil; construct with NewEngine.
type Engine struct {
	Logger     *slog.Logger
	Store      store.Store
	Authors    store.AuthorRepository
	Modes      modestore.ModeStore
	Counters   countstore.CountStore
	Scorer     *scoring.Scorer
	Monitor    *monitor.Monitor
	Notifier   Notifier
	Thresholds evaluation.Thresholds
	Policy     evaluation.Policy

	BackgroundMonitor bool
	Now               func() time.Time
}

func NewEngine(st store.Store, modes modestore.ModeStore, counters countstore.CountStore, cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	authors := cfg.Authors
	if authors == nil {
		authors = st
	}
	if cfg.Thresholds == (evaluation.Thresholds{}) {
		cfg.Thresholds = evaluation.DefaultThresholds
	}
	if cfg.Policy == "" {
		cfg.Policy = evaluation.PolicyLastWriteWins
	}
	scorer := scoring.NewScorer()
	sampler := &monitor.RepoSampler{Posts: st, Authors: authors, Comments: st}

	eng := &Engine{
		Logger:            logger,
		Store:             st,
		Authors:           authors,
		Modes:             modes,
		Counters:          counters,
		Scorer:            scorer,
		Notifier:          cfg.Notifier,
		Thresholds:        cfg.Thresholds,
		Policy:            cfg.Policy,
		BackgroundMonitor: cfg.BackgroundMonitor,
		Now:               time.Now,
	}
	eng.Monitor = monitor.NewMonitor(cfg.Monitor, scorer, sampler, st, modes, logger)
	eng.Monitor.OnActivate = eng.onActivate
	return eng
}

func (eng *Engine) onActivate(ctx context.Context, rep *monitor.Report) {
	modeChanges.WithLabelValues("elevated", "monitor").Inc()
	eng.incrementCounter(ctx, countstore.NameActivation, "monitor")
	if eng.Notifier == nil {
		return
	}
	if err := eng.Notifier.SendActivation(ctx, rep); err != nil {
		notificationErrors.Inc()
		eng.Logger.Error("failed to send activation notification", "err", err)
	}
}

// Scores a post with freshly resolved author and comments. Posts without an
// id (not yet stored) have no comments.
func (eng *Engine) score(ctx context.Context, post *models.Post) (scoring.Result, error) {
	author, err := eng.Authors.FindAuthor(ctx, post.Username)
	if errors.Is(err, store.ErrNotFound) {
		author = nil
	} else if err != nil {
		return scoring.Result{}, fmt.Errorf("fetching author %q: %w", post.Username, err)
	}
	var comments []models.Comment
	if post.ID != 0 {
		comments, err = eng.Store.ListComments(ctx, post.ID)
		if err != nil {
			return scoring.Result{}, fmt.Errorf("fetching comments: %w", err)
		}
	}
	res := eng.Scorer.Evaluate(post, author, comments)
	scoreDistribution.Observe(res.Score)
	return res, nil
}

// Counter failures are logged, never returned.
func (eng *Engine) incrementCounter(ctx context.Context, name, val string) {
	if eng.Counters == nil {
		return
	}
	if err := eng.Counters.Increment(ctx, name, val); err != nil {
		eng.Logger.Warn("failed to increment counter", "name", name, "val", val, "err", err)
	}
}
