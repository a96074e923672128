package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/pinokio-social/pinokio/credibility/countstore"
	"github.com/pinokio-social/pinokio/credibility/store"
	"github.com/pinokio-social/pinokio/models"
)

type SubmitEvaluationInput struct {
	PostID     uint   `json:"post_id"`
	UserID     *uint  `json:"user_id,omitempty"`
	Evaluation string `json:"evaluation"`
}

type SubmitEvaluationResult struct {
	Evaluation *models.Evaluation `json:"evaluation"`
	PostStatus models.Verdict     `json:"post_status"`
	Post       *models.Post       `json:"-"`
}

// Records a user evaluation and recomputes the post status from its counters.
// Unknown posts and verdicts are validation errors, as for the HTTP API.
func (eng *Engine) SubmitEvaluation(ctx context.Context, in SubmitEvaluationInput) (*SubmitEvaluationResult, error) {
	ctx, span := tracer.Start(ctx, "SubmitEvaluation")
	defer span.End()

	v := &validator{}
	verdict, err := models.ParseVerdict(in.Evaluation)
	if in.Evaluation == "" {
		v.Add("evaluation", "The evaluation field is required.")
	} else if err != nil {
		v.Add("evaluation", "The selected evaluation is invalid.")
	}
	if in.PostID == 0 {
		v.Add("post_id", "The post id field is required.")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	ev := &models.Evaluation{
		PostID:  in.PostID,
		UserID:  in.UserID,
		Verdict: verdict,
	}
	post, err := eng.Store.RecordEvaluation(ctx, ev, eng.Thresholds.Status)
	if errors.Is(err, store.ErrNotFound) {
		v.Add("post_id", "The selected post id is invalid.")
		return nil, v.OrNil()
	} else if err != nil {
		return nil, fmt.Errorf("recording evaluation: %w", err)
	}

	evaluationsReceived.WithLabelValues(string(verdict)).Inc()
	eng.incrementCounter(ctx, countstore.NameEvaluation, string(verdict))
	if in.UserID != nil && eng.Counters != nil {
		user := strconv.FormatUint(uint64(*in.UserID), 10)
		for _, bucket := range []string{evaluatorsBucket(post.ID), countstore.BucketAll} {
			if err := eng.Counters.IncrementDistinct(ctx, countstore.NameEvaluators, bucket, user); err != nil {
				eng.Logger.Warn("failed to increment distinct counter", "bucket", bucket, "err", err)
			}
		}
	}
	eng.Logger.Info("evaluation recorded", "post", post.ID, "evaluation", verdict,
		"positive", post.PositiveEvaluationsCount, "negative", post.NegativeEvaluationsCount, "status", post.Status)

	return &SubmitEvaluationResult{
		Evaluation: ev,
		PostStatus: post.Status,
		Post:       post,
	}, nil
}

func evaluatorsBucket(postID uint) string {
	return strconv.FormatUint(uint64(postID), 10)
}

// Number of distinct signed-in users who evaluated the post. Counter failures
// read as zero.
func (eng *Engine) distinctEvaluators(ctx context.Context, postID uint) int {
	if eng.Counters == nil {
		return 0
	}
	n, err := eng.Counters.GetCountDistinct(ctx, countstore.NameEvaluators, evaluatorsBucket(postID), countstore.PeriodTotal)
	if err != nil {
		eng.Logger.Warn("failed to read distinct counter", "post", postID, "err", err)
		return 0
	}
	return n
}

type SubmitReportInput struct {
	PostID uint   `json:"post_id"`
	UserID *uint  `json:"user_id,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (eng *Engine) SubmitReport(ctx context.Context, in SubmitReportInput) (*models.Report, error) {
	ctx, span := tracer.Start(ctx, "SubmitReport")
	defer span.End()

	v := &validator{}
	if in.PostID == 0 {
		v.Add("post_id", "The post id field is required.")
		return nil, v.OrNil()
	}
	report := &models.Report{
		PostID: in.PostID,
		UserID: in.UserID,
		Reason: in.Reason,
	}
	err := eng.Store.CreateReport(ctx, report)
	if errors.Is(err, store.ErrNotFound) {
		v.Add("post_id", "The selected post id is invalid.")
		return nil, v.OrNil()
	} else if err != nil {
		return nil, fmt.Errorf("storing report: %w", err)
	}
	reportsReceived.Inc()
	eng.Logger.Info("report recorded", "post", report.PostID, "report", report.ID)
	return report, nil
}
