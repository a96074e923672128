package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pinokio-social/pinokio/credibility/countstore"
	"github.com/pinokio-social/pinokio/credibility/store"
	"github.com/pinokio-social/pinokio/models"

	"go.opentelemetry.io/otel/attribute"
)

const maxFieldLength = 255

// Candidate post as submitted by a collector, eg the browser extension.
type CreatePostInput struct {
	Name            string     `json:"name"`
	Username        string     `json:"username"`
	PostContent     string     `json:"postContent"`
	ExternalID      string     `json:"external_id"`
	PublishedAt     *time.Time `json:"publishedAt,omitempty"`
	IsVerified      bool       `json:"isVerified"`
	Views           int64      `json:"views"`
	Comments        int64      `json:"comments"`
	Reposts         int64      `json:"reposts"`
	Likes           int64      `json:"likes"`
	Bookmarks       int64      `json:"bookmarks"`
	RelatedProfiles []string   `json:"relatedProfiles,omitempty"`
}

func (in *CreatePostInput) Validate() error {
	v := &validator{}
	if v.required("name", in.Name) {
		v.maxLen("name", in.Name, maxFieldLength)
	}
	if v.required("username", in.Username) {
		v.maxLen("username", in.Username, maxFieldLength)
	}
	v.required("postContent", in.PostContent)
	if v.required("external_id", in.ExternalID) {
		v.maxLen("external_id", in.ExternalID, maxFieldLength)
	}
	v.nonNegative("views", in.Views)
	v.nonNegative("comments", in.Comments)
	v.nonNegative("reposts", in.Reposts)
	v.nonNegative("likes", in.Likes)
	v.nonNegative("bookmarks", in.Bookmarks)
	return v.OrNil()
}

func (in *CreatePostInput) toPost() *models.Post {
	ext := in.ExternalID
	return &models.Post{
		ExternalID:      &ext,
		Name:            in.Name,
		Username:        in.Username,
		Content:         in.PostContent,
		PublishedAt:     in.PublishedAt,
		IsVerified:      in.IsVerified,
		Views:           in.Views,
		Comments:        in.Comments,
		Reposts:         in.Reposts,
		Likes:           in.Likes,
		Bookmarks:       in.Bookmarks,
		RelatedProfiles: in.RelatedProfiles,
		Status:          models.VerdictUnknown,
	}
}

// How the ingestion gate handled a post.
type Outcome string

const (
	// post with this external id already existed; returned unchanged
	OutcomeExisting Outcome = "existing"
	// mode was already Elevated; stored Unknown for manual review
	OutcomeElevated Outcome = "elevated"
	// this submission's review-bombing check switched to Elevated
	OutcomeNewlyElevated Outcome = "newly_elevated"
	// scored normally
	OutcomeScored Outcome = "scored"
)

type CreatePostResult struct {
	Post    *models.Post
	Outcome Outcome
}

func (r *CreatePostResult) Existing() bool {
	return r.Outcome == OutcomeExisting
}

// Ingestion gate. Stores a new post, either scored or (in Elevated mode)
// queued for manual review. Re-submitting a known external id returns the
// stored post and changes nothing.
func (eng *Engine) CreatePost(ctx context.Context, in CreatePostInput) (*CreatePostResult, error) {
	ctx, span := tracer.Start(ctx, "CreatePost")
	defer span.End()
	span.SetAttributes(attribute.String("external_id", in.ExternalID))

	if err := in.Validate(); err != nil {
		postsIngested.WithLabelValues("invalid").Inc()
		return nil, err
	}

	existing, err := eng.Store.FindPostByExternalID(ctx, in.ExternalID)
	if err == nil {
		postsIngested.WithLabelValues(string(OutcomeExisting)).Inc()
		return &CreatePostResult{Post: existing, Outcome: OutcomeExisting}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up external id: %w", err)
	}

	mode, err := eng.Modes.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading moderation mode: %w", err)
	}

	post := in.toPost()
	outcome := OutcomeScored
	if mode.Active {
		outcome = OutcomeElevated
	} else if !eng.BackgroundMonitor {
		rep, err := eng.Monitor.CheckAndMaybeActivate(ctx, eng.Now())
		if err != nil {
			return nil, fmt.Errorf("review-bombing check: %w", err)
		}
		if rep.Skipped {
			eng.Logger.Debug("review-bombing check throttled, scoring without it", "external_id", in.ExternalID)
		}
		// the check may have just switched modes
		mode, err = eng.Modes.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading moderation mode: %w", err)
		}
		if mode.Active {
			outcome = OutcomeNewlyElevated
		}
	}

	if outcome == OutcomeScored {
		res, err := eng.score(ctx, post)
		if err != nil {
			return nil, err
		}
		post.Status = res.Verdict
		post.NeedsManualReview = false
		postsScored.WithLabelValues(string(res.Verdict)).Inc()
		span.SetAttributes(attribute.Float64("score", res.Score))
	} else {
		post.Status = models.VerdictUnknown
		post.NeedsManualReview = true
	}

	if err := eng.Store.CreatePost(ctx, post); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			// lost a race with a concurrent submission of the same post
			existing, ferr := eng.Store.FindPostByExternalID(ctx, in.ExternalID)
			if ferr != nil {
				return nil, fmt.Errorf("fetching concurrently created post: %w", ferr)
			}
			postsIngested.WithLabelValues(string(OutcomeExisting)).Inc()
			return &CreatePostResult{Post: existing, Outcome: OutcomeExisting}, nil
		}
		return nil, fmt.Errorf("storing post: %w", err)
	}

	postsIngested.WithLabelValues(string(outcome)).Inc()
	if outcome == OutcomeScored {
		eng.incrementCounter(ctx, countstore.NameIngest, string(post.Status))
	} else {
		eng.incrementCounter(ctx, countstore.NameIngest, "elevated")
	}
	eng.Logger.Info("post ingested", "post", post.ID, "external_id", in.ExternalID, "outcome", outcome, "status", post.Status)
	return &CreatePostResult{Post: post, Outcome: outcome}, nil
}

// Re-scores a stored post and overwrites its status, whatever the moderation
// mode. The configured status policy may keep a counter-derived status.
func (eng *Engine) ReevaluatePost(ctx context.Context, id uint) (*models.Post, error) {
	ctx, span := tracer.Start(ctx, "ReevaluatePost")
	defer span.End()

	post, err := eng.Store.FindPost(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("post %d: %w", id, ErrNotFound)
	} else if err != nil {
		return nil, err
	}

	res, err := eng.score(ctx, post)
	if err != nil {
		return nil, err
	}
	status := eng.Thresholds.ResolveScored(eng.Policy, post, res.Verdict)
	if err := eng.Store.UpdatePostStatus(ctx, post.ID, status); err != nil {
		return nil, fmt.Errorf("updating post status: %w", err)
	}
	post.Status = status
	postsScored.WithLabelValues(string(res.Verdict)).Inc()
	eng.Logger.Info("post re-evaluated", "post", post.ID, "score", res.Score, "verdict", res.Verdict, "status", status)
	return post, nil
}
