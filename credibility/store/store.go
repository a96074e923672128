// Repository contracts for posts, authors, comments, evaluations and reports,
// with gorm and in-memory implementations.
//
// The credibility engine never issues queries of its own; everything it reads
// or writes goes through these interfaces as plain model values.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/pinokio-social/pinokio/models"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// Computes post status from updated evaluation counters.
type StatusFunc func(positive, negative int64) models.Verdict

type PostRepository interface {
	FindPost(ctx context.Context, id uint) (*models.Post, error)
	FindPostByExternalID(ctx context.Context, externalID string) (*models.Post, error)
	// Returns ErrDuplicateKey if the external id is already taken.
	CreatePost(ctx context.Context, post *models.Post) error
	UpdatePostStatus(ctx context.Context, id uint, status models.Verdict) error
	// Posts created within [since, until], oldest first.
	ListPostsCreatedBetween(ctx context.Context, since, until time.Time) ([]models.Post, error)
	// Sets NeedsManualReview on all given posts in a single write.
	FlagPostsForReview(ctx context.Context, ids []uint) error
	CountPosts(ctx context.Context) (PostCounts, error)
}

type AuthorRepository interface {
	FindAuthor(ctx context.Context, username string) (*models.Author, error)
}

type CommentRepository interface {
	ListComments(ctx context.Context, postID uint) ([]models.Comment, error)
}

type EvaluationRepository interface {
	// Atomically appends the evaluation, increments the matching counter on
	// the post, and stores the status computed by statusFn from the new
	// counters. Returns the updated post, or ErrNotFound if the post does not
	// exist.
	RecordEvaluation(ctx context.Context, ev *models.Evaluation, statusFn StatusFunc) (*models.Post, error)
}

type ReportRepository interface {
	CreateReport(ctx context.Context, report *models.Report) error
}

type Store interface {
	PostRepository
	AuthorRepository
	CommentRepository
	EvaluationRepository
	ReportRepository
}

type PostCounts struct {
	Total        int64                    `json:"total"`
	ByStatus     map[models.Verdict]int64 `json:"by_status"`
	ManualReview int64                    `json:"manual_review"`
}
