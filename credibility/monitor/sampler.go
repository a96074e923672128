package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pinokio-social/pinokio/credibility/store"
	"github.com/pinokio-social/pinokio/models"
)

// A post in the detection window, with everything the scorer needs.
type Sample struct {
	Post     models.Post
	Author   *models.Author
	Comments []models.Comment
}

// Source of the posts to examine for a window. Implementations can read
// live tables or pre-aggregated data; the decision logic does not change.
type Sampler interface {
	SampleBetween(ctx context.Context, since, until time.Time) ([]Sample, error)
}

type Flagger interface {
	FlagPostsForReview(ctx context.Context, ids []uint) error
}

// Sampler over the repository interfaces.
type RepoSampler struct {
	Posts    store.PostRepository
	Authors  store.AuthorRepository
	Comments store.CommentRepository
}

var _ Sampler = (*RepoSampler)(nil)

func (s *RepoSampler) SampleBetween(ctx context.Context, since, until time.Time) ([]Sample, error) {
	posts, err := s.Posts.ListPostsCreatedBetween(ctx, since, until)
	if err != nil {
		return nil, fmt.Errorf("listing recent posts: %w", err)
	}
	authors := make(map[string]*models.Author)
	out := make([]Sample, 0, len(posts))
	for _, p := range posts {
		a, ok := authors[p.Username]
		if !ok {
			a, err = s.Authors.FindAuthor(ctx, p.Username)
			if errors.Is(err, store.ErrNotFound) {
				a = nil
			} else if err != nil {
				return nil, fmt.Errorf("fetching author %q: %w", p.Username, err)
			}
			authors[p.Username] = a
		}
		comments, err := s.Comments.ListComments(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("fetching comments for post %d: %w", p.ID, err)
		}
		out = append(out, Sample{Post: p, Author: a, Comments: comments})
	}
	return out, nil
}
