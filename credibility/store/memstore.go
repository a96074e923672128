package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/pinokio-social/pinokio/credibility/evaluation"
	"github.com/pinokio-social/pinokio/models"
)

// In-process Store, mostly for tests and local development. Safe for
// concurrent use; values are copied in and out.
type MemStore struct {
	mu          sync.RWMutex
	posts       map[uint]*models.Post
	byExternal  map[string]uint
	authors     map[string]models.Author
	comments    map[uint][]models.Comment
	evaluations []models.Evaluation
	reports     []models.Report
	nextID      uint

	// clock used for CreatedAt stamps
	Now func() time.Time
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		posts:      make(map[uint]*models.Post),
		byExternal: make(map[string]uint),
		authors:    make(map[string]models.Author),
		comments:   make(map[uint][]models.Comment),
		Now:        time.Now,
	}
}

func (s *MemStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *MemStore) AddAuthor(a models.Author) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.id()
	}
	s.authors[a.Username] = a
}

func (s *MemStore) AddComment(c models.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.id()
	}
	s.comments[c.PostID] = append(s.comments[c.PostID], c)
}

func copyPost(p *models.Post) *models.Post {
	out := *p
	out.RelatedProfiles = slices.Clone(p.RelatedProfiles)
	return &out
}

func (s *MemStore) FindPost(ctx context.Context, id uint) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyPost(p), nil
}

func (s *MemStore) FindPostByExternalID(ctx context.Context, externalID string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExternal[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyPost(s.posts[id]), nil
}

func (s *MemStore) CreatePost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if post.ExternalID != nil {
		if _, ok := s.byExternal[*post.ExternalID]; ok {
			return ErrDuplicateKey
		}
	}
	if post.Status == "" {
		post.Status = models.VerdictUnknown
	}
	post.ID = s.id()
	now := s.Now()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	post.UpdatedAt = now
	s.posts[post.ID] = copyPost(post)
	if post.ExternalID != nil {
		s.byExternal[*post.ExternalID] = post.ID
	}
	return nil
}

func (s *MemStore) UpdatePostStatus(ctx context.Context, id uint, status models.Verdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = s.Now()
	return nil
}

func (s *MemStore) ListPostsCreatedBetween(ctx context.Context, since, until time.Time) ([]models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Post
	for _, p := range s.posts {
		if p.CreatedAt.Before(since) || p.CreatedAt.After(until) {
			continue
		}
		out = append(out, *copyPost(p))
	}
	slices.SortFunc(out, func(a, b models.Post) int { return int(a.ID) - int(b.ID) })
	return out, nil
}

func (s *MemStore) FlagPostsForReview(ctx context.Context, ids []uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if p, ok := s.posts[id]; ok {
			p.NeedsManualReview = true
		}
	}
	return nil
}

func (s *MemStore) CountPosts(ctx context.Context) (PostCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := PostCounts{ByStatus: make(map[models.Verdict]int64)}
	for _, p := range s.posts {
		out.Total++
		out.ByStatus[p.Status]++
		if p.NeedsManualReview {
			out.ManualReview++
		}
	}
	return out, nil
}

func (s *MemStore) FindAuthor(ctx context.Context, username string) (*models.Author, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.authors[username]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemStore) ListComments(ctx context.Context, postID uint) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.comments[postID]), nil
}

func (s *MemStore) RecordEvaluation(ctx context.Context, ev *models.Evaluation, statusFn StatusFunc) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[ev.PostID]
	if !ok {
		return nil, ErrNotFound
	}
	ev.ID = s.id()
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.Now()
	}
	s.evaluations = append(s.evaluations, *ev)
	if evaluation.IsPositive(ev.Verdict) {
		p.PositiveEvaluationsCount++
	} else {
		p.NegativeEvaluationsCount++
	}
	p.Status = statusFn(p.PositiveEvaluationsCount, p.NegativeEvaluationsCount)
	return copyPost(p), nil
}

func (s *MemStore) CreateReport(ctx context.Context, report *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[report.PostID]; !ok {
		return ErrNotFound
	}
	report.ID = s.id()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = s.Now()
	}
	s.reports = append(s.reports, *report)
	return nil
}

func (s *MemStore) Evaluations() []models.Evaluation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.evaluations)
}

func (s *MemStore) Reports() []models.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.reports)
}
