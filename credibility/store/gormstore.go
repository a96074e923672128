package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pinokio-social/pinokio/credibility/evaluation"
	"github.com/pinokio-social/pinokio/models"

	"gorm.io/gorm"
)

// GormStore is a gorm-backed implementation of all the repository interfaces.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) FindPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &post, nil
}

func (s *GormStore) FindPostByExternalID(ctx context.Context, externalID string) (*models.Post, error) {
	var post models.Post
	if err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&post).Error; err != nil {
		return nil, notFound(err)
	}
	return &post, nil
}

func (s *GormStore) CreatePost(ctx context.Context, post *models.Post) error {
	if post.Status == "" {
		post.Status = models.VerdictUnknown
	}
	// sqlite compares timestamps as text, so every stored time is UTC
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	} else {
		post.CreatedAt = post.CreatedAt.UTC()
	}
	err := s.db.WithContext(ctx).Create(post).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	return err
}

func (s *GormStore) UpdatePostStatus(ctx context.Context, id uint, status models.Verdict) error {
	res := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListPostsCreatedBetween(ctx context.Context, since, until time.Time) ([]models.Post, error) {
	var posts []models.Post
	err := s.db.WithContext(ctx).
		Where("created_at >= ? AND created_at <= ?", since.UTC(), until.UTC()).
		Order("id ASC").
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *GormStore) FlagPostsForReview(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Post{}).Where("id IN ?", ids).Update("needs_manual_review", true).Error
}

func (s *GormStore) CountPosts(ctx context.Context) (PostCounts, error) {
	out := PostCounts{ByStatus: make(map[models.Verdict]int64)}
	var rows []struct {
		Status models.Verdict
		N      int64
	}
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Post{}).Select("status, count(*) as n").Group("status").Scan(&rows).Error; err != nil {
		return out, err
	}
	for _, r := range rows {
		out.ByStatus[r.Status] = r.N
		out.Total += r.N
	}
	if err := db.Model(&models.Post{}).Where("needs_manual_review = ?", true).Count(&out.ManualReview).Error; err != nil {
		return out, err
	}
	return out, nil
}

func (s *GormStore) FindAuthor(ctx context.Context, username string) (*models.Author, error) {
	var author models.Author
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&author).Error; err != nil {
		return nil, notFound(err)
	}
	return &author, nil
}

func (s *GormStore) ListComments(ctx context.Context, postID uint) ([]models.Comment, error) {
	var comments []models.Comment
	if err := s.db.WithContext(ctx).Where("post_id = ?", postID).Order("id ASC").Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

func (s *GormStore) RecordEvaluation(ctx context.Context, ev *models.Evaluation, statusFn StatusFunc) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		col := "negative_evaluations_count"
		if evaluation.IsPositive(ev.Verdict) {
			col = "positive_evaluations_count"
		}
		// the increment takes the row lock, so concurrent evaluations of the
		// same post serialize here and the read below sees every prior write
		res := tx.Model(&models.Post{}).Where("id = ?", ev.PostID).UpdateColumn(col, gorm.Expr(col+" + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Create(ev).Error; err != nil {
			return fmt.Errorf("inserting evaluation: %w", err)
		}
		if err := tx.First(&post, ev.PostID).Error; err != nil {
			return err
		}
		status := statusFn(post.PositiveEvaluationsCount, post.NegativeEvaluationsCount)
		if status != post.Status {
			if err := tx.Model(&models.Post{}).Where("id = ?", ev.PostID).UpdateColumn("status", status).Error; err != nil {
				return err
			}
			post.Status = status
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *GormStore) CreateReport(ctx context.Context, report *models.Report) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", report.PostID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return s.db.WithContext(ctx).Create(report).Error
}
