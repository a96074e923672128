package models

import (
	"time"

	"gorm.io/gorm"
)

func RunAllMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&Author{},
		&Post{},
		&Comment{},
		&Evaluation{},
		&Report{},
		&Setting{},
	)
}

// A user-generated post collected from a social platform. Counters are as
// reported by the collector at submission time, except the evaluation counts,
// which are maintained locally and only ever increase.
type Post struct {
	ID                       uint       `gorm:"primaryKey" json:"id"`
	CreatedAt                time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at"`
	ExternalID               *string    `gorm:"uniqueIndex" json:"external_id"`
	Name                     string     `json:"name"`
	Username                 string     `gorm:"index" json:"username"`
	Content                  string     `json:"post_content"`
	PublishedAt              *time.Time `json:"published_at,omitempty"`
	IsVerified               bool       `json:"is_verified"`
	Views                    int64      `json:"views"`
	Likes                    int64      `json:"likes"`
	Reposts                  int64      `json:"reposts"`
	Comments                 int64      `json:"comments"`
	Bookmarks                int64      `json:"bookmarks"`
	RelatedProfiles          []string   `gorm:"serializer:json" json:"related_profiles,omitempty"`
	PositiveEvaluationsCount int64      `gorm:"not null;default:0" json:"positive_evaluations_count"`
	NegativeEvaluationsCount int64      `gorm:"not null;default:0" json:"negative_evaluations_count"`
	Status                   Verdict    `gorm:"not null;default:Unknown" json:"status"`
	NeedsManualReview        bool       `gorm:"not null;default:false" json:"needs_manual_review"`
}

// Profile of a post author, joined to posts on Username. The credibility
// engine only reads authors.
type Author struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	Username            string     `gorm:"uniqueIndex" json:"username"`
	Name                string     `json:"name"`
	IsVerified          bool       `json:"is_verified"`
	Followers           int64      `json:"followers"`
	Following           int64      `gorm:"column:following_count" json:"following_count"`
	ProfileCompleteness int        `json:"profile_completeness"`
	AccountCreationDate *time.Time `json:"account_creation_date,omitempty"`
	IsPublic            bool       `json:"is_public"`
}

type Comment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time `json:"created_at"`
	PostID          uint      `gorm:"index" json:"post_id"`
	UserID          *uint     `json:"user_id,omitempty"`
	Content         string    `json:"content"`
	LikesCount      int64     `json:"likes_count"`
	RepliesCount    int64     `json:"replies_count"`
	LinguisticScore float64   `json:"linguistic_score"`
}

// A single user judgement on a post. Append-only.
type Evaluation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	PostID    uint      `gorm:"index" json:"post_id"`
	UserID    *uint     `json:"user_id,omitempty"`
	Verdict   Verdict   `gorm:"column:evaluation;not null" json:"evaluation"`
}

// A user report about a post. Reports are recorded for moderators and do not
// affect post status.
type Report struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	PostID    uint      `gorm:"index" json:"post_id"`
	UserID    *uint     `json:"user_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// Generic key/value row. Values are JSON documents.
type Setting struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}
