package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/pinokio-social/pinokio/credibility/scoring"
	"github.com/pinokio-social/pinokio/credibility/store"
	"github.com/pinokio-social/pinokio/models"
)

const WarningManualReview = "Pending manual review"

// longest text prefix hashed into a content identifier
const candidateTextMaxLength = 10_000

var statusIDRegex = regexp.MustCompile(`(?:/status/|/posts/)(\d+)`)

// Derives the identifier a collector uses for a post: the numeric status id
// from its permalink when there is one, otherwise "sha:" plus the hex SHA-256
// of the (truncated) post text, falling back to the raw HTML.
func CandidateID(href, text, html string) string {
	if m := statusIDRegex.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	basis := strings.TrimSpace(text)
	if r := []rune(basis); len(r) > candidateTextMaxLength {
		basis = string(r[:candidateTextMaxLength])
	}
	if basis == "" {
		basis = html
	}
	sum := sha256.Sum256([]byte(basis))
	return "sha:" + hex.EncodeToString(sum[:])
}

type Reservation struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Compact verdict summary, as consumed by the browser extension.
type StatusView struct {
	Status   models.Verdict `json:"status"`
	Warnings []string       `json:"warnings"`
}

type PostView struct {
	Post         *models.Post    `json:"post"`
	Reservations []Reservation   `json:"reservations"`
	Warnings     []string        `json:"warnings"`
	Score        *scoring.Result `json:"score,omitempty"`
	// distinct signed-in users who evaluated the post
	Evaluators   int             `json:"distinct_evaluators"`
}

func reservationsFor(post *models.Post) []Reservation {
	out := []Reservation{}
	switch post.Status {
	case models.VerdictWarning:
		out = append(out, Reservation{Type: "credibility", Message: "This post has been flagged as potentially misleading."})
	case models.VerdictUnknown:
		out = append(out, Reservation{Type: "credibility", Message: "The credibility of this post is unknown."})
	}
	if post.NeedsManualReview {
		out = append(out, Reservation{Type: "moderation", Message: "This post is awaiting manual review."})
	}
	return out
}

func (eng *Engine) warningsFor(post *models.Post, res *scoring.Result) []string {
	out := []string{}
	if post.NeedsManualReview {
		out = append(out, WarningManualReview)
	}
	if post.Status == models.VerdictValid {
		return out
	}
	out = append(out, res.Warnings()...)
	if post.NegativeEvaluationsCount >= eng.Thresholds.Negative && !slices.Contains(out, scoring.WarningNegativeEvaluations) {
		out = append(out, scoring.WarningNegativeEvaluations)
	}
	return out
}

// Stored post by internal id, with reservations and warnings.
func (eng *Engine) GetPost(ctx context.Context, id uint) (*PostView, error) {
	ctx, span := tracer.Start(ctx, "GetPost")
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
	return &PostView{
		Post:         post,
		Reservations: reservationsFor(post),
		Warnings:     eng.warningsFor(post, &res),
		Score:        &res,
		Evaluators:   eng.distinctEvaluators(ctx, post.ID),
	}, nil
}

// Status and warnings for a post by external identifier.
func (eng *Engine) PostStatus(ctx context.Context, externalID string) (*StatusView, error) {
	ctx, span := tracer.Start(ctx, "PostStatus")
	defer span.End()

	post, err := eng.Store.FindPostByExternalID(ctx, externalID)
	if errors.Is(err, store.ErrNotFound) {
		statusLookups.WithLabelValues("miss").Inc()
		return nil, fmt.Errorf("post %q: %w", externalID, ErrNotFound)
	} else if err != nil {
		return nil, err
	}
	statusLookups.WithLabelValues("hit").Inc()
	res, err := eng.score(ctx, post)
	if err != nil {
		return nil, err
	}
	return &StatusView{
		Status:   post.Status,
		Warnings: eng.warningsFor(post, &res),
	}, nil
}

type StatusQuery struct {
	Identifier string `json:"identifier,omitempty"`
	URL        string `json:"url,omitempty"`
	Text       string `json:"text,omitempty"`
	HTML       string `json:"html,omitempty"`
}

func (q StatusQuery) ID() string {
	if q.Identifier != "" {
		return q.Identifier
	}
	return CandidateID(q.URL, q.Text, q.HTML)
}

// Resolves many posts at once. Unknown identifiers map to Unknown with no
// warnings rather than failing the batch.
func (eng *Engine) BatchStatus(ctx context.Context, queries []StatusQuery) (map[string]StatusView, error) {
	out := make(map[string]StatusView, len(queries))
	for _, q := range queries {
		id := q.ID()
		if _, ok := out[id]; ok {
			continue
		}
		sv, err := eng.PostStatus(ctx, id)
		if errors.Is(err, ErrNotFound) {
			out[id] = StatusView{Status: models.VerdictUnknown, Warnings: []string{}}
			continue
		} else if err != nil {
			return nil, err
		}
		out[id] = *sv
	}
	return out, nil
}
