package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pinokio-social/pinokio/credibility/engine"
	"github.com/pinokio-social/pinokio/credibility/scoring"
	"github.com/pinokio-social/pinokio/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

type SeedOptions struct {
	Authors     int
	Posts       int
	BadFraction float64
}

type SeedSummary struct {
	Authors  int                    `json:"authors"`
	Posts    int                    `json:"posts"`
	Comments int                    `json:"comments"`
	Outcomes map[engine.Outcome]int `json:"outcomes"`
}

func fakeAuthor(faker *gofakeit.Faker, bad bool) models.Author {
	created := faker.DateRange(time.Now().AddDate(-10, 0, 0), time.Now().AddDate(0, -1, 0))
	a := models.Author{
		Username:            faker.Username(),
		Name:                faker.Name(),
		IsVerified:          faker.Bool(),
		Followers:           int64(faker.Number(100, 200_000)),
		Following:           int64(faker.Number(10, 2_000)),
		ProfileCompleteness: faker.Number(40, 100),
		AccountCreationDate: &created,
		IsPublic:            true,
	}
	if bad {
		a.IsVerified = false
		a.Followers = int64(faker.Number(0, 20))
		a.Following = int64(faker.Number(500, 5_000))
		a.ProfileCompleteness = faker.Number(0, 20)
	}
	return a
}

// Inserts fake authors directly, then submits posts through the ingestion
// gate so they are scored (and can trip the review-bombing check) exactly as
// collector submissions would. Comments are attached after ingestion.
func seedData(ctx context.Context, db *gorm.DB, eng *engine.Engine, faker *gofakeit.Faker, opts SeedOptions) (*SeedSummary, error) {
	if opts.Authors <= 0 {
		return nil, fmt.Errorf("need at least one author to seed posts")
	}
	sum := &SeedSummary{Outcomes: make(map[engine.Outcome]int)}

	nbad := int(float64(opts.Authors) * opts.BadFraction)
	if opts.BadFraction > 0 && nbad == 0 {
		nbad = 1
	}
	nbad = min(nbad, opts.Authors)
	authors := make([]models.Author, 0, opts.Authors)
	for i := 0; i < opts.Authors; i++ {
		a := fakeAuthor(faker, i < nbad)
		// usernames must be unique
		a.Username = fmt.Sprintf("%s%d", a.Username, i)
		authors = append(authors, a)
	}
	if err := db.WithContext(ctx).Create(&authors).Error; err != nil {
		return nil, fmt.Errorf("inserting authors: %w", err)
	}
	sum.Authors = len(authors)

	for i := 0; i < opts.Posts; i++ {
		bad := nbad > 0 && (nbad >= len(authors) || faker.Float64Range(0, 1) < opts.BadFraction)
		var author models.Author
		content := faker.Paragraph(1, faker.Number(1, 4), faker.Number(6, 14), " ")
		if bad {
			author = authors[faker.Number(0, nbad-1)]
			kw := scoring.DefaultManipulationKeywords[faker.Number(0, len(scoring.DefaultManipulationKeywords)-1)]
			content = faker.Sentence(8) + " " + kw + "!"
		} else {
			author = authors[faker.Number(nbad, len(authors)-1)]
		}
		published := faker.DateRange(time.Now().Add(-72*time.Hour), time.Now())

		res, err := eng.CreatePost(ctx, engine.CreatePostInput{
			Name:        author.Name,
			Username:    author.Username,
			PostContent: content,
			ExternalID:  fmt.Sprintf("seed-%d", faker.Uint32()),
			PublishedAt: &published,
			IsVerified:  author.IsVerified,
			Views:       int64(faker.Number(0, 50_000)),
			Comments:    int64(faker.Number(0, 200)),
			Reposts:     int64(faker.Number(0, 300)),
			Likes:       int64(faker.Number(0, 2_000)),
			Bookmarks:   int64(faker.Number(0, 100)),
		})
		if err != nil {
			return nil, fmt.Errorf("ingesting post %d: %w", i, err)
		}
		sum.Outcomes[res.Outcome]++
		if res.Existing() {
			continue
		}
		sum.Posts++

		ncomments := faker.Number(0, 3)
		for j := 0; j < ncomments; j++ {
			c := models.Comment{
				PostID:          res.Post.ID,
				Content:         faker.Sentence(6),
				LikesCount:      int64(faker.Number(0, 40)),
				RepliesCount:    int64(faker.Number(0, 10)),
				LinguisticScore: faker.Float64Range(0, 1),
			}
			if err := db.WithContext(ctx).Create(&c).Error; err != nil {
				return nil, fmt.Errorf("inserting comment: %w", err)
			}
			sum.Comments++
		}
	}
	return sum, nil
}
