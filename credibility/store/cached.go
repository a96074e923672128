package store

import (
	"context"
	"log/slog"

	"github.com/pinokio-social/pinokio/credibility/cachestore"
	"github.com/pinokio-social/pinokio/models"
)

// Read-through author cache in front of another AuthorRepository. Cache
// failures fall back to the underlying repository.
type CachedAuthors struct {
	Inner  AuthorRepository
	Cache  cachestore.CacheStore
	Logger *slog.Logger
}

var _ AuthorRepository = (*CachedAuthors)(nil)

func NewCachedAuthors(inner AuthorRepository, cache cachestore.CacheStore, logger *slog.Logger) *CachedAuthors {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedAuthors{
		Inner:  inner,
		Cache:  cache,
		Logger: logger.With("component", "author-cache"),
	}
}

func (c *CachedAuthors) FindAuthor(ctx context.Context, username string) (*models.Author, error) {
	a, ok, err := cachestore.GetJSON[models.Author](ctx, c.Cache, cachestore.NameAuthor, username)
	if err != nil {
		c.Logger.Warn("author cache read failed", "username", username, "err", err)
	} else if ok {
		return a, nil
	}

	a, err = c.Inner.FindAuthor(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := cachestore.SetJSON(ctx, c.Cache, cachestore.NameAuthor, username, a); err != nil {
		c.Logger.Warn("author cache write failed", "username", username, "err", err)
	}
	return a, nil
}

func (c *CachedAuthors) Purge(ctx context.Context, username string) error {
	return c.Cache.Purge(ctx, cachestore.NameAuthor, username)
}
