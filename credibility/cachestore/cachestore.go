// Read-through caching of profile data (as JSON strings) with a fixed TTL and
// explicit purging.
//
// Includes an interface and implementations using redis and in-process memory.
// The engine uses it to avoid re-reading author profiles for every post by the
// same account.
package cachestore

import (
	"context"
	"encoding/json"
	"fmt"
)

// Namespaces in use.
const (
	NameAuthor = "author"
)

// A cache miss is reported as an empty string and no error.
type CacheStore interface {
	Get(ctx context.Context, name, key string) (string, error)
	Set(ctx context.Context, name, key string, val string) error
	Purge(ctx context.Context, name, key string) error
}

// Fetches and decodes a cached JSON value. Returns false on a miss.
func GetJSON[T any](ctx context.Context, cs CacheStore, name, key string) (*T, bool, error) {
	raw, err := cs.Get(ctx, name, key)
	if err != nil || raw == "" {
		return nil, false, err
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, false, fmt.Errorf("decoding cached %s/%s: %w", name, key, err)
	}
	return &out, true, nil
}

func SetJSON(ctx context.Context, cs CacheStore, name, key string, val any) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return cs.Set(ctx, name, key, string(b))
}
