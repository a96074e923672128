package cachestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type profile struct {
	Username  string `json:"username"`
	Followers int64  `json:"followers"`
}

func testCacheStoreBasics(t *testing.T, cs CacheStore) {
	assert := assert.New(t)
	ctx := context.Background()

	v, err := cs.Get(ctx, NameAuthor, "alice")
	assert.NoError(err)
	assert.Equal("", v)

	assert.NoError(cs.Set(ctx, NameAuthor, "alice", "one"))
	v, err = cs.Get(ctx, NameAuthor, "alice")
	assert.NoError(err)
	assert.Equal("one", v)

	// namespaces are separate
	v, err = cs.Get(ctx, "other", "alice")
	assert.NoError(err)
	assert.Equal("", v)

	assert.NoError(cs.Purge(ctx, NameAuthor, "alice"))
	assert.NoError(cs.Purge(ctx, NameAuthor, "alice"))
	v, err = cs.Get(ctx, NameAuthor, "alice")
	assert.NoError(err)
	assert.Equal("", v)

	p, ok, err := GetJSON[profile](ctx, cs, NameAuthor, "bob")
	assert.NoError(err)
	assert.False(ok)
	assert.Nil(p)

	assert.NoError(SetJSON(ctx, cs, NameAuthor, "bob", profile{Username: "bob", Followers: 12}))
	p, ok, err = GetJSON[profile](ctx, cs, NameAuthor, "bob")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(&profile{Username: "bob", Followers: 12}, p)

	assert.NoError(cs.Set(ctx, NameAuthor, "broken", "{not json"))
	_, _, err = GetJSON[profile](ctx, cs, NameAuthor, "broken")
	assert.Error(err)
}

func TestMemCacheStoreBasics(t *testing.T) {
	testCacheStoreBasics(t, NewMemCacheStore(100, time.Minute))
}

func TestMemCacheStoreExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCacheStore(10, 10*time.Millisecond)
	assert.NoError(cs.Set(ctx, NameAuthor, "alice", "one"))
	time.Sleep(50 * time.Millisecond)
	v, err := cs.Get(ctx, NameAuthor, "alice")
	assert.NoError(err)
	assert.Equal("", v)
}

func TestRedisCacheStoreBasics(t *testing.T) {
	t.Skip("live test, need redis running locally")

	cs, err := NewRedisCacheStore("redis://localhost:6379/0", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	testCacheStoreBasics(t, cs)
}
