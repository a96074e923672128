package modestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisModeKey = "setting/" + SettingKey

type RedisModeStore struct {
	Client *redis.Client
}

var _ ModeStore = (*RedisModeStore)(nil)

func NewRedisModeStore(redisURL string) (*RedisModeStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisModeStore{Client: rdb}, nil
}

func (s *RedisModeStore) Get(ctx context.Context) (Mode, error) {
	raw, err := s.Client.Get(ctx, redisModeKey).Bytes()
	if err == redis.Nil {
		return Mode{}, nil
	} else if err != nil {
		return Mode{}, err
	}
	var m Mode
	if err := json.Unmarshal(raw, &m); err != nil {
		return Mode{}, fmt.Errorf("decoding moderation mode: %w", err)
	}
	return m, nil
}

func (s *RedisModeStore) Set(ctx context.Context, active bool, ts time.Time) error {
	b, err := json.Marshal(Mode{Active: active, UpdatedAt: ts})
	if err != nil {
		return err
	}
	// no expiration: the mode only changes by explicit Set
	return s.Client.Set(ctx, redisModeKey, b, 0).Err()
}
