package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxMergeRetries = 5

// RedisDraftStore keeps drafts as JSON strings with a sliding TTL.
type RedisDraftStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisDraftStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisDraftStore {
	if prefix == "" {
		prefix = "survey:draft:"
	}
	return &RedisDraftStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisDraftStore) key(k Key) string {
	return s.prefix + k.String()
}

func (s *RedisDraftStore) Load(ctx context.Context, key Key) (url.Values, error) {
	return s.load(ctx, s.client, s.key(key))
}

func (s *RedisDraftStore) load(ctx context.Context, c redis.Cmdable, key string) (url.Values, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return url.Values{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get draft: %w", err)
	}
	values := url.Values{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", key, err)
	}
	return values, nil
}

// Merge runs an optimistic WATCH/MULTI cycle so concurrent step posts from
// the same session do not drop each other's fields.
func (s *RedisDraftStore) Merge(ctx context.Context, key Key, values url.Values) (url.Values, error) {
	rk := s.key(key)
	var merged url.Values
	txf := func(tx *redis.Tx) error {
		current, err := s.load(ctx, tx, rk)
		if err != nil {
			return err
		}
		merged = mergeValues(current, values)
		raw, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rk, raw, s.ttl)
			return nil
		})
		return err
	}
	for i := 0; i < maxMergeRetries; i++ {
		err := s.client.Watch(ctx, txf, rk)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis merge draft: %w", err)
		}
		return merged, nil
	}
	return nil, fmt.Errorf("redis merge draft %s: too much contention", rk)
}

func (s *RedisDraftStore) Delete(ctx context.Context, key Key) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete draft: %w", err)
	}
	return nil
}
