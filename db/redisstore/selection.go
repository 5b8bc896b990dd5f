package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL   = 30 * time.Minute
	keyPrefix    = "saascompare:selection:"
	maxTxRetries = 5
)

// SelectionStore keeps each session's selection as a JSON list under one
// key. Every read or write slides the TTL.
type SelectionStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewSelectionStore(client *redis.Client, ttl time.Duration) *SelectionStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SelectionStore{Client: client, TTL: ttl}
}

func (s *SelectionStore) Get(ctx context.Context, session string) ([]string, error) {
	val, err := s.Client.GetEx(ctx, key(session), s.TTL).Result()
	if errors.Is(err, redis.Nil) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get selection: %w", err)
	}
	return decode(val)
}

// Update runs fn inside WATCH/MULTI so concurrent writers to one session do
// not lose updates.
func (s *SelectionStore) Update(ctx context.Context, session string, fn func([]string) ([]string, error)) ([]string, error) {
	k := key(session)
	var result []string

	txf := func(tx *redis.Tx) error {
		current := []string{}
		val, err := tx.Get(ctx, k).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if current, err = decode(val); err != nil {
				return err
			}
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		b, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, b, s.TTL)
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.Client.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("update selection %s: too much contention", session)
}

func (s *SelectionStore) Clear(ctx context.Context, session string) error {
	return s.Client.Del(ctx, key(session)).Err()
}

func (s *SelectionStore) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

func key(session string) string {
	return keyPrefix + session
}

func decode(val string) ([]string, error) {
	var ids []string
	if err := json.Unmarshal([]byte(val), &ids); err != nil {
		return nil, fmt.Errorf("corrupt selection value: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
