package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis stores each session as a JSON value under session:<id>.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func sessionKey(id string) string { return "session:" + id }
func lockKey(key string) string   { return "lock:" + key }

func (r *Redis) Create(ctx context.Context, userID string) (*State, error) {
	s := newState(uuid.NewString(), userID, time.Now())
	if err := r.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Redis) Get(ctx context.Context, id string) (*State, error) {
	raw, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

// Save compares versions under WATCH so a concurrent save aborts the
// transaction instead of being overwritten.
func (r *Redis) Save(ctx context.Context, s *State) error {
	key := sessionKey(s.ID)
	next := *s
	next.Version++
	raw, err := json.Marshal(&next)
	if err != nil {
		return err
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if s.Version != 0 {
				return ErrNoSession
			}
		case err != nil:
			return fmt.Errorf("redis get session: %w", err)
		default:
			var stored struct {
				Version int64 `json:"version"`
			}
			if err := json.Unmarshal(current, &stored); err != nil {
				return fmt.Errorf("decode session: %w", err)
			}
			if stored.Version != s.Version {
				return ErrConflict
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, r.ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	s.Version = next.Version
	return nil
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, sessionKey(id)).Err()
}

func (r *Redis) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		// release only if we still own it
		val, err := r.client.Get(context.Background(), lockKey(key)).Result()
		if err == nil && val == token {
			if err := r.client.Del(context.Background(), lockKey(key)).Err(); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("release lock")
			}
		}
	}, nil
}
