package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"transit-ledger/internal/config"
	"transit-ledger/internal/ledger-service/core/ports"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "ledger:idempotency:"
	processing = "PROCESSING"
	lockTTL    = 10 * time.Second
	resultTTL  = 24 * time.Hour
)

func NewClient(ctx context.Context, cfg config.Redisconfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// IdempotencyStore keeps the first response of each Idempotency-Key.
type IdempotencyStore struct {
	client *redis.Client
}

func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

func (s *IdempotencyStore) Begin(ctx context.Context, key string) (*ports.StoredResponse, bool, error) {
	k := keyPrefix + key

	val, err := s.client.Get(ctx, k).Result()
	switch {
	case err == nil:
		if val == processing {
			return nil, false, nil
		}
		res := &ports.StoredResponse{}
		if err := json.Unmarshal([]byte(val), res); err != nil {
			return nil, false, fmt.Errorf("decode stored response: %w", err)
		}
		return res, false, nil
	case !errors.Is(err, redis.Nil):
		return nil, false, err
	}

	acquired, err := s.client.SetNX(ctx, k, processing, lockTTL).Result()
	if err != nil {
		return nil, false, err
	}
	return nil, acquired, nil
}

func (s *IdempotencyStore) Finish(ctx context.Context, key string, res ports.StoredResponse) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, keyPrefix+key, raw, resultTTL).Err()
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, keyPrefix+key).Err()
}
