package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Errors returned by the idempotency store.
var (
	ErrIdempotencyInProgress = errors.New("idempotent request in progress")
	ErrIdempotencyKeyInvalid = errors.New("idempotency key must be a UUID")
)

const pendingMarker = "pending"

// StoredResponse is the response recorded for a completed request.
type StoredResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// IdempotencyStore reserves request keys in Redis and remembers the response
// of the request that completed them.
type IdempotencyStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewIdempotencyStore constructs the store. Keys expire after ttl.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, prefix: "ardash:idem:", ttl: ttl}
}

// ValidateKey checks that key is a UUID.
func ValidateKey(key string) error {
	if _, err := uuid.Parse(key); err != nil {
		return ErrIdempotencyKeyInvalid
	}
	return nil
}

func (s *IdempotencyStore) redisKey(scope, key string) string {
	return s.prefix + scope + ":" + key
}

// Reserve claims key within scope. When the key was already completed the
// stored response is returned. A key that is reserved but not completed
// yields ErrIdempotencyInProgress.
func (s *IdempotencyStore) Reserve(ctx context.Context, scope, key string) (*StoredResponse, error) {
	if s == nil {
		return nil, errors.New("idempotency store not initialised")
	}
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	rk := s.redisKey(scope, key)
	ok, err := s.client.SetNX(ctx, rk, pendingMarker, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("shared/idempotency: reserve: %w", err)
	}
	if ok {
		return nil, nil
	}
	payload, err := s.client.Get(ctx, rk).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Expired or released between SETNX and GET.
			return nil, ErrIdempotencyInProgress
		}
		return nil, fmt.Errorf("shared/idempotency: load: %w", err)
	}
	if string(payload) == pendingMarker {
		return nil, ErrIdempotencyInProgress
	}
	var stored StoredResponse
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, fmt.Errorf("shared/idempotency: decode: %w", err)
	}
	return &stored, nil
}

// Complete records the response for a reserved key.
func (s *IdempotencyStore) Complete(ctx context.Context, scope, key string, resp StoredResponse) error {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("shared/idempotency: encode: %w", err)
	}
	if err := s.client.Set(ctx, s.redisKey(scope, key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("shared/idempotency: complete: %w", err)
	}
	return nil
}

// Release removes a reservation, typically used to roll back failed processing.
func (s *IdempotencyStore) Release(ctx context.Context, scope, key string) error {
	if s == nil {
		return nil
	}
	if err := s.client.Del(ctx, s.redisKey(scope, key)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("shared/idempotency: release: %w", err)
	}
	return nil
}
