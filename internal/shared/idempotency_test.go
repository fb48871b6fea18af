package shared

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0b6f4f7e-8d9a-4c39-9a53-0f2d3b7c1e11"

func newTestStore(t *testing.T) (*IdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewIdempotencyStore(client, time.Hour), mr
}

func TestIdempotencyReserveCompleteReplay(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	stored, err := store.Reserve(ctx, "payments", testKey)
	require.NoError(t, err)
	assert.Nil(t, stored)
	assert.True(t, mr.Exists("ardash:idem:payments:"+testKey))
	assert.Equal(t, time.Hour, mr.TTL("ardash:idem:payments:"+testKey))

	_, err = store.Reserve(ctx, "payments", testKey)
	assert.ErrorIs(t, err, ErrIdempotencyInProgress)

	require.NoError(t, store.Complete(ctx, "payments", testKey, StoredResponse{
		Status: 201,
		Body:   json.RawMessage(`{"ok":true,"payment_id":7}`),
	}))

	stored, err = store.Reserve(ctx, "payments", testKey)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 201, stored.Status)
	assert.JSONEq(t, `{"ok":true,"payment_id":7}`, string(stored.Body))
}

func TestIdempotencyReleaseAllowsRetry(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "payments", testKey)
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "payments", testKey))

	stored, err := store.Reserve(ctx, "payments", testKey)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestIdempotencyScopesAreIndependent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "payments", testKey)
	require.NoError(t, err)
	stored, err := store.Reserve(ctx, "payments_batch", testKey)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestIdempotencyRejectsMalformedKey(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Reserve(context.Background(), "payments", "not-a-uuid")
	assert.ErrorIs(t, err, ErrIdempotencyKeyInvalid)
}
