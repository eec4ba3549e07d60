package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"

	redisadapter "github.com/robertarktes/rail-booking/internal/adapters/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]redisadapter.IdempResponse
	ttls map[string]time.Duration
}

func (m *memStore) Get(_ context.Context, key string) (*redisadapter.IdempResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *memStore) Set(_ context.Context, key string, resp redisadapter.IdempResponse, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = resp
	m.ttls[key] = ttl
	return nil
}

func TestIdempotency_RecordsResponses(t *testing.T) {
	store := &memStore{data: map[string]redisadapter.IdempResponse{}, ttls: map[string]time.Duration{}}
	idemp := NewIdempotency(store, time.Hour)
	ctx := context.Background()

	got, err := idemp.Get(ctx, "TKT1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, idemp.Set(ctx, "TKT1", Response{Status: 200, Result: []byte("ok")}))
	got, err = idemp.Get(ctx, "TKT1")
	require.NoError(t, err)
	assert.Equal(t, &Response{Status: 200, Result: []byte("ok")}, got)
	assert.Equal(t, time.Hour, store.ttls["TKT1"])
}

func TestIdempotency_NilAndEmptyKey(t *testing.T) {
	var idemp *Idempotency
	got, err := idemp.Get(context.Background(), "k")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, idemp.Set(context.Background(), "k", Response{}))

	store := &memStore{data: map[string]redisadapter.IdempResponse{}, ttls: map[string]time.Duration{}}
	assert.NoError(t, NewIdempotency(store, time.Hour).Set(context.Background(), "", Response{Status: 1}))
	assert.Empty(t, store.data)
}
