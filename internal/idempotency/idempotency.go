package idempotency

import (
	"context"
	"time"

	redisadapter "github.com/robertarktes/rail-booking/internal/adapters/redis"
)

// Store is the persistence behind Idempotency.
type Store interface {
	Get(ctx context.Context, key string) (*redisadapter.IdempResponse, error)
	Set(ctx context.Context, key string, resp redisadapter.IdempResponse, ttl time.Duration) error
}

type Idempotency struct {
	store Store
	ttl   time.Duration
}

func NewIdempotency(store Store, ttl time.Duration) *Idempotency {
	return &Idempotency{store: store, ttl: ttl}
}

type Response struct {
	Status int
	Result []byte
}

// Get returns the response recorded for key, or nil if there is none.
func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	if i == nil || i.store == nil || key == "" {
		return nil, nil
	}
	r, err := i.store.Get(ctx, key)
	if err != nil || r == nil {
		return nil, err
	}
	return &Response{Status: r.Status, Result: r.Result}, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp Response) error {
	if i == nil || i.store == nil || key == "" {
		return nil
	}
	return i.store.Set(ctx, key, redisadapter.IdempResponse{Status: resp.Status, Result: resp.Result}, i.ttl)
}
