// Package draftstore persists the search criteria of a client session so a
// reloaded workflow starts where the user left off.
package draftstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/rail-booking/internal/domain"
)

const keyPrefix = "draft:search:"

// KV is a session-scoped key-value store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type Store struct {
	kv  KV
	ttl time.Duration
}

func New(kv KV, ttl time.Duration) *Store {
	return &Store{kv: kv, ttl: ttl}
}

func Key(sessionKey string) string {
	return keyPrefix + sessionKey
}

func (s *Store) Load(ctx context.Context, sessionKey string) (domain.TrainSearchCriteria, bool, error) {
	raw, ok, err := s.kv.Get(ctx, Key(sessionKey))
	if err != nil {
		return domain.DefaultCriteria(), false, errors.Wrapf(err, "load draft criteria for %s", sessionKey)
	}
	if !ok {
		return domain.DefaultCriteria(), false, nil
	}
	var c domain.TrainSearchCriteria
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.DefaultCriteria(), false, errors.Wrapf(err, "decode draft criteria for %s", sessionKey)
	}
	if c.Validate() != nil {
		return domain.DefaultCriteria(), false, nil
	}
	return c, true, nil
}

func (s *Store) Save(ctx context.Context, sessionKey string, c domain.TrainSearchCriteria) error {
	if err := c.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encode draft criteria")
	}
	return errors.Wrapf(s.kv.Set(ctx, Key(sessionKey), raw, s.ttl), "save draft criteria for %s", sessionKey)
}
