package kv

import (
	"context"
	"errors"

	"github.com/baechuer/real-time-ressys/client-core/internal/metrics"
	zlog "github.com/rs/zerolog/log"
)

// ErrNotConfigured is returned by backends constructed without a client.
var ErrNotConfigured = errors.New("kv backend not configured")

// Backend is a durable string-keyed store. Implementations report failures;
// Store decides what to do with them.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Store is the persistent key-value store the cache and session layers sit
// on. Backend errors never reach callers: reads degrade to a miss and writes
// to a no-op, so the app keeps working with a cold or broken store.
// Same-key writes are last-write-wins.
type Store struct {
	backend Backend
}

func NewStore(b Backend) *Store {
	return &Store{backend: b}
}

func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	if s == nil || s.backend == nil {
		return "", false
	}
	v, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		metrics.StorageErrors.WithLabelValues("get").Inc()
		zlog.Warn().Err(err).Str("key", key).Msg("kv get failed")
		return "", false
	}
	return v, ok
}

func (s *Store) Set(ctx context.Context, key, value string) {
	if s == nil || s.backend == nil {
		return
	}
	if err := s.backend.Set(ctx, key, value); err != nil {
		metrics.StorageErrors.WithLabelValues("set").Inc()
		zlog.Warn().Err(err).Str("key", key).Msg("kv set failed")
	}
}

func (s *Store) Remove(ctx context.Context, key string) {
	if s == nil || s.backend == nil {
		return
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		metrics.StorageErrors.WithLabelValues("remove").Inc()
		zlog.Warn().Err(err).Str("key", key).Msg("kv remove failed")
	}
}

func (s *Store) Clear(ctx context.Context) {
	if s == nil || s.backend == nil {
		return
	}
	if err := s.backend.Clear(ctx); err != nil {
		metrics.StorageErrors.WithLabelValues("clear").Inc()
		zlog.Warn().Err(err).Msg("kv clear failed")
	}
}
