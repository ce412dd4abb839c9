package runstate

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	pkgredis "github.com/Adithya-Monish-Kumar-K/Content-Generation-Pipeline/pkg/redis"
)

const keyPrefix = "run:"

// KV is the subset of the Redis client the cache needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// RedisStore caches stage documents in Redis in front of a durable Store.
// Writes go to the backing store first; a failed cache write is logged and
// never fails the stage. Concurrent loads of the same document share one
// backing read.
type RedisStore struct {
	backing Store
	kv      KV
	isMiss  func(error) bool
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewRedisStore creates a RedisStore over client and backing.
func NewRedisStore(client *pkgredis.Client, backing Store, ttl time.Duration) *RedisStore {
	return newRedisStore(client, pkgredis.IsNilError, backing, ttl)
}

func newRedisStore(kv KV, isMiss func(error) bool, backing Store, ttl time.Duration) *RedisStore {
	return &RedisStore{
		backing: backing,
		kv:      kv,
		isMiss:  isMiss,
		ttl:     ttl,
		logger:  slog.Default().With("component", "runstate-cache"),
	}
}

func (s *RedisStore) Put(ctx context.Context, runID string, stage Stage, data []byte) error {
	if err := s.backing.Put(ctx, runID, stage, data); err != nil {
		return err
	}
	s.cache(ctx, key(runID, stage), data)
	return nil
}

func (s *RedisStore) Get(ctx context.Context, runID string, stage Stage) ([]byte, error) {
	k := key(runID, stage)
	if data, ok := s.lookup(ctx, k); ok {
		return data, nil
	}
	val, err, _ := s.group.Do(k, func() (any, error) {
		if data, ok := s.lookup(ctx, k); ok {
			return data, nil
		}
		data, err := s.backing.Get(ctx, runID, stage)
		if err != nil {
			return nil, err
		}
		s.cache(ctx, k, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return val.([]byte), nil
}

func (s *RedisStore) SetLatest(ctx context.Context, runID string) error {
	return s.backing.SetLatest(ctx, runID)
}

func (s *RedisStore) Latest(ctx context.Context) (string, error) {
	return s.backing.Latest(ctx)
}

// Invalidate drops every cached document of a run.
func (s *RedisStore) Invalidate(ctx context.Context, runID string) error {
	deleted, err := s.kv.FlushByPattern(ctx, keyPrefix+runID+":*")
	if err != nil {
		return fmt.Errorf("invalidating run %s: %w", runID, err)
	}
	s.logger.Info("cache invalidated", "run_id", runID, "keys_deleted", deleted)
	return nil
}

// Stats returns cache hit and miss counts.
func (s *RedisStore) Stats() (hits, misses int64) {
	return s.hits.Load(), s.misses.Load()
}

func (s *RedisStore) lookup(ctx context.Context, k string) ([]byte, bool) {
	data, err := s.kv.Get(ctx, k)
	if err != nil {
		if !s.isMiss(err) {
			s.logger.Error("cache get failed", "key", k, "error", err)
		}
		s.misses.Add(1)
		return nil, false
	}
	s.hits.Add(1)
	return data, true
}

func (s *RedisStore) cache(ctx context.Context, k string, data []byte) {
	if err := s.kv.Set(ctx, k, data, s.ttl); err != nil {
		s.logger.Error("cache set failed", "key", k, "error", err)
	}
}

func key(runID string, stage Stage) string {
	return fmt.Sprintf("%s%s:stage:%s", keyPrefix, runID, stage)
}
