// Package redis provides a Store on go-redis, for deployments sharing one
// cache across replicas. Generation membership is tracked in a Redis set so
// Activate can enumerate partitions without scanning the whole keyspace.
package redis

import (
	"context"
	"errors"
	"sort"

	goredis "github.com/redis/go-redis/v9"

	st "github.com/phyarch/shellcache/store"
)

var ErrNilClient = errors.New("redis store: nil client")

const gensKey = "shellcache:gens"

type Store struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ st.Store = (*Store)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this store exclusively owns the client
}

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Store{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

func entryKey(generation, key string) string {
	return "shellcache:" + generation + ":" + key
}

func (s *Store) Get(ctx context.Context, generation, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, entryKey(generation, key)).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (s *Store) Put(ctx context.Context, generation, key string, value []byte) error {
	_, err := s.rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, entryKey(generation, key), value, 0)
		p.SAdd(ctx, gensKey, generation)
		return nil
	})
	return err
}

func (s *Store) Delete(ctx context.Context, generation, key string) error {
	return s.rdb.Del(ctx, entryKey(generation, key)).Err()
}

func (s *Store) Generations(ctx context.Context) ([]string, error) {
	gens, err := s.rdb.SMembers(ctx, gensKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(gens)
	return gens, nil
}

// Drop scans the generation's prefix and deletes entries in batches, then
// removes the generation from the membership set.
func (s *Store) Drop(ctx context.Context, generation string) error {
	var cursor uint64
	prefix := entryKey(generation, "")
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, prefix+"*", 256).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return s.rdb.SRem(ctx, gensKey, generation).Err()
}

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (s *Store) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
