// Package ristretto provides a cost-bounded Store on dgraph-io/ristretto.
// Ristretto cannot enumerate keys, so the adapter keeps a per-generation
// index of keys it has written; entries evicted under pressure read as
// misses but stay indexed until Drop.
package ristretto

import (
	"context"
	"errors"
	"sort"
	"sync"

	rc "github.com/dgraph-io/ristretto"

	st "github.com/phyarch/shellcache/store"
)

type Store struct {
	c *rc.Cache

	mu    sync.RWMutex
	index map[string]map[string]struct{} // generation -> keys written
}

var _ st.Store = (*Store)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

func New(cfg Config) (*Store, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Store{c: c, index: make(map[string]map[string]struct{})}, nil
}

func storageKey(generation, key string) string { return generation + "\x00" + key }

func (s *Store) Get(_ context.Context, generation, key string) ([]byte, bool, error) {
	v, ok := s.c.Get(storageKey(generation, key))
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		s.c.Del(storageKey(generation, key))
		return nil, false, nil
	}
	return b, true, nil
}

func (s *Store) Put(_ context.Context, generation, key string, value []byte) error {
	s.mu.Lock()
	part, ok := s.index[generation]
	if !ok {
		part = make(map[string]struct{})
		s.index[generation] = part
	}
	part[key] = struct{}{}
	s.mu.Unlock()

	s.c.Set(storageKey(generation, key), value, int64(len(value)))
	// make the write visible to an immediately following Get
	s.c.Wait()
	return nil
}

func (s *Store) Delete(_ context.Context, generation, key string) error {
	s.mu.Lock()
	if part, ok := s.index[generation]; ok {
		delete(part, key)
	}
	s.mu.Unlock()
	s.c.Del(storageKey(generation, key))
	return nil
}

func (s *Store) Generations(_ context.Context) ([]string, error) {
	s.mu.RLock()
	out := make([]string, 0, len(s.index))
	for g := range s.index {
		out = append(out, g)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out, nil
}

func (s *Store) Drop(_ context.Context, generation string) error {
	s.mu.Lock()
	part := s.index[generation]
	delete(s.index, generation)
	s.mu.Unlock()
	for k := range part {
		s.c.Del(storageKey(generation, k))
	}
	return nil
}

func (s *Store) Close(_ context.Context) error {
	s.c.Wait()
	s.c.Close()
	return nil
}

// Metrics exposes ristretto metrics if enabled (not part of store.Store).
func (s *Store) Metrics() *rc.Metrics { return s.c.Metrics }
