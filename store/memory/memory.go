// Package memory provides an in-process Store. It is the default backend
// and the one used by the test suites.
package memory

import (
	"context"
	"sort"
	"sync"

	st "github.com/phyarch/shellcache/store"
)

type Store struct {
	mu   sync.RWMutex
	gens map[string]map[string][]byte
}

var _ st.Store = (*Store)(nil)

func New() *Store {
	return &Store{gens: make(map[string]map[string][]byte)}
}

func (s *Store) Get(_ context.Context, generation, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	part, ok := s.gens[generation]
	if !ok {
		return nil, false, nil
	}
	v, ok := part[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *Store) Put(_ context.Context, generation, key string, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	s.mu.Lock()
	part, ok := s.gens[generation]
	if !ok {
		part = make(map[string][]byte)
		s.gens[generation] = part
	}
	part[key] = cp
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(_ context.Context, generation, key string) error {
	s.mu.Lock()
	if part, ok := s.gens[generation]; ok {
		delete(part, key)
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) Generations(_ context.Context) ([]string, error) {
	s.mu.RLock()
	out := make([]string, 0, len(s.gens))
	for g := range s.gens {
		out = append(out, g)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out, nil
}

func (s *Store) Drop(_ context.Context, generation string) error {
	s.mu.Lock()
	delete(s.gens, generation)
	s.mu.Unlock()
	return nil
}

func (s *Store) Close(_ context.Context) error { return nil }

// Keys returns the entry keys of a generation in lexical order. Test helper;
// not part of the Store contract.
func (s *Store) Keys(generation string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	part, ok := s.gens[generation]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(part))
	for k := range part {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
