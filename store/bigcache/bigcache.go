// Package bigcache provides a memory-bounded Store on allegro/bigcache.
// Entries evicted by BigCache under pressure simply read as misses.
package bigcache

import (
	"context"
	"sort"
	"strings"
	"time"

	bc "github.com/allegro/bigcache/v3"

	st "github.com/phyarch/shellcache/store"
)

// sep joins generation and entry key; request paths never contain NUL.
const sep = "\x00"

type Store struct {
	c *bc.BigCache
}

var _ st.Store = (*Store)(nil)

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(cfg Config) (*Store, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	return &Store{c: c}, nil
}

func (s *Store) Get(_ context.Context, generation, key string) ([]byte, bool, error) {
	b, err := s.c.Get(generation + sep + key)
	if err == bc.ErrEntryNotFound {
		return nil, false, nil
	}
	return b, err == nil, err
}

func (s *Store) Put(_ context.Context, generation, key string, value []byte) error {
	return s.c.Set(generation+sep+key, value)
}

func (s *Store) Delete(_ context.Context, generation, key string) error {
	err := s.c.Delete(generation + sep + key)
	if err == bc.ErrEntryNotFound {
		return nil
	}
	return err
}

func (s *Store) Generations(_ context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	it := s.c.Iterator()
	for it.SetNext() {
		info, err := it.Value()
		if err != nil {
			continue // entry evicted mid-iteration
		}
		if g, _, ok := strings.Cut(info.Key(), sep); ok {
			seen[g] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Drop(_ context.Context, generation string) error {
	prefix := generation + sep
	var doomed []string
	it := s.c.Iterator()
	for it.SetNext() {
		info, err := it.Value()
		if err != nil {
			continue
		}
		if strings.HasPrefix(info.Key(), prefix) {
			doomed = append(doomed, info.Key())
		}
	}
	for _, k := range doomed {
		if err := s.c.Delete(k); err != nil && err != bc.ErrEntryNotFound {
			return err
		}
	}
	return nil
}

func (s *Store) Close(_ context.Context) error { return s.c.Close() }
