package genreg

import (
	"context"
	"sync"
	"time"
)

// Local keeps the current generation in-process (default).
type Local struct {
	mu        sync.RWMutex
	current   string
	updatedAt time.Time
}

var _ Registry = (*Local)(nil)

func NewLocal() *Local { return &Local{} }

func (r *Local) Current(_ context.Context) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, nil
}

func (r *Local) SetCurrent(_ context.Context, name string) error {
	r.mu.Lock()
	r.current = name
	r.updatedAt = time.Now()
	r.mu.Unlock()
	return nil
}

// ActivatedAt returns when the current generation was promoted; zero if
// never. Not part of the Registry contract.
func (r *Local) ActivatedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updatedAt
}

func (r *Local) Close(context.Context) error { return nil }
