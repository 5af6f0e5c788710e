// Package asynchook decouples hook consumers from the request path: events
// are queued and delivered by worker goroutines; when the queue is full the
// event is dropped rather than blocking Handle.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{CacheHitEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	mgr, _ := shellcache.New(shellcache.Options{
//	    Generation: "phyarch-nexus-v1.1",
//	    Store:      store,
//	    Fetcher:    fetcher,
//	    Hooks:      hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/phyarch/shellcache"
)

type Hooks struct {
	inner shellcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ shellcache.Hooks = (*Hooks)(nil)

func New(inner shellcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) InstallStart(gen string, n int)  { h.try(func() { h.inner.InstallStart(gen, n) }) }
func (h *Hooks) InstallDone(gen string, e error) { h.try(func() { h.inner.InstallDone(gen, e) }) }
func (h *Hooks) ActivateDone(gen string, n int)  { h.try(func() { h.inner.ActivateDone(gen, n) }) }
func (h *Hooks) CacheHit(p string)               { h.try(func() { h.inner.CacheHit(p) }) }
func (h *Hooks) CacheMiss(p string)              { h.try(func() { h.inner.CacheMiss(p) }) }
func (h *Hooks) FallbackServed(p, kind string)   { h.try(func() { h.inner.FallbackServed(p, kind) }) }
func (h *Hooks) RefreshFailed(p string, e error) { h.try(func() { h.inner.RefreshFailed(p, e) }) }
func (h *Hooks) SelfHeal(p, reason string)       { h.try(func() { h.inner.SelfHeal(p, reason) }) }
