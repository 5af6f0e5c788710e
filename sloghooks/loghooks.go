// Package sloghooks logs shellcache events through slog, with sampling on
// the hot-path events so a busy shell cannot flood the logs.
package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/phyarch/shellcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	CacheHitEvery  uint64
	CacheMissEvery uint64
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr  atomic.Uint64
	missCtr atomic.Uint64
}

var _ shellcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) InstallStart(generation string, assets int) {
	if h.l == nil {
		return
	}
	h.l.Info("shellcache.install_start",
		"generation", generation,
		"assets", assets)
}

func (h *Hooks) InstallDone(generation string, err error) {
	if h.l == nil {
		return
	}
	if err != nil {
		h.l.Error("shellcache.install_aborted",
			"generation", generation,
			"err", err)
		return
	}
	h.l.Info("shellcache.install_done", "generation", generation)
}

func (h *Hooks) ActivateDone(generation string, dropped int) {
	if h.l == nil {
		return
	}
	h.l.Info("shellcache.activate_done",
		"generation", generation,
		"dropped", dropped)
}

func (h *Hooks) CacheHit(path string) {
	if h.l == nil || !sample(h.opts.CacheHitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("shellcache.cache_hit", "path", path)
}

func (h *Hooks) CacheMiss(path string) {
	if h.l == nil || !sample(h.opts.CacheMissEvery, &h.missCtr) {
		return
	}
	h.l.Debug("shellcache.cache_miss", "path", path)
}

func (h *Hooks) FallbackServed(path, kind string) {
	if h.l == nil {
		return
	}
	h.l.Warn("shellcache.fallback_served",
		"path", path,
		"kind", kind)
}

func (h *Hooks) RefreshFailed(path string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("shellcache.refresh_failed",
		"path", path,
		"err", err)
}

func (h *Hooks) SelfHeal(path, reason string) {
	if h.l == nil {
		return
	}
	h.l.Warn("shellcache.self_heal",
		"path", path,
		"reason", reason)
}
