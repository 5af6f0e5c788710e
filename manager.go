package shellcache

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	cd "github.com/phyarch/shellcache/codec"
	"github.com/phyarch/shellcache/fetch"
	"github.com/phyarch/shellcache/genreg"
	"github.com/phyarch/shellcache/internal/wire"
	st "github.com/phyarch/shellcache/store"
)

const (
	defaultOfflinePage    = "/offline.html"
	defaultInstallWorkers = 4
	refreshTimeout        = 30 * time.Second
)

type manager struct {
	gen         string
	store       st.Store
	fetcher     fetch.Fetcher
	codec       cd.Codec[Response]
	reg         genreg.Registry
	log         Logger
	hooks       Hooks
	offlinePage string
	workers     int
	refresh     bool

	// classification set; replaced by a successful Install
	assetMu sync.RWMutex
	assets  AssetSet

	installMu sync.Mutex // Install/Activate are not re-entrant

	refreshWg sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

func newManager(opts Options) (*manager, error) {
	if opts.Generation == "" {
		return nil, fmt.Errorf("shellcache: generation is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("shellcache: store is required")
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("shellcache: fetcher is required")
	}

	m := &manager{
		gen:     opts.Generation,
		store:   opts.Store,
		fetcher: opts.Fetcher,
		assets:  opts.Assets,
		refresh: !opts.DisableRefresh,
	}

	// defaults
	if opts.Codec != nil {
		m.codec = opts.Codec
	} else {
		m.codec = cd.JSON[Response]{}
	}
	if opts.Registry != nil {
		m.reg = opts.Registry
	} else {
		m.reg = genreg.NewLocal()
	}
	m.log = coalesce[Logger](opts.Logger, NopLogger{})
	m.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	m.offlinePage = NormalizePath(coalesce(opts.OfflinePage, defaultOfflinePage))
	m.workers = coalesce(opts.InstallConcurrency, defaultInstallWorkers)

	return m, nil
}

func (m *manager) Generation() string { return m.gen }

func (m *manager) Install(ctx context.Context, assets AssetSet) error {
	m.installMu.Lock()
	defer m.installMu.Unlock()

	m.hooks.InstallStart(m.gen, assets.Len())
	m.log.Info("install start", Fields{"generation": m.gen, "assets": assets.Len()})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for _, p := range assets.Paths() {
		p := p
		g.Go(func() error {
			res, err := m.fetcher.Do(gctx, http.MethodGet, p)
			if err != nil {
				return &InstallError{Generation: m.gen, Asset: p, Err: err}
			}
			if !res.OK() {
				return &InstallError{Generation: m.gen, Asset: p, Err: &ErrBadStatus{Status: res.Status}}
			}
			if err := m.putEntry(gctx, p, res); err != nil {
				return &InstallError{Generation: m.gen, Asset: p, Err: err}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// all-or-nothing: nothing from this attempt may become current.
		// The drop runs on a fresh context; ctx may already be canceled.
		if derr := m.store.Drop(context.Background(), m.gen); derr != nil {
			m.log.Error("install rollback failed", Fields{"generation": m.gen, "err": derr})
		}
		m.hooks.InstallDone(m.gen, err)
		return err
	}

	m.assetMu.Lock()
	m.assets = assets
	m.assetMu.Unlock()

	m.hooks.InstallDone(m.gen, nil)
	m.log.Info("install done", Fields{"generation": m.gen})
	return nil
}

func (m *manager) Activate(ctx context.Context) error {
	m.installMu.Lock()
	defer m.installMu.Unlock()

	gens, err := m.store.Generations(ctx)
	if err != nil {
		return fmt.Errorf("activate %q: list generations: %w", m.gen, err)
	}

	dropped := 0
	for _, g := range gens {
		if g == m.gen {
			continue
		}
		if err := m.store.Drop(ctx, g); err != nil {
			return fmt.Errorf("activate %q: drop %q: %w", m.gen, g, err)
		}
		dropped++
	}

	if err := m.reg.SetCurrent(ctx, m.gen); err != nil {
		return fmt.Errorf("activate %q: set current: %w", m.gen, err)
	}

	m.hooks.ActivateDone(m.gen, dropped)
	m.log.Info("activate done", Fields{"generation": m.gen, "dropped": dropped})
	return nil
}

func (m *manager) Handle(ctx context.Context, req Request) (Response, error) {
	// Mutating methods bypass caching entirely.
	if !isRead(req.Method) {
		return m.fetcher.Do(ctx, req.Method, req.Path)
	}

	p := NormalizePath(req.Path)
	if m.isStatic(p) {
		return m.handleStatic(ctx, req, p)
	}
	return m.handleDynamic(ctx, req, p)
}

// handleStatic is cache-first: a hit is returned without a network
// round-trip and revalidated in the background for next time.
func (m *manager) handleStatic(ctx context.Context, req Request, p string) (Response, error) {
	if res, ok := m.lookup(ctx, p); ok {
		m.hooks.CacheHit(p)
		m.spawnRefresh(p)
		return res, nil
	}
	m.hooks.CacheMiss(p)

	res, err := m.fetcher.Do(ctx, http.MethodGet, p)
	if err != nil {
		m.log.Debug("static fetch failed", Fields{"path": p, "err": err})
		return m.degrade(ctx, req, p), nil
	}
	if res.OK() {
		if perr := m.putEntry(ctx, p, res); perr != nil {
			m.log.Warn("static store failed", Fields{"path": p, "err": perr})
		}
	}
	return res, nil
}

// handleDynamic is network-first: successful responses are cached
// opportunistically and served again only as offline fallback.
func (m *manager) handleDynamic(ctx context.Context, req Request, p string) (Response, error) {
	res, err := m.fetcher.Do(ctx, http.MethodGet, p)
	if err != nil {
		m.log.Debug("dynamic fetch failed", Fields{"path": p, "err": err})
		return m.degrade(ctx, req, p), nil
	}
	if res.OK() {
		if perr := m.putEntry(ctx, p, res); perr != nil {
			m.log.Warn("dynamic store failed", Fields{"path": p, "err": perr})
		}
	}
	return res, nil
}

// degrade converts a network failure into something renderable: the offline
// page for navigations, the last cached entry for sub-resources, and an
// empty 503 as the terminal fallback. It never returns an error.
func (m *manager) degrade(ctx context.Context, req Request, p string) Response {
	if req.Navigate {
		if res, ok := m.lookup(ctx, m.offlinePage); ok {
			m.hooks.FallbackServed(p, "offline_page")
			return res
		}
	} else if res, ok := m.lookup(ctx, p); ok {
		m.hooks.FallbackServed(p, "stale_dynamic")
		return res
	}
	m.hooks.FallbackServed(p, "unavailable")
	return unavailable()
}

func (m *manager) Close(ctx context.Context) error {
	m.closeOnce.Do(func() {
		m.refreshWg.Wait()
		if m.reg != nil {
			_ = m.reg.Close(ctx)
		}
		if m.store != nil {
			m.closeErr = m.store.Close(ctx)
		}
	})
	return m.closeErr
}

// lookup reads and validates one cached entry. Storage failures read as
// misses; corrupt, foreign-generation or undecodable entries are deleted
// (self-heal) and read as misses.
func (m *manager) lookup(ctx context.Context, p string) (Response, bool) {
	raw, ok, err := m.store.Get(ctx, m.gen, p)
	if err != nil {
		m.log.Warn("store get error", Fields{"path": p, "err": err})
		return Response{}, false
	}
	if !ok {
		return Response{}, false
	}

	ent, err := wire.Decode(raw)
	if err != nil {
		m.selfHeal(ctx, p, "corrupt")
		return Response{}, false
	}
	if ent.Generation != m.gen {
		m.selfHeal(ctx, p, "generation_mismatch")
		return Response{}, false
	}
	res, err := m.codec.Decode(ent.Payload)
	if err != nil {
		m.selfHeal(ctx, p, "value_decode")
		return Response{}, false
	}
	return res, true
}

// putEntry writes one whole-payload entry; partial writes never reach the
// permanent slot.
func (m *manager) putEntry(ctx context.Context, p string, res Response) error {
	payload, err := m.codec.Encode(res)
	if err != nil {
		return fmt.Errorf("encode %q: %w", p, err)
	}
	frame, err := wire.Encode(wire.Entry{
		Generation: m.gen,
		FetchedAt:  time.Now().UnixNano(),
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("frame %q: %w", p, err)
	}
	return m.store.Put(ctx, m.gen, p, frame)
}

func (m *manager) selfHeal(ctx context.Context, p, reason string) {
	_ = m.store.Delete(ctx, m.gen, p)
	m.hooks.SelfHeal(p, reason)
}

// spawnRefresh revalidates a static entry after a cache hit without
// delaying the response. Close waits for in-flight refreshes.
func (m *manager) spawnRefresh(p string) {
	if !m.refresh {
		return
	}
	m.refreshWg.Add(1)
	go func() {
		defer m.refreshWg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		res, err := m.fetcher.Do(ctx, http.MethodGet, p)
		if err != nil {
			m.hooks.RefreshFailed(p, err)
			return
		}
		if !res.OK() {
			m.hooks.RefreshFailed(p, &ErrBadStatus{Status: res.Status})
			return
		}
		if err := m.putEntry(ctx, p, res); err != nil {
			m.log.Warn("refresh store failed", Fields{"path": p, "err": err})
		}
	}()
}

func (m *manager) isStatic(p string) bool {
	m.assetMu.RLock()
	defer m.assetMu.RUnlock()
	return m.assets.Contains(p)
}

func isRead(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, "":
		return true
	default:
		return false
	}
}
