package shellcache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	cd "github.com/phyarch/shellcache/codec"
	"github.com/phyarch/shellcache/genreg"
	"github.com/phyarch/shellcache/internal/wire"
	"github.com/phyarch/shellcache/store/memory"
)

// fakeOrigin scripts the upstream: fixed responses per path, a switch to
// simulate total network failure, and a call log.
type fakeOrigin struct {
	mu      sync.Mutex
	routes  map[string]Response
	offline bool
	calls   []string
}

func newFakeOrigin(routes map[string]Response) *fakeOrigin {
	if routes == nil {
		routes = make(map[string]Response)
	}
	return &fakeOrigin{routes: routes}
}

func (f *fakeOrigin) Do(_ context.Context, method, path string) (Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method+" "+path)
	if f.offline {
		return Response{}, errors.New("network unreachable")
	}
	if res, ok := f.routes[path]; ok {
		return res, nil
	}
	return Response{Status: http.StatusNotFound}, nil
}

func (f *fakeOrigin) setOffline(v bool) {
	f.mu.Lock()
	f.offline = v
	f.mu.Unlock()
}

func (f *fakeOrigin) set(path string, res Response) {
	f.mu.Lock()
	f.routes[path] = res
	f.mu.Unlock()
}

func (f *fakeOrigin) countCalls(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeOrigin) resetCalls() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

// recHooks records emitted events as "name:args" strings.
type recHooks struct {
	mu     sync.Mutex
	events []string
}

func (h *recHooks) add(e string) {
	h.mu.Lock()
	h.events = append(h.events, e)
	h.mu.Unlock()
}

func (h *recHooks) has(e string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, got := range h.events {
		if got == e {
			return true
		}
	}
	return false
}

func (h *recHooks) InstallStart(gen string, n int) { h.add(fmt.Sprintf("install_start:%s:%d", gen, n)) }
func (h *recHooks) InstallDone(gen string, err error) {
	h.add("install_done:" + gen + ":" + okerr(err))
}
func (h *recHooks) ActivateDone(gen string, drop int) {
	h.add(fmt.Sprintf("activate:%s:%d", gen, drop))
}
func (h *recHooks) CacheHit(p string)                 { h.add("hit:" + p) }
func (h *recHooks) CacheMiss(p string)                { h.add("miss:" + p) }
func (h *recHooks) FallbackServed(p, kind string)     { h.add("fallback:" + p + ":" + kind) }
func (h *recHooks) RefreshFailed(p string, err error) { h.add("refresh_failed:" + p) }
func (h *recHooks) SelfHeal(p, reason string)         { h.add("selfheal:" + p + ":" + reason) }

func okerr(err error) string {
	if err != nil {
		return "err"
	}
	return "ok"
}

var shellAssets = []string{"/", "/index.html", "/app.js", "/offline.html"}

func shellRoutes() map[string]Response {
	routes := make(map[string]Response)
	for _, p := range shellAssets {
		routes[p] = Response{
			Status: 200,
			Header: map[string]string{"Content-Type": "text/html"},
			Body:   []byte("asset:" + p),
		}
	}
	return routes
}

func newTestManager(t *testing.T, gen string, mem *memory.Store, origin *fakeOrigin, mut func(*Options)) Manager {
	t.Helper()
	opts := Options{
		Generation:     gen,
		Store:          mem,
		Fetcher:        origin,
		Assets:         NewAssetSet(shellAssets...),
		DisableRefresh: true,
	}
	if mut != nil {
		mut(&opts)
	}
	m, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

// installed returns a ready manager: installed, activated, call log cleared.
func installed(t *testing.T, gen string, mem *memory.Store, origin *fakeOrigin, mut func(*Options)) Manager {
	t.Helper()
	ctx := context.Background()
	m := newTestManager(t, gen, mem, origin, mut)
	if err := m.Install(ctx, NewAssetSet(shellAssets...)); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := m.Activate(ctx); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	origin.resetCalls()
	return m
}

// ==============================
// Classification
// ==============================

// Mutating methods never touch the cache: pass-through only.
func TestMutatingMethodBypassesCache(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	origin := newFakeOrigin(map[string]Response{
		"/api/submit": {Status: 201, Body: []byte("created")},
	})
	m := newTestManager(t, "v1", mem, origin, nil)
	defer m.Close(ctx)

	res, err := m.Handle(ctx, Request{Method: http.MethodPost, Path: "/api/submit"})
	if err != nil || res.Status != 201 {
		t.Fatalf("POST passthrough: res=%+v err=%v", res, err)
	}
	if got := origin.countCalls("POST /api/submit"); got != 1 {
		t.Fatalf("expected 1 POST call, got %d", got)
	}
	if keys := mem.Keys("v1"); len(keys) != 0 {
		t.Fatalf("mutating method wrote to cache: %v", keys)
	}

	// Transport errors on mutating methods propagate untouched.
	origin.setOffline(true)
	if _, err := m.Handle(ctx, Request{Method: http.MethodPost, Path: "/api/submit"}); err == nil {
		t.Fatalf("expected transport error for mutating method while offline")
	}
}

func TestAssetMatchingIsExact(t *testing.T) {
	s := NewAssetSet("/index.html", "/")
	if !s.Contains("/index.html") || !s.Contains("/") {
		t.Fatalf("expected members to match")
	}
	// The suffix-matching bug this design removes: a nested path must not
	// match a shell asset.
	if s.Contains("/evil/index.html") {
		t.Fatalf("suffix match must not classify /evil/index.html as static")
	}
	if !s.Contains("/index.html?v=2") {
		t.Fatalf("query strings are not cache key material")
	}
	if !s.Contains("index.html") {
		t.Fatalf("normalization should add the leading slash")
	}
}

// ==============================
// Install / Activate lifecycle
// ==============================

// After Install+Activate, static assets are served from cache with no
// network round-trip.
func TestCacheFirstAfterInstallActivate(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	origin := newFakeOrigin(shellRoutes())
	hooks := &recHooks{}
	m := installed(t, "v1", mem, origin, func(o *Options) { o.Hooks = hooks })
	defer m.Close(ctx)

	res, err := m.Handle(ctx, Request{Method: http.MethodGet, Path: "/index.html"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Status != 200 || string(res.Body) != "asset:/index.html" {
		t.Fatalf("unexpected cached response: %+v", res)
	}
	if got := origin.countCalls("GET /index.html"); got != 0 {
		t.Fatalf("cache-first hit must not fetch; got %d calls", got)
	}
	if !hooks.has("hit:/index.html") {
		t.Fatalf("expected cache-hit event, got %v", hooks.events)
	}
}

// Activate leaves exactly one generation present, for any number of
// pre-existing generations.
func TestActivateEvictsAllOtherGenerations(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	origin := newFakeOrigin(shellRoutes())

	// Seed garbage generations from older builds.
	for _, g := range []string{"phyarch-nexus-v0.9", "phyarch-nexus-v1.0"} {
		if err := mem.Put(ctx, g, "/", []byte("stale")); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	hooks := &recHooks{}
	reg := genreg.NewLocal()
	m := installed(t, "phyarch-nexus-v1.1", mem, origin, func(o *Options) {
		o.Hooks = hooks
		o.Registry = reg
	})
	defer m.Close(ctx)

	gens, err := mem.Generations(ctx)
	if err != nil {
		t.Fatalf("Generations: %v", err)
	}
	if len(gens) != 1 || gens[0] != "phyarch-nexus-v1.1" {
		t.Fatalf("expected exactly the new generation, got %v", gens)
	}
	cur, err := reg.Current(ctx)
	if err != nil || cur != "phyarch-nexus-v1.1" {
		t.Fatalf("registry current=%q err=%v", cur, err)
	}
	if !hooks.has("activate:phyarch-nexus-v1.1:2") {
		t.Fatalf("expected activate event with 2 dropped, got %v", hooks.events)
	}
}

// Install is atomic: if one of N assets fails, zero entries from the
// attempted generation survive, and the old generation keeps serving.
func TestInstallAtomicOnAssetFailure(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	origin := newFakeOrigin(shellRoutes())

	// Previously current generation.
	old := installed(t, "v1.0", mem, origin, nil)
	defer old.Close(ctx)

	// New build: /index.html is broken upstream.
	origin.set("/index.html", Response{Status: 500, Body: []byte("boom")})
	next := newTestManager(t, "v1.1", mem, origin, nil)
	defer next.Close(ctx)

	err := next.Install(ctx, NewAssetSet("/", "/index.html"))
	if err == nil {
		t.Fatalf("expected install failure")
	}
	var ie *InstallError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InstallError, got %T: %v", err, err)
	}
	if ie.Asset != "/index.html" {
		t.Fatalf("expected failing asset /index.html, got %q", ie.Asset)
	}
	var bs *ErrBadStatus
	if !errors.As(err, &bs) || bs.Status != 500 {
		t.Fatalf("expected ErrBadStatus(500) in chain, got %v", err)
	}

	gens, _ := mem.Generations(ctx)
	for _, g := range gens {
		if g == "v1.1" {
			t.Fatalf("failed install left entries behind: %v", gens)
		}
	}

	// Old generation still serves the shell, even with the network gone.
	origin.setOffline(true)
	res, err := old.Handle(ctx, Request{Method: http.MethodGet, Path: "/", Navigate: true})
	if err != nil || string(res.Body) != "asset:/" {
		t.Fatalf("old generation should still serve /: res=%+v err=%v", res, err)
	}
}

// Re-running Install is safe: same entries, no error, no duplicates.
func TestInstallIdempotent(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	origin := newFakeOrigin(shellRoutes())
	m := installed(t, "v1", mem, origin, nil)
	defer m.Close(ctx)

	if err := m.Install(ctx, NewAssetSet(shellAssets...)); err != nil {
		t.Fatalf("second Install: %v", err)
	}
	if got, want := len(mem.Keys("v1")), len(shellAssets); got != want {
		t.Fatalf("expected %d entries after re-install, got %d", want, got)
	}
}

// ==============================
// Offline degradation
// ==============================

// Failed navigations serve the offline page with its original status.
func TestOfflineNavigationServesOfflinePage(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	origin := newFakeOrigin(shellRoutes())
	hooks := &recHooks{}
	m := installed(t, "v1", mem, origin, func(o *Options) { o.Hooks = hooks })
	defer m.Close(ctx)

	origin.setOffline(true)
	res, err := m.Handle(ctx, Request{Method: http.MethodGet, Path: "/projects/42", Navigate: true})
	if err != nil {
		t.Fatalf("Handle must not error for navigations: %v", err)
	}
	if res.Status != 200 || string(res.Body) != "asset:/offline.html" {
		t.Fatalf("expected cached offline page, got %+v", res)
	}
	if !hooks.has("fallback:/projects/42:offline_page") {
		t.Fatalf("expected offline_page fallback event, got %v", hooks.events)
	}
}

// Failed sub-resources degrade to an empty 503, never a transport error.
func TestOfflineSubresourceReturns503(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	origin := newFakeOrigin(shellRoutes())
	hooks := &recHooks{}
	m := installed(t, "v1", mem, origin, func(o *Options) { o.Hooks = hooks })
	defer m.Close(ctx)

	origin.setOffline(true)
	res, err := m.Handle(ctx, Request{Method: http.MethodGet, Path: "/api/data"})
	if err != nil {
		t.Fatalf("Handle must not error for sub-resources: %v", err)
	}
	if res.Status != http.StatusServiceUnavailable || len(res.Body) != 0 {
		t.Fatalf("expected empty 503, got %+v", res)
	}
	if !hooks.has("fallback:/api/data:unavailable") {
		t.Fatalf("expected unavailable fallback event, got %v", hooks.events)
	}
}

// A dynamic response cached opportunistically is served as stale fallback
// once the network goes away.
func TestStaleDynamicFallback(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	origin := newFakeOrigin(shellRoutes())
	origin.set("/api/data", Response{Status: 200, Body: []byte(`{"bodies":3}`)})
	hooks := &recHooks{}
	m := installed(t, "v1", mem, origin, func(o *Options) { o.Hooks = hooks })
	defer m.Close(ctx)

	if _, err := m.Handle(ctx, Request{Method: http.MethodGet, Path: "/api/data"}); err != nil {
		t.Fatalf("warm dynamic: %v", err)
	}

	origin.setOffline(true)
	res, err := m.Handle(ctx, Request{Method: http.MethodGet, Path: "/api/data"})
	if err != nil || string(res.Body) != `{"bodies":3}` {
		t.Fatalf("expected stale dynamic entry, got res=%+v err=%v", res, err)
	}
	if !hooks.has("fallback:/api/data:stale_dynamic") {
		t.Fatalf("expected stale_dynamic fallback event, got %v", hooks.events)
	}
}

// Missing offline page degrades navigations to the empty 503 instead of an
// unhandled failure.
func TestOfflineNavigationWithoutOfflinePage(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	origin := newFakeOrigin(shellRoutes())
	m := newTestManager(t, "v1", mem, origin, nil)
	defer m.Close(ctx)

	origin.setOffline(true)
	res, err := m.Handle(ctx, Request{Method: http.MethodGet, Path: "/", Navigate: true})
	if err != nil {
		t.Fatalf("Handle must not error: %v", err)
	}
	if res.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %+v", res)
	}
}

// ==============================
// Concurrency
// ==============================

// Concurrent Handle calls for the same dynamic identifier: last write wins,
// the stored entry stays decodable.
func TestConcurrentDynamicWritesNoCorruption(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	origin := newFakeOrigin(shellRoutes())
	origin.set("/api/feed", Response{Status: 200, Body: []byte("feed-a")})
	m := installed(t, "v1", mem, origin, nil)
	defer m.Close(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Handle(ctx, Request{Method: http.MethodGet, Path: "/api/feed"}); err != nil {
				t.Errorf("Handle: %v", err)
			}
		}()
	}
	wg.Wait()

	origin.setOffline(true)
	res, err := m.Handle(ctx, Request{Method: http.MethodGet, Path: "/api/feed"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if string(res.Body) != "feed-a" {
		t.Fatalf("cached entry corrupted: %+v", res)
	}
}

// ==============================
// Self-heal
// ==============================

func TestSelfHealOnCorruptEntry(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	origin := newFakeOrigin(shellRoutes())
	hooks := &recHooks{}
	m := installed(t, "v1", mem, origin, func(o *Options) { o.Hooks = hooks })
	defer m.Close(ctx)

	// Clobber a cached asset with bytes that are not wire format.
	if err := mem.Put(ctx, "v1", "/app.js", []byte("not-wire-format")); err != nil {
		t.Fatalf("inject: %v", err)
	}

	res, err := m.Handle(ctx, Request{Method: http.MethodGet, Path: "/app.js"})
	if err != nil || string(res.Body) != "asset:/app.js" {
		t.Fatalf("expected refetched asset, got res=%+v err=%v", res, err)
	}
	if !hooks.has("selfheal:/app.js:corrupt") {
		t.Fatalf("expected corrupt self-heal event, got %v", hooks.events)
	}
	if got := origin.countCalls("GET /app.js"); got != 1 {
		t.Fatalf("expected refetch after self-heal, got %d calls", got)
	}
}

// An entry recorded under a foreign generation is deleted and read as a
// miss, even when the frame itself is valid.
func TestSelfHealOnForeignGeneration(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	origin := newFakeOrigin(shellRoutes())
	hooks := &recHooks{}
	m := installed(t, "v1", mem, origin, func(o *Options) { o.Hooks = hooks })
	defer m.Close(ctx)

	payload, err := cd.JSON[Response]{}.Encode(Response{Status: 200, Body: []byte("old")})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	frame, err := wire.Encode(wire.Entry{Generation: "v0", FetchedAt: 1, Payload: payload})
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if err := mem.Put(ctx, "v1", "/index.html", frame); err != nil {
		t.Fatalf("inject: %v", err)
	}

	res, err := m.Handle(ctx, Request{Method: http.MethodGet, Path: "/index.html"})
	if err != nil || string(res.Body) != "asset:/index.html" {
		t.Fatalf("expected refetched asset, got res=%+v err=%v", res, err)
	}
	if !hooks.has("selfheal:/index.html:generation_mismatch") {
		t.Fatalf("expected generation_mismatch self-heal, got %v", hooks.events)
	}
}

// ==============================
// Background refresh
// ==============================

// A cache hit answers from cache and revalidates in the background; the
// refreshed bytes are visible on the next hit.
func TestBackgroundRefreshUpdatesEntry(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	origin := newFakeOrigin(shellRoutes())
	m := installed(t, "v1", mem, origin, func(o *Options) { o.DisableRefresh = false })

	origin.set("/app.js", Response{Status: 200, Body: []byte("asset:/app.js#2")})

	res, err := m.Handle(ctx, Request{Method: http.MethodGet, Path: "/app.js"})
	if err != nil || string(res.Body) != "asset:/app.js" {
		t.Fatalf("hit should serve the cached copy: res=%+v err=%v", res, err)
	}

	// Close waits for the in-flight refresh.
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := origin.countCalls("GET /app.js"); got != 1 {
		t.Fatalf("expected exactly one refresh fetch, got %d", got)
	}

	raw, ok, err := mem.Get(ctx, "v1", "/app.js")
	if err != nil || !ok {
		t.Fatalf("refreshed entry missing: ok=%v err=%v", ok, err)
	}
	ent, err := wire.Decode(raw)
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	got, err := cd.JSON[Response]{}.Decode(ent.Payload)
	if err != nil || string(got.Body) != "asset:/app.js#2" {
		t.Fatalf("expected refreshed payload, got %+v err=%v", got, err)
	}
}

func TestRefreshFailureEmitsHook(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	origin := newFakeOrigin(shellRoutes())
	hooks := &recHooks{}
	m := installed(t, "v1", mem, origin, func(o *Options) {
		o.DisableRefresh = false
		o.Hooks = hooks
	})

	origin.setOffline(true)
	if _, err := m.Handle(ctx, Request{Method: http.MethodGet, Path: "/app.js"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !hooks.has("refresh_failed:/app.js") {
		t.Fatalf("expected refresh_failed event, got %v", hooks.events)
	}
}

// ==============================
// Options validation
// ==============================

func TestNewRequiresCoreOptions(t *testing.T) {
	mem := memory.New()
	origin := newFakeOrigin(nil)
	cases := []struct {
		name string
		opts Options
	}{
		{"missing generation", Options{Store: mem, Fetcher: origin}},
		{"missing store", Options{Generation: "v1", Fetcher: origin}},
		{"missing fetcher", Options{Generation: "v1", Store: mem}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.opts); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"":                  "/",
		"/":                 "/",
		"index.html":        "/index.html",
		"/a/../b":           "/b",
		"/a//b/":            "/a/b",
		"/styles.css?v=3":   "/styles.css",
		"/page#section":     "/page",
		"/deep/./path/file": "/deep/path/file",
	}
	for in, want := range cases {
		if got := NormalizePath(in); got != want {
			t.Errorf("NormalizePath(%q) = %q, want %q", in, got, want)
		}
	}
	if !strings.HasPrefix(NormalizePath("x"), "/") {
		t.Fatalf("normalized paths must be absolute")
	}
}
