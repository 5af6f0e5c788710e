package shellcache

import (
	"context"

	cd "github.com/phyarch/shellcache/codec"
	"github.com/phyarch/shellcache/fetch"
	"github.com/phyarch/shellcache/genreg"
	st "github.com/phyarch/shellcache/store"
)

// Manager is the offline cache manager: one instance per cache generation.
// Install/Activate are invoked once per lifecycle event by the hosting
// adapter; Handle may be invoked concurrently.
type Manager interface {
	// Install fetches every member of the asset set into this manager's
	// generation. Atomic: any single failure aborts, the partial partition
	// is dropped and the previously current generation stays authoritative.
	Install(ctx context.Context, assets AssetSet) error

	// Activate deletes every stored generation except this manager's and
	// marks it current. After Activate exactly one generation exists.
	Activate(ctx context.Context) error

	// Handle resolves one read request against cache and network.
	// Mutating methods bypass the cache entirely and may return the
	// fetcher's error; GET requests never surface a transport error.
	Handle(ctx context.Context, req Request) (Response, error)

	// Generation returns the generation name this manager owns.
	Generation() string

	// Close waits for in-flight background refreshes and releases the
	// registry and store.
	Close(ctx context.Context) error
}

// Options tune the behavior of the manager.
// Generation, Store and Fetcher are required; others have defaults.
type Options struct {
	// Required
	Generation string // e.g. "phyarch-nexus-v1.1"; unique per build
	Store      st.Store
	Fetcher    fetch.Fetcher

	Assets      AssetSet // static asset set used by Handle classification
	OfflinePage string   // fallback document path; default "/offline.html"

	Codec    cd.Codec[Response] // nil => JSON
	Registry genreg.Registry    // nil => genreg.NewLocal()
	Logger   Logger             // nil => NopLogger
	Hooks    Hooks              // nil => NopHooks

	// InstallConcurrency bounds parallel asset fetches during Install.
	// 0 => 4.
	InstallConcurrency int

	// DisableRefresh turns off the background revalidation fetch performed
	// after a static cache hit.
	DisableRefresh bool
}

// New builds a Manager for the configured generation.
func New(opts Options) (Manager, error) {
	return newManager(opts)
}
