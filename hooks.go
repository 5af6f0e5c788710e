package shellcache

// Hooks are lightweight callbacks for high-signal cache events. They replace
// ad-hoc logging in the request path so callers can assert on behavior.
// Implementations MUST be cheap and non-blocking; Handle calls them inline.
type Hooks interface {
	// Install started for the named generation with n assets.
	InstallStart(generation string, assets int)

	// Install finished; err is nil on success.
	InstallDone(generation string, err error)

	// Activate finished; dropped is the number of evicted generations.
	ActivateDone(generation string, dropped int)

	// A static asset was served from cache without a network round-trip.
	CacheHit(path string)

	// A static asset was absent from cache and fetched over the network.
	CacheMiss(path string)

	// A degraded response was served after a network failure.
	// kind ∈ {"offline_page", "stale_dynamic", "unavailable"}
	FallbackServed(path, kind string)

	// A background revalidation fetch after a cache hit failed.
	RefreshFailed(path string, err error)

	// An entry was deleted by the cache on read.
	// reason ∈ {"corrupt", "generation_mismatch", "value_decode"}
	SelfHeal(path, reason string)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) InstallStart(string, int)      {}
func (NopHooks) InstallDone(string, error)     {}
func (NopHooks) ActivateDone(string, int)      {}
func (NopHooks) CacheHit(string)               {}
func (NopHooks) CacheMiss(string)              {}
func (NopHooks) FallbackServed(string, string) {}
func (NopHooks) RefreshFailed(string, error)   {}
func (NopHooks) SelfHeal(string, string)       {}
