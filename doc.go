// Package shellcache implements a generation-versioned offline cache for
// application shells. A Manager owns exactly one cache generation and decides,
// per intercepted read request, whether to serve from the persistent store,
// fetch from the network, or degrade to an offline fallback.
//
// Components:
//   - Store: generation-partitioned byte store (memory, SQLite, Redis,
//     BigCache, Ristretto).
//   - Codec[V]: (de)serializes cached responses <-> []byte.
//   - Registry: records which generation is current. Local (in-process) by
//     default, optional Redis implementation for multi-replica deployments.
//   - Fetcher: the network primitive used for installs, misses and refreshes.
//
// Lifecycle per generation:
//
//	Install(assets) — all-or-nothing population of the manager's generation.
//	Activate()      — drops every other generation; marks this one current.
//	Handle(req)     — cache-first for static assets, network-first otherwise.
//
// Handle never surfaces a transport error for read requests: failed
// navigations degrade to the cached offline page, failed sub-resources to an
// empty 503.
package shellcache
