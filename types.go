package shellcache

import (
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/phyarch/shellcache/fetch"
)

// Request is an intercepted fetch: method, absolute-path identifier and a
// flag marking top-level page navigations.
type Request struct {
	Method   string
	Path     string
	Navigate bool
}

// Response is a whole-payload response. Body is never streamed into the
// store; entries are written in one piece or not at all.
type Response = fetch.Response

func unavailable() Response {
	return Response{Status: http.StatusServiceUnavailable}
}

// AssetSet is the set of static resource paths required for offline
// operation. Membership is exact on normalized paths; the install order of
// the declared assets is preserved.
type AssetSet struct {
	ordered []string
	members map[string]struct{}
}

// NewAssetSet normalizes and deduplicates the given paths.
func NewAssetSet(paths ...string) AssetSet {
	s := AssetSet{members: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		n := NormalizePath(p)
		if _, ok := s.members[n]; ok {
			continue
		}
		s.members[n] = struct{}{}
		s.ordered = append(s.ordered, n)
	}
	return s
}

// Contains reports exact membership of the normalized path. Suffix matching
// is deliberately not supported: a request for /evil/index.html must not
// match the asset /index.html.
func (s AssetSet) Contains(p string) bool {
	_, ok := s.members[NormalizePath(p)]
	return ok
}

// Paths returns the members in declaration order.
func (s AssetSet) Paths() []string {
	out := make([]string, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Len returns the number of members.
func (s AssetSet) Len() int { return len(s.ordered) }

// Sorted returns the members in lexical order.
func (s AssetSet) Sorted() []string {
	out := s.Paths()
	sort.Strings(out)
	return out
}

// NormalizePath cleans a request identifier into canonical absolute form:
// leading slash, no dot segments, no trailing slash except for the root.
// Query and fragment parts are not cache key material and are stripped.
func NormalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
