// Package header maps HTTP headers between the inbound and backend legs of the proxy.
package header

import (
	"net/http"
	"strings"
)

// Set is a set of lowercase header names.
type Set map[string]struct{}

// NewSet builds a Set from header names in any case.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[strings.ToLower(n)] = struct{}{}
	}
	return s
}

// Contains reports whether name is in the set, ignoring case.
func (s Set) Contains(name string) bool {
	_, ok := s[strings.ToLower(name)]
	return ok
}

// HopByHop lists headers that are never forwarded in either direction.
var HopByHop = NewSet(
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailers",
	"Transfer-Encoding",
	"Upgrade",
)

// Filter copies src into a new header, dropping every name in exclude.
// Original key spelling and the order of values for each key are kept.
func Filter(src http.Header, exclude Set) http.Header {
	dst := make(http.Header, len(src))
	for key, vals := range src {
		if exclude.Contains(key) {
			continue
		}
		dst[key] = append([]string(nil), vals...)
	}
	return dst
}
