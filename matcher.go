package mockingjay

import (
	"net/http"
	"strings"
)

// Matcher reports whether a stub applies to a request.
type Matcher func(req *http.Request) bool

// Everything matches every request.
func Everything(*http.Request) bool {
	return true
}

// Method matches requests with the given HTTP method, compared
// case-insensitively. Non-standard methods such as SUBSCRIBE are allowed.
func Method(method string) Matcher {
	return func(req *http.Request) bool {
		return strings.EqualFold(req.Method, method)
	}
}

// URL matches requests whose full URL equals rawURL.
func URL(rawURL string) Matcher {
	return func(req *http.Request) bool {
		return req.URL != nil && req.URL.String() == rawURL
	}
}

// Host matches requests to the given host, with or without a port.
func Host(host string) Matcher {
	return func(req *http.Request) bool {
		if req.URL == nil {
			return false
		}
		return strings.EqualFold(req.URL.Host, host) ||
			strings.EqualFold(req.URL.Hostname(), host)
	}
}

// Path matches the request path against a glob pattern.
// "*" matches exactly one path segment and "**" matches zero or more.
//
//	mockingjay.Path("/services/chatkit/v1/*/users")
//	mockingjay.Path("/services/**")
func Path(pattern string) Matcher {
	patternParts := splitPath(pattern)
	return func(req *http.Request) bool {
		if req.URL == nil {
			return false
		}
		return matchParts(patternParts, 0, splitPath(req.URL.Path), 0)
	}
}

// Header matches requests where header k has the value v.
func Header(k, v string) Matcher {
	return func(req *http.Request) bool {
		for _, got := range req.Header.Values(k) {
			if got == v {
				return true
			}
		}
		return false
	}
}

// AllOf matches requests that satisfy every matcher.
// AllOf with no matchers matches everything.
func AllOf(matchers ...Matcher) Matcher {
	return func(req *http.Request) bool {
		for _, m := range matchers {
			if !m(req) {
				return false
			}
		}
		return true
	}
}

// AnyOf matches requests that satisfy at least one matcher.
// AnyOf with no matchers matches nothing.
func AnyOf(matchers ...Matcher) Matcher {
	return func(req *http.Request) bool {
		for _, m := range matchers {
			if m(req) {
				return true
			}
		}
		return false
	}
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchParts(pattern []string, pi int, path []string, si int) bool {
	for pi < len(pattern) && si < len(path) {
		seg := pattern[pi]

		if seg == "**" {
			for i := si; i <= len(path); i++ {
				if matchParts(pattern, pi+1, path, i) {
					return true
				}
			}
			return false
		}

		if seg != "*" && seg != path[si] {
			return false
		}
		pi++
		si++
	}

	// Handle trailing ** which matches zero segments
	for pi < len(pattern) && pattern[pi] == "**" {
		pi++
	}

	return pi == len(pattern) && si == len(path)
}
