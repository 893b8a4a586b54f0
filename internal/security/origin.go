// Package security holds request policy checks shared by the HTTP API.
package security

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginChecker validates CORS origins.
//
// With no allowed origins only loopback origins pass. An entry of "*"
// allows any origin, "*.example.com" allows example.com and its
// subdomains, and any other entry must match the origin exactly
// (case-insensitive).
type OriginChecker struct {
	allowedOrigins []string
}

// NewOriginChecker creates a new origin checker.
func NewOriginChecker(allowedOrigins []string) *OriginChecker {
	return &OriginChecker{allowedOrigins: allowedOrigins}
}

// Allowed reports whether origin may call the API.
func (oc *OriginChecker) Allowed(origin string) bool {
	parsedOrigin, err := url.Parse(origin)
	if err != nil || parsedOrigin.Host == "" {
		return false
	}

	if len(oc.allowedOrigins) == 0 {
		return IsLoopbackHost(parsedOrigin.Hostname())
	}

	for _, allowed := range oc.allowedOrigins {
		if matchOrigin(parsedOrigin, origin, allowed) {
			return true
		}
	}
	return false
}

// CheckOrigin validates the Origin header of r. Requests without one
// are same-origin and always pass.
func (oc *OriginChecker) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return oc.Allowed(origin)
}

// IsLoopbackHost reports whether host names the local machine.
func IsLoopbackHost(host string) bool {
	host = strings.ToLower(host)
	return host == "localhost" ||
		host == "127.0.0.1" ||
		host == "::1" ||
		strings.HasSuffix(host, ".localhost")
}

// IsWildcardOrigin reports whether pattern is "*" or a "*.domain" pattern.
func IsWildcardOrigin(pattern string) bool {
	return pattern == "*" || (strings.HasPrefix(pattern, "*.") && len(pattern) > 2)
}

func matchOrigin(parsed *url.URL, origin, allowed string) bool {
	if allowed == "*" || strings.EqualFold(origin, allowed) {
		return true
	}

	// *.example.com matches example.com and any subdomain of it.
	if strings.HasPrefix(allowed, "*.") {
		domain := strings.ToLower(allowed[2:])
		host := strings.ToLower(parsed.Hostname())
		return host == domain || strings.HasSuffix(host, "."+domain)
	}

	return false
}
