package dispatch

import (
	"strings"

	"github.com/arenahub/playground-client/internal/model"
)

const PortalPrefix = "/portal-proxy/"

var (
	authPrefixes   = []string{"/auth/"}
	publicPrefixes = []string{"/public/", "/venues", "/academies", "/config/"}
)

// Classify maps a request path to its scope. The portal prefix is checked
// first, then auth, then public; anything else is an authenticated app call.
func Classify(path string) model.RequestScope {
	p := normalizePath(path)

	if strings.HasPrefix(p, PortalPrefix) {
		return model.ScopePortal
	}
	if hasAnyPrefix(p, authPrefixes) {
		return model.ScopeAuth
	}
	if hasAnyPrefix(p, publicPrefixes) {
		return model.ScopePublic
	}
	return model.ScopeApp
}

func normalizePath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
