package clicky

import (
	"net/url"
	"strings"
)

// NormalizePath reduces a page reference to the path Clicky filters on.
// Absolute URLs keep only their path, still percent-encoded; anything else
// is treated as a path and gets a leading slash if it lacks one.
func NormalizePath(input string) string {
	if u, err := url.Parse(input); err == nil && u.IsAbs() {
		if u.Opaque != "" {
			return u.Opaque
		}
		if p := u.EscapedPath(); p != "" {
			return p
		}
		return "/"
	}

	if strings.HasPrefix(input, "/") {
		return input
	}
	return "/" + input
}
