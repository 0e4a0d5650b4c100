// Package digest turns a ranked candidate pool into a bounded,
// source-diverse final set, and assembles the periodic digest from the
// item store.
package digest

import (
	"net/url"
	"strings"
)

// DedupKey normalizes a URL for duplicate suppression. Syndication
// mirrors publish the same story under different hosts, so the key is
// the trailing path segment when one exists (query and fragment
// stripped), and the bare host otherwise. Exact-string comparison would
// miss mirrors; comparing full paths would miss republished permalinks.
func DedupKey(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSpace(raw))
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")

	segment := trailingSegment(u.Path)
	if segment == "" {
		return host
	}
	return segment
}

func trailingSegment(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return strings.ToLower(parts[i])
		}
	}
	return ""
}
