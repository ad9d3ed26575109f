package forward

import "strings"

// joinPath appends tail to base with exactly one separating slash,
// regardless of trailing/leading slash presence in either part. An
// empty tail leaves base untouched; an empty base yields an absolute
// path for the tail.
func joinPath(base, tail string) string {
	if tail == "" {
		if base == "" {
			return "/"
		}
		return base
	}

	base = strings.TrimSuffix(base, "/")
	tail = strings.TrimPrefix(tail, "/")
	return base + "/" + tail
}

// mergeRawQuery appends the inbound raw query string to the
// destination's existing one, preserving duplicates and original
// parameter order in both.
func mergeRawQuery(destQuery, inboundQuery string) string {
	switch {
	case destQuery == "":
		return inboundQuery
	case inboundQuery == "":
		return destQuery
	default:
		return destQuery + "&" + inboundQuery
	}
}
