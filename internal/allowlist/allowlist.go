// Package allowlist restricts which destination hosts the gateway may
// forward to.
package allowlist

import (
	"net/url"
	"strings"
)

// Set is a set of allowed destination hostnames. An empty Set allows
// every host; a malformed destination URL is always denied.
type Set struct {
	hosts map[string]struct{}
}

// New creates a Set from the given hostnames. Blank entries are
// skipped; comparison is case-insensitive.
func New(hosts []string) *Set {
	s := &Set{hosts: make(map[string]struct{}, len(hosts))}
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		s.hosts[h] = struct{}{}
	}
	return s
}

// ParseList creates a Set from a comma-separated hostname list.
func ParseList(list string) *Set {
	if strings.TrimSpace(list) == "" {
		return New(nil)
	}
	return New(strings.Split(list, ","))
}

// Empty reports whether the set has no entries, meaning every
// parsable destination is allowed.
func (s *Set) Empty() bool {
	return len(s.hosts) == 0
}

// IsAllowed reports whether the destination URL's host is permitted.
// Unparsable URLs and URLs without a hostname are denied regardless of
// the set contents.
func (s *Set) IsAllowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}

	if s.Empty() {
		return true
	}

	_, ok := s.hosts[host]
	return ok
}

// Hosts returns the configured hostnames, for logging.
func (s *Set) Hosts() []string {
	out := make([]string, 0, len(s.hosts))
	for h := range s.hosts {
		out = append(out, h)
	}
	return out
}
