package datafile

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// wildcards are the glob meta-characters.
const wildcards = "*?[{"

// HasWildcard reports whether s contains a glob meta-character.
func HasWildcard(s string) bool {
	return strings.ContainsAny(s, wildcards)
}

// GlobPrefix returns the literal part of a pattern before its first
// wildcard. Object stores list this prefix and filter the result.
func GlobPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, wildcards); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

// KeyMatcher matches object keys against a glob pattern. '*' stays within
// one path segment, '**' crosses segments and a "**/" segment also matches
// no directory at all, so "dir/**/*.csv" matches "dir/a.csv".
type KeyMatcher struct {
	pattern string
	globs   []glob.Glob
}

// NewKeyMatcher compiles pattern with '/' as the segment separator.
func NewKeyMatcher(pattern string) (*KeyMatcher, error) {
	m := &KeyMatcher{pattern: pattern}
	for _, p := range expandRecursive(pattern, 0) {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// expandRecursive returns pattern plus every variant with "**/" segments
// at or after from removed.
func expandRecursive(pattern string, from int) []string {
	i := strings.Index(pattern[from:], "**/")
	if i < 0 {
		return []string{pattern}
	}
	i += from
	if i > 0 && pattern[i-1] != '/' {
		return expandRecursive(pattern, i+3)
	}
	out := expandRecursive(pattern, i+3)
	return append(out, expandRecursive(pattern[:i]+pattern[i+3:], i)...)
}

// Pattern returns the source pattern.
func (m *KeyMatcher) Pattern() string {
	return m.pattern
}

// Prefix returns the listing prefix of the pattern.
func (m *KeyMatcher) Prefix() string {
	return GlobPrefix(m.pattern)
}

// Match reports whether key matches. Directory placeholders (keys ending
// in '/') never match.
func (m *KeyMatcher) Match(key string) bool {
	if key == "" || strings.HasSuffix(key, "/") {
		return false
	}
	for _, g := range m.globs {
		if g.Match(key) {
			return true
		}
	}
	return false
}

// Filter returns the keys that match, keeping their order.
func (m *KeyMatcher) Filter(keys []string) []string {
	var out []string
	for _, k := range keys {
		if m.Match(k) {
			out = append(out, k)
		}
	}
	return out
}

// SplitObjectURI splits "<scheme>://<bucket>/<key>" into bucket and key.
func SplitObjectURI(uri string) (bucket, key string, err error) {
	i := strings.Index(uri, "://")
	if i < 0 {
		return "", "", fmt.Errorf("%q is not an object URI", uri)
	}
	rest := uri[i+3:]
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%q has no bucket", uri)
	}
	return bucket, key, nil
}

// ObjectURI joins scheme, bucket and key back into a URI.
func ObjectURI(scheme, bucket, key string) string {
	return scheme + "://" + bucket + "/" + key
}
