package middleware

import (
	"regexp"
	"strings"
)

// PathMatcher matches request paths against a list of glob patterns.
// The zero value matches nothing.
type PathMatcher struct {
	patterns []string
	res      []*regexp.Regexp
}

// NewPathMatcher compiles patterns. '*' matches any run of characters,
// including '/'; every other character is literal. A pattern must match the
// whole path.
func NewPathMatcher(patterns []string) *PathMatcher {
	m := &PathMatcher{
		patterns: append([]string(nil), patterns...),
		res:      make([]*regexp.Regexp, 0, len(patterns)),
	}
	for _, p := range patterns {
		m.res = append(m.res, regexp.MustCompile(globToRegexp(p)))
	}
	return m
}

// Match returns the first pattern matching path.
func (m *PathMatcher) Match(path string) (string, bool) {
	if m == nil {
		return "", false
	}
	for i, re := range m.res {
		if re.MatchString(path) {
			return m.patterns[i], true
		}
	}
	return "", false
}

// Len returns the number of patterns.
func (m *PathMatcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.patterns)
}

func globToRegexp(pattern string) string {
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return "^" + strings.Join(parts, ".*") + "$"
}
