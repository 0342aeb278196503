// Package glob implements the path glob dialect used by scan enumeration
// and vector-search post-filtering: `*` matches any run of characters
// (including separators), `?` matches one, everything else is literal,
// anchored at both ends.
package glob

import (
	"regexp"
	"strings"
)

// Compile translates a glob pattern to an anchored regular expression.
func Compile(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// Match reports whether path matches pattern. An empty or `*` pattern
// matches everything without compiling.
func Match(pattern, path string) (bool, error) {
	if pattern == "" || pattern == "*" {
		return true, nil
	}
	re, err := Compile(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(path), nil
}
