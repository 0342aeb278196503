package glob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"", "anything/at/all.md", true},
		{"*", "anything/at/all.md", true},
		{"*.md", "notes/a.md", true},
		{"*.md", "notes/a.txt", false},
		{"docs/*", "docs/sub/deep.md", true}, // `*` crosses separators
		{"docs/*", "src/a.md", false},
		{"a?.md", "a1.md", true},
		{"a?.md", "a12.md", false},
		{"exact.md", "exact.md", true},
		{"exact.md", "exact.mdx", false}, // anchored at the end
		{"exact.md", "prefix/exact.md", false},
		{"a.b", "axb", false}, // dots are literal
	}
	for _, tc := range cases {
		got, err := Match(tc.pattern, tc.path)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "pattern %q against %q", tc.pattern, tc.path)
	}
}

func TestCompile_QuotesRegexMeta(t *testing.T) {
	re, err := Compile("notes/(v1)+.md")
	require.NoError(t, err)
	assert.True(t, re.MatchString("notes/(v1)+.md"))
	assert.False(t, re.MatchString("notes/v1.md"))
}
