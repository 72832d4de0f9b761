package urlutil

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestAbsolutize(t *testing.T) {
	base := mustParse(t, "https://example.com/docs/page.html")

	tests := []struct {
		name     string
		href     string
		expected string
	}{
		{"relative path", "guide", "https://example.com/docs/guide"},
		{"rooted path", "/about", "https://example.com/about"},
		{"already absolute", "https://other.org/x", "https://other.org/x"},
		{"protocol relative", "//cdn.example.com/a.js", "https://cdn.example.com/a.js"},
		{"fragment only", "#section", ""},
		{"javascript link", "javascript:void(0)", ""},
		{"javascript link mixed case", "JavaScript:alert(1)", ""},
		{"empty", "", ""},
		{"whitespace", "  ", ""},
		{"mailto rejected", "mailto:a@b.c", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Absolutize(base, tt.href))
		})
	}
}

func TestAbsolutizeNilBase(t *testing.T) {
	assert.Equal(t, "https://example.com/x", Absolutize(nil, "https://example.com/x"))
	assert.Equal(t, "", Absolutize(nil, "/relative"))
}

func TestExtractHost(t *testing.T) {
	assert.Equal(t, "example.com", ExtractHost("https://example.com/path"))
	assert.Equal(t, "example.com:8080", ExtractHost("http://example.com:8080"))
	assert.Equal(t, "example.com", ExtractHost("https://EXAMPLE.COM/"))
	assert.Equal(t, "", ExtractHost("not a url ::"))
	assert.Equal(t, "", ExtractHost("/just/a/path"))
}

func TestIsAbsolute(t *testing.T) {
	assert.True(t, IsAbsolute("https://example.com/a"))
	assert.True(t, IsAbsolute("http://example.com"))
	assert.False(t, IsAbsolute("/a/b"))
	assert.False(t, IsAbsolute("ftp://example.com/f"))
	assert.False(t, IsAbsolute(""))
}
