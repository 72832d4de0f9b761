package requestid

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var uuidRe = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name     string
		customID string
		pattern  string
	}{
		{"empty falls back to uuid", "", ""},
		{"simple custom id", "my-request", `^[a-f0-9]{5}-my-request$`},
		{"special characters stripped", "my@request#123!", `^[a-f0-9]{5}-myrequest123$`},
		{"spaces become hyphens", "my request 123", `^[a-f0-9]{5}-my-request-123$`},
		{"hyphen runs collapse", "a---b", `^[a-f0-9]{5}-a-b$`},
		{"only invalid chars falls back to uuid", "@#$%", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := Generate(tt.customID)
			require.LessOrEqual(t, len(id), MaxLength)
			if tt.pattern == "" {
				assert.Regexp(t, uuidRe, id)
			} else {
				assert.Regexp(t, tt.pattern, id)
			}
		})
	}
}

func TestGenerateTruncatesLongIDs(t *testing.T) {
	long := "this-is-a-very-long-custom-identifier-that-exceeds-the-cap"
	id := Generate(long)
	assert.Equal(t, MaxLength, len(id))
}

func TestGenerateUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := Generate("req")
		assert.False(t, seen[id])
		seen[id] = true
	}
}
