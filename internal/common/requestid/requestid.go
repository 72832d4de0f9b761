// Package requestid produces request identifiers for render tracing. Callers
// may supply their own ID; it is sanitized and prefixed so collisions between
// clients stay unlikely.
package requestid

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxLength caps the total ID length (same as a UUID string).
	MaxLength = 36
	// prefixLength is the random prefix prepended to custom IDs.
	prefixLength = 5

	maxCustomLength = MaxLength - prefixLength - 1
)

var (
	invalidCharsRe = regexp.MustCompile(`[^a-zA-Z0-9-]+`)
	hyphenRunRe    = regexp.MustCompile(`-+`)
)

// Generate returns a request ID. A non-empty customID is sanitized to
// [a-zA-Z0-9-] and gets a 5-character random prefix; otherwise a fresh UUID
// is returned.
func Generate(customID string) string {
	sanitized := strings.ReplaceAll(customID, " ", "-")
	sanitized = invalidCharsRe.ReplaceAllString(sanitized, "")
	sanitized = hyphenRunRe.ReplaceAllString(sanitized, "-")
	sanitized = strings.Trim(sanitized, "-")

	if sanitized == "" {
		return uuid.New().String()
	}

	if len(sanitized) > maxCustomLength {
		sanitized = sanitized[:maxCustomLength]
	}
	return randomPrefix() + "-" + sanitized
}

func randomPrefix() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()[:prefixLength]
	}
	return hex.EncodeToString(b)[:prefixLength]
}
