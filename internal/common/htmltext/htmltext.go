// Package htmltext provides the minimal HTML primitives used by the lite
// rendering path: entity decoding, tag stripping, and attribute parsing.
// No DOM is built; malformed markup is tolerated and under-extraction is
// recovered by the browser rendering path.
package htmltext

import (
	"regexp"
	"strings"
)

// entityReplacer decodes the small entity set the lite path cares about.
// strings.Replacer performs a single pass, so already-decoded text is never
// decoded a second time.
var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

var (
	tagPattern  = regexp.MustCompile(`<[^>]*>`)
	attrPattern = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9_:.-]*)\s*=\s*(?:"([^"]*)"|'([^']*)')`)
)

// DecodeEntities replaces the common HTML entities with their literals in a
// single pass. No numeric or named entities beyond the fixed set are handled.
func DecodeEntities(s string) string {
	return entityReplacer.Replace(s)
}

// StripTags removes anything that looks like a tag, collapses whitespace runs
// to single spaces, and trims the result.
func StripTags(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// ParseAttrs scans an attribute-list string for quoted name="value" or
// name='value' pairs and returns a map with lowercased keys. Unquoted and
// bare boolean attributes are not captured; use HasAttr for those.
func ParseAttrs(s string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrPattern.FindAllStringSubmatch(s, -1) {
		val := m[2]
		if val == "" {
			val = m[3]
		}
		attrs[strings.ToLower(m[1])] = val
	}
	return attrs
}

// HasAttr reports whether a bare attribute name appears in the attribute-list
// string, matching boolean attributes like required or disabled.
func HasAttr(s, name string) bool {
	re := regexp.MustCompile(`(?i)(^|\s)` + regexp.QuoteMeta(name) + `(\s|=|$|/)`)
	return re.MatchString(s)
}
