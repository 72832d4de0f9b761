// Package detect classifies raw HTML as server-rendered or as a single-page
// application shell that needs JavaScript execution to produce its content.
// The classification is heuristic: a weighted set of framework markers and
// content-ratio measurements is scored against fixed thresholds.
package detect

import (
	"fmt"
	"regexp"

	"github.com/agentweb/agentweb/internal/common/htmltext"
	"github.com/agentweb/agentweb/pkg/types"
)

// Score thresholds. A page is treated as an SPA at or above spaThreshold.
const (
	spaThreshold  = 4
	highThreshold = 8
)

// patternSignal is a detection signal that fires when its pattern matches the
// raw HTML anywhere.
type patternSignal struct {
	pattern *regexp.Regexp
	weight  int
	reason  string
}

// Framework markers in scan order. Weights follow the shipped heuristic table;
// changing them shifts the lite/browser dispatch balance.
var patternSignals = []patternSignal{
	{regexp.MustCompile(`(?i)<div[^>]*id=["']root["'][^>]*>\s*</div>`), 4, "React root div (empty)"},
	{regexp.MustCompile(`(?i)<div[^>]*id=["']app["'][^>]*>\s*</div>`), 4, "App root div (empty)"},
	{regexp.MustCompile(`(?i)<div[^>]*id=["']__next["']`), 3, "Next.js root div"},
	{regexp.MustCompile(`(?i)<app-root`), 4, "Angular app-root"},
	{regexp.MustCompile(`data-reactroot`), 3, "React hydration attribute"},
	{regexp.MustCompile(`data-vue-app`), 4, "Vue app attribute"},
	{regexp.MustCompile(`ng-version=`), 3, "Angular ng-version attribute"},
	{regexp.MustCompile(`__nuxt`), 2, "Nuxt marker"},
	{regexp.MustCompile(`window\.__NEXT_DATA__`), 3, "Next.js data payload"},
	{regexp.MustCompile(`window\.__INITIAL_STATE__`), 2, "Serialized initial state"},
	{regexp.MustCompile(`(?i)class=["'][^"']*\bsvelte-`), 2, "Svelte class prefix"},
	{regexp.MustCompile(`(?i)ember-application`), 3, "Ember application class"},
}

var (
	scriptBlockPattern = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleBlockPattern  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	headingPattern     = regexp.MustCompile(`(?i)<h[1-6][^>]*>`)
	paragraphPattern   = regexp.MustCompile(`(?is)<p[^>]*>(.*?)</p>`)
	loadingPattern     = regexp.MustCompile(`(?i)class=["'][^"']*\b(?:loading|skeleton|spinner)|aria-label=["']loading["']`)
	generatorPattern   = regexp.MustCompile(`(?i)<meta[^>]*name=["']generator["'][^>]*content=["'][^"']*(?:react|next\.js)`)
	ldJSONPattern      = regexp.MustCompile(`(?i)application/ld\+json`)
)

// DetectSPA scores raw HTML and reports whether JavaScript rendering is
// required to extract meaningful content. Reasons list every signal that
// fired, in scan order.
func DetectSPA(html string) *types.DetectionReport {
	report := &types.DetectionReport{Reasons: []string{}}
	if html == "" {
		report.Confidence = types.ConfidenceLow
		return report
	}

	add := func(weight int, reason string) {
		report.Score += weight
		report.Reasons = append(report.Reasons, reason)
	}

	for _, sig := range patternSignals {
		if sig.pattern.MatchString(html) {
			add(sig.weight, sig.reason)
		}
	}

	htmlSize := len(html)
	textRatio := TextRatio(html)

	switch {
	case textRatio < 0.05 && htmlSize > 5*1024:
		add(4, fmt.Sprintf("Very low text-to-HTML ratio (%.3f)", textRatio))
	case textRatio < 0.10 && htmlSize > 10*1024:
		add(2, fmt.Sprintf("Low text-to-HTML ratio (%.3f)", textRatio))
	}

	if scriptRatio(html) > 0.50 {
		add(2, "Script-heavy page")
	}

	if len(loadingPattern.FindAllStringIndex(html, -1)) >= 2 {
		add(2, "Loading indicators present")
	}

	if !headingPattern.MatchString(html) && substantialParagraphs(html) < 3 && htmlSize > 20*1024 {
		add(3, "Large page without server-rendered content")
	}

	if generatorPattern.MatchString(html) {
		add(2, "Generator meta names a client framework")
	}

	if ldJSONPattern.MatchString(html) && textRatio > 0.15 {
		add(-2, "Structured data with substantial text")
	}

	report.IsSPA = report.Score >= spaThreshold
	switch {
	case report.Score >= highThreshold:
		report.Confidence = types.ConfidenceHigh
	case report.Score >= spaThreshold:
		report.Confidence = types.ConfidenceMedium
	default:
		report.Confidence = types.ConfidenceLow
	}
	return report
}

// TextRatio is visible-text bytes over raw HTML bytes, with script and style
// blocks removed before stripping tags.
func TextRatio(html string) float64 {
	if len(html) == 0 {
		return 0
	}
	cleaned := scriptBlockPattern.ReplaceAllString(html, " ")
	cleaned = styleBlockPattern.ReplaceAllString(cleaned, " ")
	text := htmltext.StripTags(cleaned)
	return float64(len(text)) / float64(len(html))
}

// scriptRatio is the share of the document occupied by script elements.
func scriptRatio(html string) float64 {
	if len(html) == 0 {
		return 0
	}
	total := 0
	for _, m := range scriptBlockPattern.FindAllString(html, -1) {
		total += len(m)
	}
	return float64(total) / float64(len(html))
}

// substantialParagraphs counts <p> elements with at least 20 characters of
// stripped text.
func substantialParagraphs(html string) int {
	count := 0
	for _, m := range paragraphPattern.FindAllStringSubmatch(html, -1) {
		if len(htmltext.StripTags(m[1])) >= 20 {
			count++
		}
	}
	return count
}
