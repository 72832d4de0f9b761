package detect

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentweb/agentweb/pkg/types"
)

func TestDetectSPAEmptyReactRoot(t *testing.T) {
	html := `<html><head></head><body><div id="root"></div><script src="bundle.js"></script></body></html>`

	report := DetectSPA(html)

	assert.True(t, report.IsSPA)
	assert.GreaterOrEqual(t, report.Score, 4)
	assert.Contains(t, report.Reasons, "React root div (empty)")
}

func TestDetectSPAAngularAppRoot(t *testing.T) {
	html := `<html><body><app-root></app-root><script src="main.js"></script></body></html>`

	report := DetectSPA(html)

	assert.True(t, report.IsSPA)
	assert.Contains(t, report.Reasons, "Angular app-root")
}

func TestDetectSPAStaticBlog(t *testing.T) {
	para := strings.Repeat("word and more text here ", 8)
	html := "<html><body><h1>My Blog</h1><p>" + para + "</p><p>" + para + "</p></body></html>"

	report := DetectSPA(html)

	assert.False(t, report.IsSPA)
	assert.Equal(t, types.ConfidenceLow, report.Confidence)
}

func TestDetectSPASignals(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		minScore  int
		reason    string
	}{
		{"next root div", `<div id="__next" data-x="1">`, 3, "Next.js root div"},
		{"react hydration", `<div data-reactroot="">`, 3, "React hydration attribute"},
		{"vue app attribute", `<div data-vue-app>`, 4, "Vue app attribute"},
		{"ng-version", `<app-x ng-version="17.0.1">`, 3, "Angular ng-version attribute"},
		{"nuxt marker", `<div id="__nuxt">`, 2, "Nuxt marker"},
		{"next data payload", `<script>window.__NEXT_DATA__ = {}</script>`, 3, "Next.js data payload"},
		{"initial state", `<script>window.__INITIAL_STATE__ = {}</script>`, 2, "Serialized initial state"},
		{"svelte class", `<div class="svelte-1x2y3z">`, 2, "Svelte class prefix"},
		{"ember class", `<body class="ember-application">`, 3, "Ember application class"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := DetectSPA("<html><body>" + tt.html + "</body></html>")
			assert.GreaterOrEqual(t, report.Score, tt.minScore)
			assert.Contains(t, report.Reasons, tt.reason)
		})
	}
}

func TestDetectSPAEmptyAppDiv(t *testing.T) {
	report := DetectSPA(`<html><body><div id="app"> </div></body></html>`)
	assert.Contains(t, report.Reasons, "App root div (empty)")
	assert.True(t, report.IsSPA)
}

func TestDetectSPALowTextRatio(t *testing.T) {
	// Over 5KB of markup carrying almost no text.
	html := "<html><body>" + strings.Repeat(`<div class="c"></div>`, 400) + "</body></html>"
	require.Greater(t, len(html), 5*1024)

	report := DetectSPA(html)

	found := false
	for _, r := range report.Reasons {
		if strings.HasPrefix(r, "Very low text-to-HTML ratio") {
			found = true
		}
	}
	assert.True(t, found, "reasons: %v", report.Reasons)
}

func TestDetectSPAScriptHeavy(t *testing.T) {
	html := "<html><body><p>tiny</p><script>" + strings.Repeat("var x=1;", 200) + "</script></body></html>"

	report := DetectSPA(html)

	assert.Contains(t, report.Reasons, "Script-heavy page")
}

func TestDetectSPALoadingIndicators(t *testing.T) {
	html := `<html><body><div class="loading"></div><div class="spinner"></div><p>x</p></body></html>`

	report := DetectSPA(html)

	assert.Contains(t, report.Reasons, "Loading indicators present")
}

func TestDetectSPAGeneratorMeta(t *testing.T) {
	html := `<html><head><meta name="generator" content="Next.js 14"></head><body></body></html>`

	report := DetectSPA(html)

	assert.Contains(t, report.Reasons, "Generator meta names a client framework")
}

func TestDetectSPAStructuredDataDiscount(t *testing.T) {
	text := strings.Repeat("real readable content ", 30)
	base := `<html><body><div id="__next"></div><p>` + text + `</p>`
	withLD := base + `<script type="application/ld+json">{}</script></body></html>`
	withoutLD := base + `</body></html>`

	ldReport := DetectSPA(withLD)
	plainReport := DetectSPA(withoutLD)

	assert.Less(t, ldReport.Score, plainReport.Score)
	assert.Contains(t, ldReport.Reasons, "Structured data with substantial text")
}

func TestDetectSPAConfidenceLevels(t *testing.T) {
	high := DetectSPA(`<html><body><div id="root"></div><app-root></app-root></body></html>`)
	assert.Equal(t, types.ConfidenceHigh, high.Confidence)
	assert.GreaterOrEqual(t, high.Score, 8)

	medium := DetectSPA(`<html><body><div data-vue-app></div></body></html>`)
	assert.Equal(t, types.ConfidenceMedium, medium.Confidence)

	low := DetectSPA(`<html><body><h1>Hi</h1></body></html>`)
	assert.Equal(t, types.ConfidenceLow, low.Confidence)
	assert.False(t, low.IsSPA)
}

// Adding a positive-weighted signal to a document never decreases the score.
func TestDetectSPAMonotonicity(t *testing.T) {
	base := `<html><body><p>some modest text content for the page</p></body></html>`
	signals := []string{
		`<div id="root"></div>`,
		`<app-root></app-root>`,
		`<div data-reactroot=""></div>`,
		`<script>window.__NEXT_DATA__={}</script>`,
		`<div class="svelte-abc"></div>`,
	}

	current := base
	prevScore := DetectSPA(current).Score
	for _, sig := range signals {
		current = strings.Replace(current, "<body>", "<body>"+sig, 1)
		score := DetectSPA(current).Score
		assert.GreaterOrEqual(t, score, prevScore)
		prevScore = score
	}
}

func TestDetectSPAEmptyInput(t *testing.T) {
	report := DetectSPA("")
	assert.False(t, report.IsSPA)
	assert.Zero(t, report.Score)
	assert.Empty(t, report.Reasons)
	assert.Equal(t, types.ConfidenceLow, report.Confidence)
}

func TestTextRatio(t *testing.T) {
	assert.Zero(t, TextRatio(""))

	html := `<html><body><script>ignored()</script><p>abc</p></body></html>`
	ratio := TextRatio(html)
	assert.Greater(t, ratio, 0.0)
	assert.Less(t, ratio, 1.0)
}
