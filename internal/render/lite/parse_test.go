package lite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentweb/agentweb/pkg/types"
)

func parseHTML(t *testing.T, html string) *types.PageRecord {
	t.Helper()
	return Parse(&FetchResult{
		HTML:        html,
		FinalURL:    "https://example.com/page",
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
	})
}

func TestParseTitle(t *testing.T) {
	page := parseHTML(t, `<html><head><title>Hello &amp; Welcome</title></head><body></body></html>`)
	assert.Equal(t, "Hello & Welcome", page.Title)
}

func TestParseTitleMissing(t *testing.T) {
	page := parseHTML(t, `<html><body><p>no title</p></body></html>`)
	assert.Equal(t, "", page.Title)
}

func TestParseMeta(t *testing.T) {
	page := parseHTML(t, `<html><head>
		<meta name="Description" content="A page">
		<meta property="og:Title" content="OG title">
		<meta name="keywords" content="a,b">
		<meta charset="utf-8">
	</head><body></body></html>`)

	assert.Equal(t, "A page", page.Meta["description"])
	assert.Equal(t, "OG title", page.Meta["og:Title"], "property keys keep their case")
	assert.Equal(t, "a,b", page.Meta["keywords"])
	assert.NotContains(t, page.Meta, "charset")
}

func TestParseHeadings(t *testing.T) {
	page := parseHTML(t, `<html><body>
		<h1>Top</h1>
		<h2 class="x">Second <em>level</em></h2>
		<h3></h3>
		<h6>Deep</h6>
	</body></html>`)

	require.Len(t, page.Headings, 3)
	assert.Equal(t, types.Heading{Level: 1, Text: "Top"}, page.Headings[0])
	assert.Equal(t, types.Heading{Level: 2, Text: "Second level"}, page.Headings[1])
	assert.Equal(t, types.Heading{Level: 6, Text: "Deep"}, page.Headings[2])
}

func TestParseHeadingTruncation(t *testing.T) {
	long := strings.Repeat("x", 300)
	page := parseHTML(t, "<h1>"+long+"</h1>")
	require.Len(t, page.Headings, 1)
	assert.Len(t, page.Headings[0].Text, types.MaxHeadingTextLength)
}

func TestParseLinks(t *testing.T) {
	page := parseHTML(t, `<html><body>
		<a href="/about">About</a>
		<a href="https://example.com/about">About again</a>
		<a href="#frag">Skip fragment</a>
		<a href="javascript:void(0)">Skip js</a>
		<a href="/empty"></a>
		<a href="other">Relative</a>
	</body></html>`)

	require.Len(t, page.Links, 2)
	assert.Equal(t, "https://example.com/about", page.Links[0].Href)
	assert.Equal(t, "About", page.Links[0].Text)
	assert.Equal(t, "https://example.com/other", page.Links[1].Href)

	// Lite path never emits duplicate hrefs.
	seen := map[string]bool{}
	for _, l := range page.Links {
		assert.False(t, seen[l.Href])
		seen[l.Href] = true
	}
}

func TestParseForms(t *testing.T) {
	page := parseHTML(t, `<html><body>
		<form action="/search">
			<input type="text" name="q" placeholder="Search" required>
			<input type="hidden" name="csrf" value="tok">
			<input name="untyped">
		</form>
		<form action="/signup" method="post">
			<textarea name="bio" placeholder="About you"></textarea>
			<select name="country">
				<option>US</option>
				<option>DE</option>
			</select>
		</form>
	</body></html>`)

	require.Len(t, page.Forms, 2)

	search := page.Forms[0]
	assert.Equal(t, "/search", search.Action)
	assert.Equal(t, "GET", search.Method)
	require.Len(t, search.Fields, 2, "hidden inputs are excluded")
	assert.Equal(t, types.FormField{
		Kind: types.FieldKindInput, Type: "text", Name: "q",
		Placeholder: "Search", Required: true,
	}, search.Fields[0])
	assert.Equal(t, "text", search.Fields[1].Type, "missing type defaults to text")

	signup := page.Forms[1]
	assert.Equal(t, "POST", signup.Method)
	require.Len(t, signup.Fields, 2)
	assert.Equal(t, types.FieldKindTextarea, signup.Fields[0].Kind)
	assert.Equal(t, "bio", signup.Fields[0].Name)
	assert.Equal(t, types.FieldKindSelect, signup.Fields[1].Kind)
	assert.Equal(t, []string{"US", "DE"}, signup.Fields[1].Options)
}

func TestParseSelectOptionCap(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`<form><select name="n">`)
	for i := 0; i < 30; i++ {
		sb.WriteString("<option>opt</option>")
	}
	sb.WriteString(`</select></form>`)

	page := parseHTML(t, sb.String())
	require.Len(t, page.Forms, 1)
	require.Len(t, page.Forms[0].Fields, 1)
	assert.Len(t, page.Forms[0].Fields[0].Options, types.MaxSelectOptions)
}

func TestParseImages(t *testing.T) {
	page := parseHTML(t, `<html><body>
		<img src="/a.png" alt="First" width="100" height="50">
		<img src="https://cdn.example.com/b.jpg">
		<img alt="no src">
	</body></html>`)

	require.Len(t, page.Images, 2)
	assert.Equal(t, "https://example.com/a.png", page.Images[0].Src)
	assert.Equal(t, "First", page.Images[0].Alt)
	assert.Equal(t, "100", page.Images[0].Width)
	assert.Equal(t, "50", page.Images[0].Height)
}

func TestParseImageCap(t *testing.T) {
	html := strings.Repeat(`<img src="/x.png">`, 60)
	page := parseHTML(t, html)
	assert.Len(t, page.Images, types.MaxImages)
}

func TestParseTables(t *testing.T) {
	page := parseHTML(t, `<table>
		<tr><th>Name</th><th>Age</th></tr>
		<tr><td>Ada</td><td>36</td></tr>
	</table>`)

	require.Len(t, page.Tables, 1)
	require.Len(t, page.Tables[0], 2)
	assert.Equal(t, []string{"Name", "Age"}, page.Tables[0][0])
	assert.Equal(t, []string{"Ada", "36"}, page.Tables[0][1])
}

func TestParseMainTextSelection(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		contains string
		excludes string
	}{
		{
			name:     "main wins",
			html:     `<body><nav>nav stuff</nav><main>main content</main></body>`,
			contains: "main content",
			excludes: "nav stuff",
		},
		{
			name:     "article second",
			html:     `<body><article>article text</article><div class="content">div text</div></body>`,
			contains: "article text",
			excludes: "div text",
		},
		{
			name:     "content div third",
			html:     `<body><div class="main-content">from div</div><p>outside</p></body>`,
			contains: "from div",
			excludes: "outside",
		},
		{
			name:     "body fallback strips chrome",
			html:     `<body><header>masthead</header><nav>links</nav><p>real body text</p><footer>legal</footer></body>`,
			contains: "real body text",
			excludes: "masthead",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := parseHTML(t, tt.html)
			assert.Contains(t, page.TextContent, tt.contains)
			assert.NotContains(t, page.TextContent, tt.excludes)
		})
	}
}

func TestParseMainTextExcludesScripts(t *testing.T) {
	page := parseHTML(t, `<body><main><script>var secret=1;</script><p>visible</p></main></body>`)
	assert.Contains(t, page.TextContent, "visible")
	assert.NotContains(t, page.TextContent, "secret")
}

func TestParseTextTruncation(t *testing.T) {
	long := strings.Repeat("words and more ", 1000)
	page := parseHTML(t, "<body><main>"+long+"</main></body>")
	assert.LessOrEqual(t, len(page.TextContent), types.MaxLiteTextLength)
}

func TestParseStatsMatchArrays(t *testing.T) {
	page := parseHTML(t, `<html><head><title>T</title></head><body>
		<h1>H</h1>
		<a href="/a">A</a><a href="/b">B</a>
		<form action="/f"><input name="x"></form>
		<img src="/i.png">
		<table><tr><td>c</td></tr></table>
		<main>text</main>
	</body></html>`)

	assert.Equal(t, len(page.Headings), page.Stats.HeadingCount)
	assert.Equal(t, len(page.Links), page.Stats.LinkCount)
	assert.Equal(t, len(page.Forms), page.Stats.FormCount)
	assert.Equal(t, len(page.Images), page.Stats.ImageCount)
	assert.Equal(t, len(page.Tables), page.Stats.TableCount)
	assert.Equal(t, len(page.TextContent), page.Stats.TextLength)
}

func TestParseBackendTag(t *testing.T) {
	page := parseHTML(t, `<html><body></body></html>`)
	assert.Equal(t, types.BackendLite, page.Backend)
	assert.Equal(t, 200, page.HTTPStatus)
	assert.Equal(t, "https://example.com/page", page.URL)
}
