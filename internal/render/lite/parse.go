package lite

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agentweb/agentweb/internal/common/htmltext"
	"github.com/agentweb/agentweb/internal/common/urlutil"
	"github.com/agentweb/agentweb/pkg/types"
)

var (
	titlePattern      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	metaPattern       = regexp.MustCompile(`(?is)<meta\s([^>]*?)/?>`)
	headingOpenRe     = regexp.MustCompile(`(?i)<h([1-6])[^>]*>`)
	anchorPattern     = regexp.MustCompile(`(?is)<a\s([^>]*)>(.*?)</a>`)
	formPattern       = regexp.MustCompile(`(?is)<form([^>]*)>(.*?)</form>`)
	inputPattern      = regexp.MustCompile(`(?is)<input([^>]*?)/?>`)
	textareaPattern   = regexp.MustCompile(`(?is)<textarea([^>]*)>`)
	selectPattern     = regexp.MustCompile(`(?is)<select([^>]*)>(.*?)</select>`)
	optionPattern     = regexp.MustCompile(`(?is)<option[^>]*>(.*?)</option>`)
	imgPattern        = regexp.MustCompile(`(?is)<img([^>]*?)/?>`)
	tablePattern      = regexp.MustCompile(`(?is)<table[^>]*>(.*?)</table>`)
	rowPattern        = regexp.MustCompile(`(?is)<tr[^>]*>(.*?)</tr>`)
	cellPattern       = regexp.MustCompile(`(?is)<t[dh][^>]*>(.*?)</t[dh]>`)
	mainPattern       = regexp.MustCompile(`(?is)<main[^>]*>(.*?)</main>`)
	articlePattern    = regexp.MustCompile(`(?is)<article[^>]*>(.*?)</article>`)
	contentDivPattern = regexp.MustCompile(`(?is)<div[^>]*(?:class|id)=["'][^"']*(?:content|main|article)[^"']*["'][^>]*>(.*?)</div>`)
	bodyPattern       = regexp.MustCompile(`(?is)<body[^>]*>(.*?)</body>`)

	scriptBlockRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleBlockRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	navBlockRe    = regexp.MustCompile(`(?is)<nav[^>]*>.*?</nav>`)
	footerBlockRe = regexp.MustCompile(`(?is)<footer[^>]*>.*?</footer>`)
	headerBlockRe = regexp.MustCompile(`(?is)<header[^>]*>.*?</header>`)
)

// Options controls a lite render. When PreFetched is set no network request
// is performed, which lets the orchestrator do one fetch for both detection
// and rendering.
type Options struct {
	Timeout    time.Duration
	PreFetched *FetchResult
}

// Renderer is the scriptless fetch-and-parse rendering path.
type Renderer struct {
	client *Client
	logger *zap.Logger
}

// NewRenderer creates a lite renderer that fetches through client.
func NewRenderer(client *Client, logger *zap.Logger) *Renderer {
	return &Renderer{client: client, logger: logger}
}

// Render fetches rawURL (unless pre-fetched HTML is supplied) and parses it
// into a PageRecord.
func (r *Renderer) Render(ctx context.Context, rawURL string, opts Options) (*types.PageRecord, error) {
	fetched := opts.PreFetched
	if fetched == nil {
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}
		var err error
		fetched, err = r.client.Fetch(ctx, rawURL)
		if err != nil {
			return nil, err
		}
	}

	page := Parse(fetched)
	r.logger.Debug("Lite render complete",
		zap.String("url", page.URL),
		zap.Int("headings", page.Stats.HeadingCount),
		zap.Int("links", page.Stats.LinkCount),
		zap.Int("text_len", page.Stats.TextLength))
	return page, nil
}

// Parse extracts a PageRecord from fetched HTML without executing scripts.
func Parse(fetched *FetchResult) *types.PageRecord {
	html := fetched.HTML
	base, _ := url.Parse(fetched.FinalURL)

	page := &types.PageRecord{
		URL:         fetched.FinalURL,
		Title:       extractTitle(html),
		Meta:        extractMeta(html),
		Headings:    extractHeadings(html),
		Links:       extractLinks(html, base),
		Forms:       extractForms(html),
		Images:      extractImages(html, base),
		Tables:      extractTables(html),
		TextContent: extractMainText(html, types.MaxLiteTextLength),
		HTTPStatus:  fetched.StatusCode,
		ContentType: fetched.ContentType,
		Backend:     types.BackendLite,
	}
	page.RecomputeStats()
	return page
}

func extractTitle(html string) string {
	m := titlePattern.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return htmltext.DecodeEntities(htmltext.StripTags(m[1]))
}

// extractMeta collects metas carrying (name or property) plus content.
// name keys are lowercased; property keys keep their case.
func extractMeta(html string) map[string]string {
	meta := make(map[string]string)
	for _, m := range metaPattern.FindAllStringSubmatch(html, -1) {
		attrs := htmltext.ParseAttrs(m[1])
		content, ok := attrs["content"]
		if !ok {
			continue
		}
		if name := attrs["name"]; name != "" {
			meta[strings.ToLower(name)] = htmltext.DecodeEntities(content)
		} else if prop := attrs["property"]; prop != "" {
			meta[prop] = htmltext.DecodeEntities(content)
		}
	}
	return meta
}

// extractHeadings finds paired <hN>…</hN> elements in document order. Go's
// regexp has no backreferences, so the matching close tag is located with an
// explicit scan.
func extractHeadings(html string) []types.Heading {
	lower := strings.ToLower(html)
	var headings []types.Heading

	for _, loc := range headingOpenRe.FindAllStringSubmatchIndex(html, -1) {
		level := int(html[loc[2]] - '0')
		closeTag := "</h" + string(rune('0'+level)) + ">"
		rest := lower[loc[1]:]
		end := strings.Index(rest, closeTag)
		if end < 0 {
			continue
		}
		text := htmltext.DecodeEntities(htmltext.StripTags(html[loc[1] : loc[1]+end]))
		if text == "" {
			continue
		}
		headings = append(headings, types.Heading{
			Level: level,
			Text:  truncate(text, types.MaxHeadingTextLength),
		})
	}
	return headings
}

// extractLinks absolutizes hrefs against the final URL, suppresses
// duplicates, and drops empty-text, javascript:, and fragment links.
func extractLinks(html string, base *url.URL) []types.Link {
	seen := make(map[string]bool)
	var links []types.Link

	for _, m := range anchorPattern.FindAllStringSubmatch(html, -1) {
		attrs := htmltext.ParseAttrs(m[1])
		abs := urlutil.Absolutize(base, attrs["href"])
		if abs == "" || seen[abs] {
			continue
		}
		text := htmltext.DecodeEntities(htmltext.StripTags(m[2]))
		if text == "" {
			continue
		}
		seen[abs] = true
		links = append(links, types.Link{
			Text: truncate(text, types.MaxLinkTextLength),
			Href: abs,
		})
	}
	return links
}

func extractForms(html string) []types.Form {
	var forms []types.Form
	for _, m := range formPattern.FindAllStringSubmatch(html, -1) {
		attrs := htmltext.ParseAttrs(m[1])
		method := strings.ToUpper(attrs["method"])
		if method == "" {
			method = "GET"
		}
		forms = append(forms, types.Form{
			Action: attrs["action"],
			Method: method,
			Fields: extractFields(m[2]),
		})
	}
	return forms
}

func extractFields(formBody string) []types.FormField {
	var fields []types.FormField

	for _, m := range inputPattern.FindAllStringSubmatch(formBody, -1) {
		attrs := htmltext.ParseAttrs(m[1])
		inputType := attrs["type"]
		if inputType == "" {
			inputType = "text"
		}
		if strings.EqualFold(inputType, "hidden") {
			continue
		}
		fields = append(fields, types.FormField{
			Kind:        types.FieldKindInput,
			Type:        inputType,
			Name:        attrs["name"],
			Placeholder: attrs["placeholder"],
			Required:    htmltext.HasAttr(m[1], "required"),
		})
	}

	for _, m := range textareaPattern.FindAllStringSubmatch(formBody, -1) {
		attrs := htmltext.ParseAttrs(m[1])
		fields = append(fields, types.FormField{
			Kind:        types.FieldKindTextarea,
			Name:        attrs["name"],
			Placeholder: attrs["placeholder"],
			Required:    htmltext.HasAttr(m[1], "required"),
		})
	}

	for _, m := range selectPattern.FindAllStringSubmatch(formBody, -1) {
		attrs := htmltext.ParseAttrs(m[1])
		var options []string
		for _, om := range optionPattern.FindAllStringSubmatch(m[2], -1) {
			if len(options) >= types.MaxSelectOptions {
				break
			}
			text := htmltext.DecodeEntities(htmltext.StripTags(om[1]))
			if text != "" {
				options = append(options, text)
			}
		}
		fields = append(fields, types.FormField{
			Kind:    types.FieldKindSelect,
			Name:    attrs["name"],
			Options: options,
		})
	}

	return fields
}

func extractImages(html string, base *url.URL) []types.Image {
	var images []types.Image
	for _, m := range imgPattern.FindAllStringSubmatch(html, -1) {
		if len(images) >= types.MaxImages {
			break
		}
		attrs := htmltext.ParseAttrs(m[1])
		src := urlutil.Absolutize(base, attrs["src"])
		if src == "" {
			continue
		}
		images = append(images, types.Image{
			Src:    src,
			Alt:    htmltext.DecodeEntities(attrs["alt"]),
			Width:  attrs["width"],
			Height: attrs["height"],
		})
	}
	return images
}

func extractTables(html string) [][][]string {
	var tables [][][]string
	for _, tm := range tablePattern.FindAllStringSubmatch(html, -1) {
		if len(tables) >= types.MaxTables {
			break
		}
		var rows [][]string
		for _, rm := range rowPattern.FindAllStringSubmatch(tm[1], -1) {
			var cells []string
			for _, cm := range cellPattern.FindAllStringSubmatch(rm[1], -1) {
				cells = append(cells, htmltext.DecodeEntities(htmltext.StripTags(cm[1])))
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
		}
		if len(rows) > 0 {
			tables = append(tables, rows)
		}
	}
	return tables
}

// extractMainText selects the main content region: <main>, then <article>,
// then a div whose class/id mentions content/main/article, then the body with
// script/style/nav/footer/header removed.
func extractMainText(html string, maxLen int) string {
	var region string
	switch {
	case mainPattern.MatchString(html):
		region = mainPattern.FindStringSubmatch(html)[1]
	case articlePattern.MatchString(html):
		region = articlePattern.FindStringSubmatch(html)[1]
	case contentDivPattern.MatchString(html):
		region = contentDivPattern.FindStringSubmatch(html)[1]
	default:
		if m := bodyPattern.FindStringSubmatch(html); m != nil {
			region = m[1]
		} else {
			region = html
		}
		region = navBlockRe.ReplaceAllString(region, " ")
		region = footerBlockRe.ReplaceAllString(region, " ")
		region = headerBlockRe.ReplaceAllString(region, " ")
	}

	// Script and style payloads are never visible text.
	region = scriptBlockRe.ReplaceAllString(region, " ")
	region = styleBlockRe.ReplaceAllString(region, " ")

	text := htmltext.DecodeEntities(htmltext.StripTags(region))
	return truncate(text, maxLen)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	// Cut on a rune boundary.
	cut := maxLen
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}
