// Package chunker decomposes a PageRecord into scored, typed chunks sized for
// inclusion in a language-model prompt, and ranks chunks against a free-text
// query by keyword weight.
package chunker

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/agentweb/agentweb/pkg/types"
)

// Default chunking parameters.
const (
	DefaultMaxChunkSize = 800
	DefaultMinScore     = -1
	minSentenceLength   = 10
)

// Options controls chunk generation.
type Options struct {
	MaxChunkSize int
	MinScore     int
	IncludeNav   bool
}

// DefaultOptions returns the standard chunking parameters.
func DefaultOptions() Options {
	return Options{MaxChunkSize: DefaultMaxChunkSize, MinScore: DefaultMinScore}
}

var (
	blankLinePattern = regexp.MustCompile(`\n\s*\n`)
	urlTokenPattern  = regexp.MustCompile(`https?://`)
	codeTokenPattern = regexp.MustCompile("`|\\b(const|function|import)\\b")
	navStartPattern  = regexp.MustCompile(`(?i)^(home|menu|search|login|sign in|sign up|subscribe|newsletter|cookie|privacy|terms)\b`)
	boilerplateRe    = regexp.MustCompile(`(?i)(copyright|all rights reserved|powered by)`)
	howToPattern     = regexp.MustCompile(`(?i)(how to|step|guide|tutorial|example|note:|warning:|important:)`)
	calloutPattern   = regexp.MustCompile(`(?i)^(note|warning|tip|important|caution|info):`)
	digitPattern     = regexp.MustCompile(`\d`)
	notableSkipRe    = regexp.MustCompile(`(?i)^(home|menu|back|next|prev|more|see all)`)
)

// ChunkPage decomposes page into chunks, sorted by score descending. Chunk
// IDs increment in emission order, so the original generation sequence stays
// recoverable after sorting.
func ChunkPage(page *types.PageRecord, opts Options) []types.Chunk {
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = DefaultMaxChunkSize
	}

	var chunks []types.Chunk
	nextID := 0
	emit := func(c types.Chunk) {
		c.ID = nextID
		nextID++
		chunks = append(chunks, c)
	}

	emit(types.Chunk{Type: types.ChunkTypeSummary, Score: 10, Text: summaryText(page)})

	if len(page.Headings) > 0 {
		emit(types.Chunk{Type: types.ChunkTypeTOC, Score: 5, Text: tocText(page.Headings)})
	}

	for _, c := range paragraphChunks(page, opts) {
		emit(c)
	}

	for _, form := range page.Forms {
		emit(types.Chunk{Type: types.ChunkTypeForm, Score: 7, Text: formText(form)})
	}

	if text := notableLinksText(page.Links); text != "" {
		emit(types.Chunk{Type: types.ChunkTypeLinks, Score: 3, Text: text})
	}

	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
	return chunks
}

func summaryText(page *types.PageRecord) string {
	var sb strings.Builder
	if page.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", page.Title)
	}
	if desc := page.Meta["description"]; desc != "" {
		fmt.Fprintf(&sb, "Description: %s\n", desc)
	}
	fmt.Fprintf(&sb, "URL: %s\n", page.URL)
	s := page.Stats
	fmt.Fprintf(&sb, "Stats: %d headings, %d links, %d forms, %d images, %d tables, %d chars",
		s.HeadingCount, s.LinkCount, s.FormCount, s.ImageCount, s.TableCount, s.TextLength)
	return sb.String()
}

func tocText(headings []types.Heading) string {
	lines := make([]string, 0, len(headings))
	for _, h := range headings {
		indent := strings.Repeat("  ", h.Level-1)
		lines = append(lines, indent+h.Text)
	}
	return strings.Join(lines, "\n")
}

func paragraphChunks(page *types.PageRecord, opts Options) []types.Chunk {
	var out []types.Chunk
	currentSection := ""

	for _, para := range splitParagraphs(page.TextContent) {
		// Headings reappear in the text flow; the TOC already carries them,
		// so they only advance the section tracker.
		if h, ok := matchHeading(para, page.Headings); ok {
			currentSection = h
			continue
		}

		words := len(strings.Fields(para))
		linkDensity := 0.0
		if words > 0 {
			linkDensity = float64(len(urlTokenPattern.FindAllString(para, -1))) / float64(words)
		}
		if !opts.IncludeNav && linkDensity > 0.5 {
			continue
		}

		score := scoreParagraph(para, linkDensity, currentSection != "")
		if score < opts.MinScore {
			continue
		}
		chunkType := detectType(para)

		if len(para) <= opts.MaxChunkSize {
			out = append(out, types.Chunk{
				Type:    chunkType,
				Section: currentSection,
				Text:    para,
				Score:   score,
			})
			continue
		}

		for i, part := range splitBySentences(para, opts.MaxChunkSize) {
			out = append(out, types.Chunk{
				Type:    chunkType,
				Section: currentSection,
				Text:    part,
				Score:   score,
				Meta:    map[string]any{"partial": true, "part": i + 1},
			})
		}
	}
	return out
}

func splitParagraphs(text string) []string {
	var paras []string
	for _, p := range blankLinePattern.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

func matchHeading(para string, headings []types.Heading) (string, bool) {
	for _, h := range headings {
		if para == h.Text || strings.HasPrefix(h.Text, para) {
			return h.Text, true
		}
	}
	return "", false
}

// scoreParagraph applies the heuristic content-quality weights. The weights
// favor mid-length prose and instructional text and penalize navigation and
// boilerplate.
func scoreParagraph(text string, linkDensity float64, underHeading bool) int {
	score := 0
	n := len(text)

	switch {
	case n >= 50 && n <= 500:
		score += 2
	case n > 500 && n <= 2000:
		score++
	}
	if n < 20 {
		score -= 2
	}
	if digitPattern.MatchString(text) {
		score++
	}
	if codeTokenPattern.MatchString(text) {
		score += 2
	}
	if navStartPattern.MatchString(text) {
		score -= 3
	}
	if boilerplateRe.MatchString(text) {
		score -= 2
	}
	if linkDensity > 0.7 {
		score -= 2
	}
	if underHeading {
		score++
	}
	if howToPattern.MatchString(text) {
		score += 2
	}
	return score
}

// detectType classifies free text without source-tag context.
func detectType(text string) string {
	switch {
	case strings.HasPrefix(text, "```"),
		strings.HasPrefix(text, "~~~"),
		strings.HasPrefix(text, "$ "),
		strings.HasPrefix(text, "> "):
		return types.ChunkTypeCode
	case strings.HasPrefix(text, "•"),
		strings.HasPrefix(text, "- "),
		strings.HasPrefix(text, "* "):
		return types.ChunkTypeListItem
	case calloutPattern.MatchString(text):
		return types.ChunkTypeCallout
	case len(text) < 50:
		return types.ChunkTypeLabel
	case urlTokenPattern.MatchString(text) && len(strings.Fields(text)) < 5:
		return types.ChunkTypeLink
	default:
		return types.ChunkTypeParagraph
	}
}

// splitBySentences breaks an oversized paragraph on sentence boundaries
// (terminator, whitespace, uppercase letter) and regroups consecutive
// sentences under maxSize.
func splitBySentences(text string, maxSize int) []string {
	sentences := splitSentences(text)

	var parts []string
	var current strings.Builder
	for _, s := range sentences {
		if current.Len() > 0 && current.Len()+1+len(s) > maxSize {
			parts = append(parts, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(s)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// splitSentences is an explicit-state tokenizer: a boundary is a run of
// whitespace after . ! or ? when the next rune is an uppercase letter.
// Fragments shorter than minSentenceLength are merged forward.
func splitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		j := i + 1
		for j < len(runes) && (runes[j] == ' ' || runes[j] == '\t' || runes[j] == '\n') {
			j++
		}
		if j == i+1 || j >= len(runes) {
			continue
		}
		if runes[j] >= 'A' && runes[j] <= 'Z' {
			sentence := strings.TrimSpace(string(runes[start : i+1]))
			if len(sentence) >= minSentenceLength {
				sentences = append(sentences, sentence)
				start = j
			}
			i = j - 1
		}
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func formText(form types.Form) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Form: %s %s", form.Method, form.Action)
	for _, f := range form.Fields {
		sb.WriteString("\n- ")
		switch f.Kind {
		case types.FieldKindInput:
			fmt.Fprintf(&sb, "input[%s] %s", f.Type, f.Name)
		case types.FieldKindSelect:
			fmt.Fprintf(&sb, "select %s (%d options)", f.Name, len(f.Options))
		default:
			fmt.Fprintf(&sb, "%s %s", f.Kind, f.Name)
		}
		if f.Placeholder != "" {
			fmt.Fprintf(&sb, " placeholder=%q", f.Placeholder)
		}
		if f.Required {
			sb.WriteString(" required")
		}
	}
	return sb.String()
}

// notableLinksText renders up to 20 links whose anchor text looks like a
// destination rather than site chrome. Returns empty when nothing qualifies.
func notableLinksText(links []types.Link) string {
	var lines []string
	for _, l := range links {
		if len(lines) >= 20 {
			break
		}
		n := len(l.Text)
		if n < 4 || n >= 80 || notableSkipRe.MatchString(l.Text) {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", l.Text, l.Href))
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n")
}
