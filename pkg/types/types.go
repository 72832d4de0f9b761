// Package types defines the shared data model for the AgentWeb rendering
// pipeline: the normalized page record produced by the renderers, the SPA
// detection report, semantic chunks, and the combined render result that is
// cached and returned to callers.
package types

// Backend tags record which rendering path produced a result.
const (
	BackendLite         = "lite"
	BackendBrowser      = "browser"
	BackendLiteFallback = "lite-fallback"
	BackendError        = "error"
)

// Structured error types attached to failed render results.
const (
	ErrorTypeFetchFailure       = "fetch_failure"
	ErrorTypeFetchStatus        = "fetch_status"
	ErrorTypeTimeout            = "timeout"
	ErrorTypeBrowserUnavailable = "browser_unavailable"
	ErrorTypeBrowserNavigation  = "browser_navigation"
	ErrorTypeParse              = "parse"
	ErrorTypeCacheIO            = "cache_io"
	ErrorTypeCancelled          = "cancelled"
)

// Chunk types emitted by the semantic chunker.
const (
	ChunkTypeSummary   = "summary"
	ChunkTypeTOC       = "toc"
	ChunkTypeParagraph = "paragraph"
	ChunkTypeHeading   = "heading"
	ChunkTypeListItem  = "list-item"
	ChunkTypeCallout   = "callout"
	ChunkTypeTableCell = "table-cell"
	ChunkTypeLabel     = "label"
	ChunkTypeLink      = "link"
	ChunkTypeCode      = "code"
	ChunkTypeForm      = "form"
	ChunkTypeLinks     = "links"
)

// Extraction limits shared by the lite and browser renderers.
const (
	MaxHeadingTextLength = 200
	MaxLinkTextLength    = 120
	MaxSelectOptions     = 20
	MaxImages            = 50
	MaxTables            = 10
	MaxLiteTextLength    = 5000
	MaxBrowserTextLength = 50000
	MaxBrowserLinks      = 100
)

// Heading is one document heading in source order.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Link is one hyperlink with absolutized target.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Form field kinds.
const (
	FieldKindInput    = "input"
	FieldKindTextarea = "textarea"
	FieldKindSelect   = "select"
)

// FormField is one field inside a form. Kind discriminates which of the
// remaining fields are meaningful: Type applies to inputs only, Options to
// selects only.
type FormField struct {
	Kind        string   `json:"kind"`
	Type        string   `json:"type,omitempty"`
	Name        string   `json:"name"`
	Placeholder string   `json:"placeholder,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// Form is one HTML form with its fields.
type Form struct {
	Action string      `json:"action"`
	Method string      `json:"method"`
	Fields []FormField `json:"fields"`
}

// Image is one image reference. Width and Height carry the source attribute
// values verbatim, which may be empty or non-numeric.
type Image struct {
	Src    string `json:"src"`
	Alt    string `json:"alt"`
	Width  string `json:"width,omitempty"`
	Height string `json:"height,omitempty"`
}

// PageStats summarizes a page record. Counts always equal the lengths of the
// corresponding arrays.
type PageStats struct {
	HeadingCount int `json:"headingCount"`
	LinkCount    int `json:"linkCount"`
	FormCount    int `json:"formCount"`
	ImageCount   int `json:"imageCount"`
	TableCount   int `json:"tableCount"`
	TextLength   int `json:"textLength"`
}

// PageRecord is the normalized representation of one rendered page.
type PageRecord struct {
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Meta        map[string]string `json:"meta"`
	Headings    []Heading         `json:"headings"`
	Links       []Link            `json:"links"`
	Forms       []Form            `json:"forms"`
	Images      []Image           `json:"images"`
	Tables      [][][]string      `json:"tables"`
	TextContent string            `json:"textContent"`
	Stats       PageStats         `json:"stats"`
	HTTPStatus  int               `json:"httpStatus"`
	ContentType string            `json:"contentType"`
	Backend     string            `json:"backendTag"`
}

// RecomputeStats refreshes Stats from the current array lengths.
func (p *PageRecord) RecomputeStats() {
	p.Stats = PageStats{
		HeadingCount: len(p.Headings),
		LinkCount:    len(p.Links),
		FormCount:    len(p.Forms),
		ImageCount:   len(p.Images),
		TableCount:   len(p.Tables),
		TextLength:   len(p.TextContent),
	}
}

// Detection confidence levels.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// DetectionReport is the outcome of SPA classification on raw HTML.
type DetectionReport struct {
	IsSPA      bool     `json:"isSPA"`
	Score      int      `json:"score"`
	Confidence string   `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

// Chunk is one scored, typed fragment derived from a PageRecord. Relevance is
// only set by query ranking.
type Chunk struct {
	ID        int            `json:"id"`
	Type      string         `json:"type"`
	Section   string         `json:"section,omitempty"`
	Text      string         `json:"text"`
	Score     int            `json:"score"`
	Relevance *int           `json:"relevance,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// RenderResult is the combined outcome of one render call.
type RenderResult struct {
	URL       string           `json:"url"`
	Backend   string           `json:"backend"`
	Detection *DetectionReport `json:"detection,omitempty"`
	Data      *PageRecord      `json:"data,omitempty"`
	Chunks    []Chunk          `json:"chunks,omitempty"`
	Summary   string           `json:"summary,omitempty"`
	Ms        int64            `json:"ms"`
	Cached    bool             `json:"cached"`
	Error     string           `json:"error,omitempty"`
	ErrorType string           `json:"errorType,omitempty"`
}

// TopHit is one frequently served cache row.
type TopHit struct {
	URL      string `json:"url"`
	Query    string `json:"query"`
	Backend  string `json:"backend"`
	HitCount int    `json:"hitCount"`
}

// CacheStats summarizes the result cache.
type CacheStats struct {
	Entries  int            `json:"entries"`
	Expired  int            `json:"expired"`
	Active   int            `json:"active"`
	Backends map[string]int `json:"backends"`
	OldestMs int64          `json:"oldestMs"`
	TopHits  []TopHit       `json:"topHits"`
}
