// Package orchestrator composes the rendering pipeline: cache lookup, raw
// fetch, SPA detection, backend dispatch with lite fallback, chunking, and
// the cache write. It is the single public entry point for a render.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/agentweb/agentweb/internal/cache"
	"github.com/agentweb/agentweb/internal/metrics"
	"github.com/agentweb/agentweb/internal/render/browser"
	"github.com/agentweb/agentweb/internal/render/chunker"
	"github.com/agentweb/agentweb/internal/render/detect"
	"github.com/agentweb/agentweb/internal/render/lite"
	"github.com/agentweb/agentweb/pkg/types"
)

// Per-call defaults.
const (
	DefaultChunkLimit = 8
	DefaultTimeout    = 15 * time.Second

	browserTTL = 5 * time.Minute
	liteTTL    = 10 * time.Minute

	// degradedSummaryLength bounds the fallback summary when chunking fails.
	degradedSummaryLength = 2000
)

// BrowserRenderer is the headless-browser dependency. Satisfied by
// *browser.Renderer; tests substitute stubs.
type BrowserRenderer interface {
	Render(ctx context.Context, url string, opts browser.Options) (*types.PageRecord, error)
}

// Fetcher retrieves raw HTML. Satisfied by *lite.Client.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*lite.FetchResult, error)
}

// Options controls one render call.
type Options struct {
	// Force overrides detection: "lite" or "browser" ("playwright" is
	// accepted as an alias for the browser path).
	Force      string
	Query      string
	ChunkLimit int
	Timeout    time.Duration
	NoCache    bool
	CacheTTL   time.Duration
}

func (o Options) withDefaults() Options {
	if o.ChunkLimit <= 0 {
		o.ChunkLimit = DefaultChunkLimit
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Orchestrator wires the pipeline components together. All fields except
// Cache and Metrics are required; a nil Cache disables persistence and a nil
// Metrics disables instrumentation.
type Orchestrator struct {
	fetcher Fetcher
	browser BrowserRenderer
	cache   *cache.Cache
	metrics *metrics.Metrics
	logger  *zap.Logger

	group singleflight.Group
}

// New creates an orchestrator.
func New(fetcher Fetcher, browserRenderer BrowserRenderer, resultCache *cache.Cache, m *metrics.Metrics, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		fetcher: fetcher,
		browser: browserRenderer,
		cache:   resultCache,
		metrics: m,
		logger:  logger,
	}
}

// Render runs the full pipeline for rawURL. Failures are reported in the
// result with backend "error" and a structured error type; Render never
// returns nil.
func (o *Orchestrator) Render(ctx context.Context, rawURL string, opts Options) *types.RenderResult {
	start := time.Now()
	opts = opts.withDefaults()

	// A forced backend must actually re-render; a cached result from the
	// other path would silently satisfy the override.
	if !opts.NoCache && normalizeForce(opts.Force) == "" && o.cache != nil {
		cached, err := o.cache.Get(ctx, rawURL, opts.Query)
		switch {
		case err != nil:
			o.logger.Warn("Cache read failed, bypassing cache",
				zap.String("url", rawURL), zap.Error(err))
			o.recordCacheLookup("error")
		case cached != nil:
			cached.Cached = true
			cached.Ms = time.Since(start).Milliseconds()
			o.recordCacheLookup("hit")
			o.recordRender(cached.Backend, start)
			return cached
		default:
			o.recordCacheLookup("miss")
		}
	} else {
		o.recordCacheLookup("bypass")
	}

	// Concurrent identical requests share one pipeline execution. The
	// result is copied so each caller reports its own elapsed time.
	v, _, _ := o.group.Do(renderKey(rawURL, opts), func() (interface{}, error) {
		return o.renderOnce(ctx, rawURL, opts), nil
	})
	shared := v.(*types.RenderResult)

	result := *shared
	result.Ms = time.Since(start).Milliseconds()
	o.recordRender(result.Backend, start)
	if result.ErrorType != "" && o.metrics != nil {
		o.metrics.RecordError(result.ErrorType)
	}
	return &result
}

// renderOnce executes the uncached pipeline: fetch, detect, render, chunk,
// store.
func (o *Orchestrator) renderOnce(ctx context.Context, rawURL string, opts Options) *types.RenderResult {
	fetchCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	fetched, err := o.fetcher.Fetch(fetchCtx, rawURL)
	if err != nil {
		return errorResult(rawURL, nil, err)
	}

	report := detect.DetectSPA(fetched.HTML)
	if o.metrics != nil {
		o.metrics.RecordDetection(report.IsSPA, report.Confidence)
	}

	backend := types.BackendLite
	switch normalizeForce(opts.Force) {
	case types.BackendLite:
		backend = types.BackendLite
	case types.BackendBrowser:
		backend = types.BackendBrowser
	default:
		if report.IsSPA {
			backend = types.BackendBrowser
		}
	}

	var page *types.PageRecord
	finalBackend := backend
	if backend == types.BackendBrowser {
		page, err = o.browser.Render(ctx, rawURL, browser.Options{
			Timeout:    opts.Timeout,
			WaitUntil:  browser.DefaultWaitUntil,
			BlockMedia: true,
		})
		if err != nil {
			if ctx.Err() != nil {
				return errorResult(rawURL, report, ctx.Err())
			}
			o.logger.Warn("Browser render failed, falling back to static parse",
				zap.String("url", rawURL), zap.Error(err))
			page = lite.Parse(fetched)
			page.Backend = types.BackendLiteFallback
			finalBackend = types.BackendLiteFallback
		}
	} else {
		page = lite.Parse(fetched)
	}

	result := &types.RenderResult{
		URL:       page.URL,
		Backend:   finalBackend,
		Detection: report,
		Data:      page,
	}
	result.Chunks, result.Summary = o.chunkAndSummarize(page, opts)

	if !opts.NoCache && o.cache != nil {
		ttl := opts.CacheTTL
		if ttl <= 0 {
			ttl = liteTTL
			if finalBackend == types.BackendBrowser {
				ttl = browserTTL
			}
		}
		if err := o.cache.Set(ctx, rawURL, opts.Query, result, ttl); err != nil {
			o.logger.Warn("Cache write failed",
				zap.String("url", rawURL), zap.Error(err))
		}
	}

	return result
}

// chunkAndSummarize runs the chunker and renders the canonical summary. A
// chunker panic degrades to a plain-text summary instead of failing the
// render.
func (o *Orchestrator) chunkAndSummarize(page *types.PageRecord, opts Options) (chunks []types.Chunk, summary string) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("Chunking failed, degrading summary",
				zap.String("url", page.URL), zap.Any("panic", r))
			chunks = nil
			summary = truncate(page.TextContent, degradedSummaryLength)
		}
	}()

	all := chunker.ChunkPage(page, chunker.DefaultOptions())
	if opts.Query != "" {
		chunks = chunker.FindRelevant(all, opts.Query, opts.ChunkLimit)
	} else {
		chunks = all
		if len(chunks) > opts.ChunkLimit {
			chunks = chunks[:opts.ChunkLimit]
		}
	}
	return chunks, renderSummary(chunks)
}

// renderSummary produces the textual chunk digest: a header line per chunk,
// chunks separated by a bare --- line between blank lines.
func renderSummary(chunks []types.Chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		var sb strings.Builder
		fmt.Fprintf(&sb, "[chunk:%d] type=%s", c.ID, c.Type)
		if c.Section != "" {
			fmt.Fprintf(&sb, " section=%q", c.Section)
		}
		fmt.Fprintf(&sb, " score=%d\n%s", c.Score, c.Text)
		parts = append(parts, sb.String())
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// DetectSPA classifies raw HTML without rendering it.
func (o *Orchestrator) DetectSPA(html string) *types.DetectionReport {
	return detect.DetectSPA(html)
}

// CacheStats reports cache contents. Returns empty stats when the cache is
// disabled.
func (o *Orchestrator) CacheStats(ctx context.Context) (*types.CacheStats, error) {
	if o.cache == nil {
		return &types.CacheStats{Backends: map[string]int{}}, nil
	}
	stats, err := o.cache.Stats(ctx)
	if err == nil && o.metrics != nil {
		o.metrics.SetCacheEntries(float64(stats.Entries))
	}
	return stats, err
}

// InvalidateCache removes all cached entries for url and returns the count.
func (o *Orchestrator) InvalidateCache(ctx context.Context, url string) (int, error) {
	if o.cache == nil {
		return 0, nil
	}
	return o.cache.Invalidate(ctx, url)
}

func (o *Orchestrator) recordCacheLookup(outcome string) {
	if o.metrics != nil {
		o.metrics.RecordCacheLookup(outcome)
	}
}

func (o *Orchestrator) recordRender(backend string, start time.Time) {
	if o.metrics != nil {
		o.metrics.RecordRender(backend, time.Since(start).Seconds())
	}
}

// normalizeForce maps a force override onto a backend tag, or "" when the
// override is absent or unrecognized.
func normalizeForce(force string) string {
	switch strings.ToLower(force) {
	case types.BackendLite:
		return types.BackendLite
	case types.BackendBrowser, "playwright":
		return types.BackendBrowser
	default:
		return ""
	}
}

// renderKey derives the coalescing key from everything that shapes the
// result.
func renderKey(rawURL string, opts Options) string {
	d := xxhash.New()
	d.WriteString(rawURL)
	d.WriteString("\x00")
	d.WriteString(opts.Query)
	d.WriteString("\x00")
	d.WriteString(normalizeForce(opts.Force))
	fmt.Fprintf(d, "\x00%d\x00%t", opts.ChunkLimit, opts.NoCache)
	return fmt.Sprintf("%016x", d.Sum64())
}

func errorResult(rawURL string, report *types.DetectionReport, err error) *types.RenderResult {
	return &types.RenderResult{
		URL:       rawURL,
		Backend:   types.BackendError,
		Detection: report,
		Error:     err.Error(),
		ErrorType: classifyError(err),
	}
}

// classifyError maps pipeline errors onto the structured error types carried
// in results.
func classifyError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return types.ErrorTypeTimeout
	case errors.Is(err, context.Canceled):
		return types.ErrorTypeCancelled
	case errors.Is(err, lite.ErrFetchStatus):
		return types.ErrorTypeFetchStatus
	case errors.Is(err, browser.ErrUnavailable):
		return types.ErrorTypeBrowserUnavailable
	case errors.Is(err, browser.ErrNavigateFailed), errors.Is(err, browser.ErrExtractFailed):
		return types.ErrorTypeBrowserNavigation
	case errors.Is(err, cache.ErrCacheIO):
		return types.ErrorTypeCacheIO
	default:
		return types.ErrorTypeFetchFailure
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}
