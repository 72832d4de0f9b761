// Package server exposes the rendering pipeline over HTTP.
package server

import (
	"context"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/agentweb/agentweb/internal/metrics"
	"github.com/agentweb/agentweb/internal/orchestrator"
	"github.com/agentweb/agentweb/pkg/types"
)

// Pipeline is the rendering backend behind the HTTP API. Satisfied by
// *orchestrator.Orchestrator.
type Pipeline interface {
	Render(ctx context.Context, url string, opts orchestrator.Options) *types.RenderResult
	DetectSPA(html string) *types.DetectionReport
	CacheStats(ctx context.Context) (*types.CacheStats, error)
	InvalidateCache(ctx context.Context, url string) (int, error)
}

// Server routes HTTP requests to the pipeline.
type Server struct {
	pipeline Pipeline
	metrics  *metrics.Metrics
	logger   *zap.Logger

	// defaults fills render options the request leaves unset.
	defaults orchestrator.Options
}

// New creates an HTTP server over the pipeline. metrics may be nil, which
// disables the /metrics endpoint and request counters. defaults supplies the
// configured chunk limit and timeout for requests that omit them.
func New(pipeline Pipeline, m *metrics.Metrics, defaults orchestrator.Options, logger *zap.Logger) *Server {
	return &Server{
		pipeline: pipeline,
		metrics:  m,
		logger:   logger,
		defaults: defaults,
	}
}

// Handler returns the fasthttp request handler with routing.
func (s *Server) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		method := string(ctx.Method())

		switch {
		case path == "/render" && (method == fasthttp.MethodPost || method == fasthttp.MethodGet):
			s.handleRender(ctx)
		case path == "/detect" && method == fasthttp.MethodPost:
			s.handleDetect(ctx)
		case path == "/cache/stats" && method == fasthttp.MethodGet:
			s.handleCacheStats(ctx)
		case path == "/cache/invalidate" && method == fasthttp.MethodPost:
			s.handleCacheInvalidate(ctx)
		case path == "/healthz" && method == fasthttp.MethodGet:
			s.handleHealth(ctx)
		case path == "/metrics" && method == fasthttp.MethodGet && s.metrics != nil:
			s.metrics.ServeHTTP(ctx)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			ctx.SetBodyString("Not Found")
			s.recordRequest(path, "404")
		}
	}
}

func (s *Server) recordRequest(path, status string) {
	if s.metrics != nil {
		s.metrics.RecordHTTPRequest(path, status)
	}
}
