package server

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/agentweb/agentweb/internal/common/requestid"
)

// renderRequest is the POST /render body. GET /render accepts the same
// fields as query parameters.
type renderRequest struct {
	URL        string `json:"url"`
	Query      string `json:"query"`
	Force      string `json:"force"`
	ChunkLimit int    `json:"chunk_limit"`
	Timeout    string `json:"timeout"` // Go duration string, e.g. "20s"
	NoCache    bool   `json:"no_cache"`
}

type detectRequest struct {
	HTML string `json:"html"`
}

type invalidateRequest struct {
	URL string `json:"url"`
}

type invalidateResponse struct {
	URL     string `json:"url"`
	Removed int    `json:"removed"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRender(ctx *fasthttp.RequestCtx) {
	reqID := requestid.Generate(string(ctx.Request.Header.Peek("X-Request-ID")))
	ctx.Response.Header.Set("X-Request-ID", reqID)

	req, err := parseRenderRequest(ctx)
	if err != nil {
		s.writeError(ctx, fasthttp.StatusBadRequest, err.Error(), "/render")
		return
	}

	opts := s.defaults
	opts.Force = req.Force
	opts.Query = req.Query
	opts.NoCache = req.NoCache
	if req.ChunkLimit > 0 {
		opts.ChunkLimit = req.ChunkLimit
	}
	if req.Timeout != "" {
		timeout, err := time.ParseDuration(req.Timeout)
		if err != nil || timeout <= 0 {
			s.writeError(ctx, fasthttp.StatusBadRequest, fmt.Sprintf("invalid timeout: %s", req.Timeout), "/render")
			return
		}
		opts.Timeout = timeout
	}

	result := s.pipeline.Render(ctx, req.URL, opts)

	s.logger.Info("Render request served",
		zap.String("request_id", reqID),
		zap.String("url", req.URL),
		zap.String("backend", result.Backend),
		zap.Bool("cached", result.Cached),
		zap.Int64("ms", result.Ms))

	s.writeJSON(ctx, fasthttp.StatusOK, result, "/render")
}

// parseRenderRequest reads render parameters from the JSON body on POST and
// from query parameters on GET.
func parseRenderRequest(ctx *fasthttp.RequestCtx) (*renderRequest, error) {
	var req renderRequest

	if ctx.IsPost() {
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
	} else {
		args := ctx.QueryArgs()
		req.URL = string(args.Peek("url"))
		req.Query = string(args.Peek("query"))
		req.Force = string(args.Peek("force"))
		req.Timeout = string(args.Peek("timeout"))
		req.NoCache = args.GetBool("no_cache")
		if v := args.Peek("chunk_limit"); len(v) > 0 {
			n, err := strconv.Atoi(string(v))
			if err != nil {
				return nil, fmt.Errorf("invalid chunk_limit: %s", v)
			}
			req.ChunkLimit = n
		}
	}

	if req.URL == "" {
		return nil, fmt.Errorf("url field is required")
	}
	if req.ChunkLimit < 0 {
		return nil, fmt.Errorf("chunk_limit must be >= 0")
	}
	return &req, nil
}

// handleDetect classifies raw HTML without fetching or rendering. Accepts a
// JSON body with an html field, or raw HTML for non-JSON content types.
func (s *Server) handleDetect(ctx *fasthttp.RequestCtx) {
	body := ctx.PostBody()
	if len(body) == 0 {
		s.writeError(ctx, fasthttp.StatusBadRequest, "request body is required", "/detect")
		return
	}

	html := string(body)
	if string(ctx.Request.Header.ContentType()) == "application/json" {
		var req detectRequest
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeError(ctx, fasthttp.StatusBadRequest, "invalid JSON body", "/detect")
			return
		}
		if req.HTML == "" {
			s.writeError(ctx, fasthttp.StatusBadRequest, "html field is required", "/detect")
			return
		}
		html = req.HTML
	}

	report := s.pipeline.DetectSPA(html)
	s.writeJSON(ctx, fasthttp.StatusOK, report, "/detect")
}

func (s *Server) handleCacheStats(ctx *fasthttp.RequestCtx) {
	stats, err := s.pipeline.CacheStats(ctx)
	if err != nil {
		s.writeError(ctx, fasthttp.StatusInternalServerError, "failed to read cache stats", "/cache/stats")
		s.logger.Error("Cache stats failed", zap.Error(err))
		return
	}
	s.writeJSON(ctx, fasthttp.StatusOK, stats, "/cache/stats")
}

func (s *Server) handleCacheInvalidate(ctx *fasthttp.RequestCtx) {
	var req invalidateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		s.writeError(ctx, fasthttp.StatusBadRequest, "invalid JSON body", "/cache/invalidate")
		return
	}
	if req.URL == "" {
		s.writeError(ctx, fasthttp.StatusBadRequest, "url field is required", "/cache/invalidate")
		return
	}

	removed, err := s.pipeline.InvalidateCache(ctx, req.URL)
	if err != nil {
		s.writeError(ctx, fasthttp.StatusInternalServerError, "failed to invalidate cache", "/cache/invalidate")
		s.logger.Error("Cache invalidation failed", zap.String("url", req.URL), zap.Error(err))
		return
	}

	s.writeJSON(ctx, fasthttp.StatusOK, invalidateResponse{URL: req.URL, Removed: removed}, "/cache/invalidate")
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	s.writeJSON(ctx, fasthttp.StatusOK, healthResponse{Status: "ok"}, "/healthz")
}

// writeJSON writes a JSON response with proper error handling
func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, statusCode int, response interface{}, path string) {
	body, err := json.Marshal(response)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(`{"error":"failed to marshal response"}`)
		ctx.SetContentType("application/json")
		s.recordRequest(path, "500")
		s.logger.Error("Failed to marshal JSON response",
			zap.String("path", path),
			zap.Error(err))
		return
	}

	ctx.SetStatusCode(statusCode)
	ctx.SetBody(body)
	ctx.SetContentType("application/json")
	s.recordRequest(path, strconv.Itoa(statusCode))
}

func (s *Server) writeError(ctx *fasthttp.RequestCtx, statusCode int, errorMsg, path string) {
	s.writeJSON(ctx, statusCode, errorResponse{Error: errorMsg}, path)
}
