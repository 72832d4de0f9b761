package lite

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

// UserAgent is sent on every lite fetch.
const UserAgent = "AgentWeb/0.2 (AI Agent Renderer)"

const (
	// DefaultTimeout bounds a single raw fetch.
	DefaultTimeout = 15 * time.Second

	// defaultMaxBody caps how much HTML is read from the origin.
	defaultMaxBody = 20 * 1024 * 1024
)

// FetchResult is the outcome of one raw HTML fetch. FinalURL reflects
// redirects; HTML is decoded to UTF-8.
type FetchResult struct {
	HTML        string
	FinalURL    string
	StatusCode  int
	ContentType string
}

// Client fetches raw HTML over HTTP(S) with the AgentWeb request profile.
type Client struct {
	httpClient *http.Client
	maxBody    int64
	logger     *zap.Logger
}

// NewClient creates a fetch client. A zero timeout selects DefaultTimeout and
// a zero maxBody selects the built-in cap.
func NewClient(timeout time.Duration, maxBody int64, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		maxBody:    maxBody,
		logger:     logger,
	}
}

// Fetch performs a GET against rawURL, following redirects and recording the
// final URL. Non-2xx responses fail with ErrFetchStatus. The body is decoded
// to UTF-8 based on the response charset.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	defer resp.Body.Close()

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: HTTP %d from %s", ErrFetchStatus, resp.StatusCode, finalURL)
	}

	contentType := resp.Header.Get("Content-Type")

	// Decode to UTF-8 using the declared or sniffed charset.
	reader, err := charset.NewReader(io.LimitReader(resp.Body, c.maxBody), contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: charset: %v", ErrFetchFailure, err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: read body: %v", ErrFetchFailure, err)
	}

	c.logger.Debug("Fetched raw HTML",
		zap.String("url", rawURL),
		zap.String("final_url", finalURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)))

	return &FetchResult{
		HTML:        string(body),
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
	}, nil
}
