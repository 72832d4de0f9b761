// Package browser drives a headless Chrome to render script-dependent pages
// into the same page-record shape the static parser produces. One browser
// process is shared; each render runs in its own tab behind a concurrency
// semaphore sized from system memory.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/agentweb/agentweb/pkg/types"
)

// Renderer owns the shared browser process. The process launches lazily on
// the first render, so construction never fails and a missing Chrome binary
// surfaces as ErrUnavailable per call.
type Renderer struct {
	cfg    *Config
	logger *zap.Logger
	sem    chan struct{}

	mu            sync.Mutex
	launched      bool
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	closeOnce sync.Once
}

// NewRenderer creates a browser renderer. The browser process is not started
// until the first Render call.
func NewRenderer(cfg *Config, logger *zap.Logger) *Renderer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Renderer{
		cfg:    cfg,
		logger: logger,
		sem:    make(chan struct{}, cfg.CalculateConcurrency()),
	}
}

func (r *Renderer) ensureBrowser() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.launched {
		if r.browserCtx.Err() != nil {
			return fmt.Errorf("%w: browser process has exited", ErrUnavailable)
		}
		return nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	r.allocCancel = allocCancel
	r.browserCtx = browserCtx
	r.browserCancel = browserCancel
	r.launched = true
	r.logger.Info("Headless browser launched",
		zap.Int("concurrency", cap(r.sem)))
	return nil
}

// Render navigates to rawURL in a fresh tab and extracts a PageRecord from
// the live DOM. The tab is always closed, including on error and timeout.
func (r *Renderer) Render(ctx context.Context, rawURL string, opts Options) (*types.PageRecord, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.WaitUntil == "" {
		opts.WaitUntil = DefaultWaitUntil
	}

	if err := r.ensureBrowser(); err != nil {
		return nil, err
	}

	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	start := time.Now()
	tabCtx, tabCancel := chromedp.NewContext(r.browserCtx)
	defer tabCancel()

	// Tear the tab down when the caller's context ends, so in-flight
	// navigation aborts instead of running to completion.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	record := &types.PageRecord{}
	err := chromedp.Run(tabCtx, r.buildTasks(rawURL, opts, record))

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		if errors.Is(err, ErrExtractFailed) || errors.Is(err, ErrNavigateFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrNavigateFailed, err)
	}

	if record.URL == "" {
		record.URL = rawURL
	}
	record.Backend = types.BackendBrowser
	record.RecomputeStats()

	r.logger.Debug("Browser render complete",
		zap.String("url", record.URL),
		zap.Int("links", record.Stats.LinkCount),
		zap.Int("text_len", record.Stats.TextLength),
		zap.Duration("elapsed", time.Since(start)))
	return record, nil
}

func (r *Renderer) buildTasks(rawURL string, opts Options, record *types.PageRecord) chromedp.Tasks {
	var fetchHandlerCount int64

	tasks := chromedp.Tasks{}

	if opts.BlockMedia {
		// Listeners must be installed before any CDP command runs.
		tasks = append(tasks, chromedp.ActionFunc(func(ctx context.Context) error {
			chromedp.ListenTarget(ctx, func(event interface{}) {
				ev, ok := event.(*fetch.EventRequestPaused)
				if !ok {
					return
				}
				atomic.AddInt64(&fetchHandlerCount, 1)
				go func(ev *fetch.EventRequestPaused) {
					defer atomic.AddInt64(&fetchHandlerCount, -1)

					cmdCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
					defer cancel()
					c := chromedp.FromContext(cmdCtx)
					executor := cdp.WithExecutor(cmdCtx, c.Target)

					if shouldBlock(ev.Request.URL, string(ev.ResourceType)) {
						if err := fetch.FailRequest(ev.RequestID, network.ErrorReasonAborted).Do(executor); err != nil {
							r.logger.Warn("Failed to block request",
								zap.String("url", ev.Request.URL),
								zap.Error(err))
						}
						return
					}
					if err := fetch.ContinueRequest(ev.RequestID).Do(executor); err != nil {
						// Fail rather than leave the request paused forever.
						fetch.FailRequest(ev.RequestID, network.ErrorReasonAborted).Do(executor)
					}
				}(ev)
			})
			return nil
		}))
	}

	tasks = append(tasks, network.Enable())
	if opts.BlockMedia {
		tasks = append(tasks, fetch.Enable())
	}
	tasks = append(tasks,
		enableLifecycle(),
		emulation.SetUserAgentOverride(UserAgent),
		emulation.SetDeviceMetricsOverride(ViewportWidth, ViewportHeight, 1.0, false),
		r.navigateAndWait(rawURL, opts),
		waitForVisibleText(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if err := chromedp.Evaluate(extractionJS(), record).Do(ctx); err != nil {
				return fmt.Errorf("%w: %v", ErrExtractFailed, err)
			}
			return nil
		}),
	)

	if opts.BlockMedia {
		// Let in-flight fetch handlers finish their CDP commands before the
		// tab is destroyed.
		tasks = append(tasks, chromedp.ActionFunc(func(ctx context.Context) error {
			timeout := time.After(5 * time.Second)
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				if atomic.LoadInt64(&fetchHandlerCount) <= 0 {
					return nil
				}
				select {
				case <-timeout:
					return nil
				case <-ticker.C:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}))
	}

	return tasks
}

// navigateAndWait navigates and waits for the configured lifecycle event.
// opts.Timeout bounds the navigation commit and the wait together; a commit
// that never arrives fails the render, while exceeding the lifecycle wait is
// benign and extraction proceeds with whatever rendered.
func (r *Renderer) navigateAndWait(rawURL string, opts Options) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		navCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		defer cancel()

		frameID, loaderID, _, _, err := page.Navigate(rawURL).Do(navCtx)
		if err != nil {
			if navCtx.Err() != nil && ctx.Err() == nil {
				return errors.Join(ErrNavigateFailed, context.DeadlineExceeded,
					fmt.Errorf("navigation did not commit within %s", opts.Timeout))
			}
			return errors.Join(ErrNavigateFailed, err)
		}

		err = waitForEvent(navCtx, lifecycleEventName(opts.WaitUntil), string(frameID), string(loaderID), opts.Timeout)
		if errors.Is(err, ErrWaitTimeout) || (errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil) {
			r.logger.Debug("Navigation wait timed out, extracting anyway",
				zap.String("url", rawURL),
				zap.String("wait_until", opts.WaitUntil),
				zap.Duration("timeout", opts.Timeout))
			return nil
		}
		return err
	}
}

func enableLifecycle() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		if err := page.Enable().Do(ctx); err != nil {
			return err
		}
		return page.SetLifecycleEventsEnabled(true).Do(ctx)
	}
}

// lifecycleEventName maps the public waitUntil values onto CDP lifecycle
// event names. Unknown values fall back to network idle.
func lifecycleEventName(waitUntil string) string {
	switch waitUntil {
	case "load":
		return "load"
	case "domcontentloaded":
		return "DOMContentLoaded"
	case "networkalmostidle":
		return "networkAlmostIdle"
	case "networkidle":
		return "networkIdle"
	default:
		return "networkIdle"
	}
}

// waitForEvent blocks until the named lifecycle event fires for the matching
// frame and loader, the context ends, or the timeout elapses.
func waitForEvent(ctx context.Context, eventName, frameID, loaderID string, timeout time.Duration) error {
	ch := make(chan struct{})

	listenerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	chromedp.ListenTarget(listenerCtx, func(ev interface{}) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok {
			if string(e.FrameID) == frameID && string(e.LoaderID) == loaderID && string(e.Name) == eventName {
				cancel()
				close(ch)
			}
		}
	})

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(timeout):
		return ErrWaitTimeout
	}
}

// waitForVisibleText polls the live document until its visible text exceeds
// the minimum, up to textWaitTimeout. Running out of time is benign; client
// frameworks that never produce text still get extracted as-is.
func waitForVisibleText() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		deadline := time.Now().Add(textWaitTimeout)
		for time.Now().Before(deadline) {
			var n int
			err := chromedp.Evaluate(`document.body ? document.body.innerText.length : 0`, &n).Do(ctx)
			if err == nil && n > textWaitMinChars {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
		}
		return nil
	}
}

// Close shuts the shared browser process down. Safe to call more than once
// and before the browser ever launched.
func (r *Renderer) Close() {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.launched {
			r.browserCancel()
			r.allocCancel()
			r.logger.Info("Headless browser stopped")
		}
	})
}
