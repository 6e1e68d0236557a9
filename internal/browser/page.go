// Package browser drives a remote Chrome tab over the DevTools protocol.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

const (
	// maxObservedText bounds the visible text returned by Observe.
	maxObservedText = 4000

	settleDelay = 300 * time.Millisecond
)

// ErrPageClosed is returned by operations on a closed page.
var ErrPageClosed = errors.New("browser page closed")

// Observation is a text snapshot of the current page.
type Observation struct {
	URL   string
	Title string
	Text  string
}

// Page is a single tab attached to a remote browser.
type Page struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	logger      *slog.Logger

	mu     sync.Mutex
	closed bool
}

// ConnectOptions tunes how a page attaches to the remote browser.
type ConnectOptions struct {
	// NoModifyURL uses the endpoint as a websocket URL verbatim instead of
	// resolving it through /json/version.
	NoModifyURL bool
	Logger      *slog.Logger
}

// Connect attaches a new tab to the browser behind endpoint. The page lives
// until Close is called or parent is cancelled.
func Connect(parent context.Context, endpoint string, opts ConnectOptions) (*Page, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var allocOpts []chromedp.RemoteAllocatorOption
	if opts.NoModifyURL {
		allocOpts = append(allocOpts, chromedp.NoModifyURL)
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(parent, endpoint, allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("attach to browser: %w", err)
	}

	logger.Debug("Attached to remote browser")
	return &Page{
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}, nil
}

// run executes actions on the page, aborting when either ctx or the page ends.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPageClosed
	}

	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Navigate loads url and waits for the document body to be ready.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("Navigating", "url", url)
	if err := p.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(settleDelay),
	); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// Screenshot captures the viewport as PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

// Click clicks the first element matching selector.
func (p *Page) Click(ctx context.Context, selector string) error {
	if err := p.run(ctx,
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.Sleep(settleDelay),
	); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// Type replaces the value of the element matching selector with text.
func (p *Page) Type(ctx context.Context, selector, text string) error {
	if err := p.run(ctx,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("type into %s: %w", selector, err)
	}
	return nil
}

// Press sends a named key ("Enter", "Tab", "Escape") to the focused element.
func (p *Page) Press(ctx context.Context, key string) error {
	var seq string
	switch strings.ToLower(key) {
	case "enter", "return":
		seq = kb.Enter
	case "tab":
		seq = kb.Tab
	case "escape", "esc":
		seq = kb.Escape
	case "backspace":
		seq = kb.Backspace
	default:
		seq = key
	}
	if err := p.run(ctx, chromedp.KeyEvent(seq), chromedp.Sleep(settleDelay)); err != nil {
		return fmt.Errorf("press %s: %w", key, err)
	}
	return nil
}

// Scroll scrolls the viewport vertically by dy pixels.
func (p *Page) Scroll(ctx context.Context, dy int) error {
	if err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseWheel, 200, 200).
			WithDeltaX(0).
			WithDeltaY(float64(dy)).
			Do(ctx)
	})); err != nil {
		return fmt.Errorf("scroll %d: %w", dy, err)
	}
	return nil
}

// Observe returns the page URL, title and a bounded slice of visible text.
func (p *Page) Observe(ctx context.Context) (*Observation, error) {
	var obs Observation
	if err := p.run(ctx,
		chromedp.Location(&obs.URL),
		chromedp.Title(&obs.Title),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &obs.Text),
	); err != nil {
		return nil, fmt.Errorf("observe page: %w", err)
	}
	obs.Text = truncateRunes(strings.TrimSpace(obs.Text), maxObservedText)
	return &obs, nil
}

// Close detaches from the remote browser. Safe to call more than once.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.cancel()
	p.allocCancel()
	p.logger.Debug("Detached from remote browser")
	return nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
