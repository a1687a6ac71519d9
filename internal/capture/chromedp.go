package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Defaults applied by NewChromedp when a field is left zero.
const (
	DefaultWidth             = 1920
	DefaultHeight            = 1080
	DefaultSettleDelay       = 8 * time.Second
	DefaultNavigationTimeout = 60 * time.Second
)

// Config controls the headless browser.
type Config struct {
	Width  int
	Height int
	// SettleDelay is waited after the body is ready so client-side rendering
	// can finish before the screenshot.
	SettleDelay time.Duration
	// NavigationTimeout bounds navigation, settling and the screenshot.
	NavigationTimeout time.Duration
	UserAgent         string
	// ExecPath overrides the Chrome binary chromedp would otherwise discover.
	ExecPath string
}

// Chromedp implements Capturer with one shared browser and one tab per call.
type Chromedp struct {
	cfg    Config
	logger *zap.Logger

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu      sync.Mutex
	started bool
}

// NewChromedp prepares an allocator. Chrome itself is launched on the first
// Capture call.
func NewChromedp(cfg Config, logger *zap.Logger) (*Chromedp, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(cfg.Width, cfg.Height),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	return &Chromedp{
		cfg:           cfg,
		logger:        logger,
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

func (c Config) withDefaults() (Config, error) {
	if c.Width < 0 || c.Height < 0 {
		return c, fmt.Errorf("viewport must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.SettleDelay < 0 {
		return c, errors.New("settle delay must be >= 0")
	}
	if c.Width == 0 {
		c.Width = DefaultWidth
	}
	if c.Height == 0 {
		c.Height = DefaultHeight
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = DefaultNavigationTimeout
	}
	return c, nil
}

// Close shuts the browser down.
func (c *Chromedp) Close() {
	c.browserCancel()
	c.allocCancel()
}

// Capture navigates a fresh tab to url and returns a full-page PNG.
func (c *Chromedp) Capture(ctx context.Context, url string) ([]byte, error) {
	if err := c.ensureBrowser(); err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(c.browserCtx)
	defer tabCancel()
	tabCtx, cancel := context.WithTimeout(tabCtx, c.cfg.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	start := time.Now()
	var buf []byte
	if err := chromedp.Run(tabCtx, c.actions(url, &buf)...); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("capture canceled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("chromedp run: %w", err)
	}
	if len(buf) == 0 {
		return nil, errors.New("chromedp returned an empty screenshot")
	}
	c.logger.Debug("page captured",
		zap.Int("bytes", len(buf)),
		zap.Duration("duration", time.Since(start)),
	)
	return buf, nil
}

func (c *Chromedp) actions(url string, buf *[]byte) []chromedp.Action {
	actions := []chromedp.Action{
		chromedp.EmulateViewport(int64(c.cfg.Width), int64(c.cfg.Height)),
	}
	if c.cfg.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(c.cfg.UserAgent))
	}
	return append(actions,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(c.cfg.SettleDelay),
		// quality 100 makes chromedp emit PNG instead of JPEG.
		chromedp.FullScreenshot(buf, 100),
	)
}

func (c *Chromedp) ensureBrowser() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	if err := chromedp.Run(c.browserCtx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	c.started = true
	return nil
}
