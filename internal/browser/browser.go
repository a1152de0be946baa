package browser

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/grocery-scraper/internal/config"
	"github.com/playwright-community/playwright-go"
)

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	// UserDataDir switches to a persistent profile so cookies and the chosen
	// delivery location survive between runs.
	UserDataDir  string
	ExtraHeaders map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "en-US,en;q=0.9",
		TimezoneID:     "Asia/Kolkata",
		Locale:         "en-IN",
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"DNT":    "1",
		},
	}
}

func OptionsFromConfig(cfg config.BrowserConfig) *Options {
	opts := DefaultOptions()
	opts.Headless = cfg.Headless
	if cfg.Timeout > 0 {
		opts.Timeout = cfg.Timeout
	}
	if cfg.UserAgent != "" {
		opts.UserAgent = cfg.UserAgent
	}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		opts.ViewportWidth = cfg.ViewportWidth
		opts.ViewportHeight = cfg.ViewportHeight
	}
	if cfg.AcceptLanguage != "" {
		opts.AcceptLanguage = cfg.AcceptLanguage
	}
	if cfg.TimezoneID != "" {
		opts.TimezoneID = cfg.TimezoneID
	}
	if cfg.Locale != "" {
		opts.Locale = cfg.Locale
	}
	opts.ProxyServer = cfg.ProxyServer
	opts.UserDataDir = cfg.UserDataDir
	return opts
}

func (o *Options) launchArgs() []string {
	return []string{
		"--disable-blink-features=AutomationControlled",
		"--disable-dev-shm-usage",
		"--no-sandbox",
		"--disable-setuid-sandbox",
		fmt.Sprintf("--window-size=%d,%d", o.ViewportWidth, o.ViewportHeight),
	}
}

func (o *Options) headers() map[string]string {
	headers := make(map[string]string, len(o.ExtraHeaders)+1)
	for k, v := range o.ExtraHeaders {
		headers[k] = v
	}
	if o.AcceptLanguage != "" {
		headers["Accept-Language"] = o.AcceptLanguage
	}
	return headers
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	var proxy *playwright.Proxy
	if opts.ProxyServer != "" {
		proxy = &playwright.Proxy{Server: opts.ProxyServer}
	}
	viewport := &playwright.Size{Width: opts.ViewportWidth, Height: opts.ViewportHeight}

	b := &Browser{
		pw:     pw,
		opts:   opts,
		logger: slog.Default().With("component", "browser"),
	}

	if opts.UserDataDir != "" {
		ctx, err := pw.Chromium.LaunchPersistentContext(opts.UserDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless:         &opts.Headless,
			Args:             opts.launchArgs(),
			Proxy:            proxy,
			UserAgent:        &opts.UserAgent,
			Locale:           &opts.Locale,
			TimezoneId:       &opts.TimezoneID,
			Viewport:         viewport,
			ExtraHttpHeaders: opts.headers(),
		})
		if err != nil {
			pw.Stop()
			return nil, fmt.Errorf("failed to launch persistent context: %w", err)
		}
		b.context = ctx
		return b, nil
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args:     opts.launchArgs(),
		Proxy:    proxy,
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport:          viewport,
		ExtraHttpHeaders:  opts.headers(),
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	b.browser = browser
	b.context = context
	return b, nil
}

func (b *Browser) NewPage() (playwright.Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))

	return page, nil
}

func (b *Browser) Context() playwright.BrowserContext {
	return b.context
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (b *Browser) NavigateWithRetry(page playwright.Page, url string, maxRetries int) error {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			b.logger.Info("retrying navigation", "attempt", i+1, "url", url)
			time.Sleep(time.Duration(i+1) * time.Second)
		}

		_, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(2 * b.opts.Timeout.Milliseconds())),
		})
		if err == nil {
			return nil
		}

		lastErr = err
		b.logger.Error("navigation failed", "error", err, "attempt", i+1, "url", url)
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
