package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/grocery-scraper/internal/browser"
	"github.com/maltedev/grocery-scraper/internal/models"
	"github.com/maltedev/grocery-scraper/internal/site"
	"github.com/playwright-community/playwright-go"
)

// playwrightListing binds the discovery loop to a live page.
type playwrightListing struct {
	page    playwright.Page
	adapter site.Adapter
}

func NewPlaywrightListing(page playwright.Page, adapter site.Adapter) ListingPage {
	return &playwrightListing{page: page, adapter: adapter}
}

func ms(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

func (l *playwrightListing) WaitForContainer(_ context.Context, timeout time.Duration) error {
	return l.adapter.LocateScrollContainer(l.page).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: ms(timeout),
	})
}

func (l *playwrightListing) WaitForFirstCard(_ context.Context, timeout time.Duration) error {
	return l.adapter.LocateProductCards(l.page).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: ms(timeout),
	})
}

func (l *playwrightListing) CountCards(_ context.Context) (int, error) {
	return l.adapter.LocateProductCards(l.page).Count()
}

const scrollScript = `(selector) => {
	const container = document.querySelector(selector);
	if (container) {
		container.scrollTo(0, container.scrollHeight);
	}
	window.scrollTo(0, document.body.scrollHeight);
}`

func (l *playwrightListing) ScrollToEnd(_ context.Context) error {
	_, err := l.page.Evaluate(scrollScript, l.adapter.Selectors().ScrollContainer)
	return err
}

const growthScript = `([selector, previous]) => document.querySelectorAll(selector).length > previous`

func (l *playwrightListing) WaitForGrowth(_ context.Context, previous int, timeout time.Duration) (bool, error) {
	_, err := l.page.WaitForFunction(growthScript,
		[]any{l.adapter.Selectors().ProductCard, previous},
		playwright.PageWaitForFunctionOptions{Timeout: ms(timeout)})
	if err == nil {
		return true, nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return false, nil
	}
	return false, err
}

func (l *playwrightListing) State(ctx context.Context) (browser.PageState, error) {
	return browser.Classify(ctx,
		l.adapter.LocateScrollContainer(l.page).First(),
		l.adapter.LocateErrorBanner(l.page).First(),
		0)
}

const cardIDScript = `(elements, attr) => elements.map((e) => e.getAttribute(attr)).filter(Boolean)`

func (l *playwrightListing) CardIDs(_ context.Context) ([]string, error) {
	raw, err := l.adapter.LocateProductCards(l.page).EvaluateAll(cardIDScript, l.adapter.CardIDAttribute())
	if err != nil {
		return nil, err
	}

	values, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected card id result %T", raw)
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids, nil
}

// ListingScraper opens one page per category on a shared browser context and
// runs the discovery loop on it.
type ListingScraper struct {
	browser        PageOpener
	adapter        site.Adapter
	discoverer     *Discoverer
	diagnosticsDir string
	logger         *slog.Logger
}

func NewListingScraper(b PageOpener, adapter site.Adapter, discoverer *Discoverer, diagnosticsDir string, logger *slog.Logger) *ListingScraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListingScraper{
		browser:        b,
		adapter:        adapter,
		discoverer:     discoverer,
		diagnosticsDir: diagnosticsDir,
		logger:         logger.With("component", "listing"),
	}
}

func (s *ListingScraper) Discover(ctx context.Context, category models.Category) (DiscoveryResult, error) {
	logger := s.logger.With("category", category.Name, "url", category.URL)

	page, err := s.browser.NewPage()
	if err != nil {
		return DiscoveryResult{IDs: []string{}}, err
	}
	defer page.Close()

	if err := s.browser.NavigateWithRetry(page, category.URL, 2); err != nil {
		s.saveDiagnostics(page, category.URL, "navigation failed")
		return DiscoveryResult{IDs: []string{}}, fmt.Errorf("failed to open %s: %w", category.URL, err)
	}

	res, err := s.discoverer.Run(ctx, NewPlaywrightListing(page, s.adapter))
	if err != nil || len(res.IDs) == 0 {
		reason := string(res.Termination)
		if err != nil {
			reason = err.Error()
		}
		logger.Warn("category produced no identifiers or failed", "termination", res.Termination, "error", err)
		s.saveDiagnostics(page, category.URL, reason)
	}

	return res, err
}

func (s *ListingScraper) saveDiagnostics(page playwright.Page, url, reason string) {
	if s.diagnosticsDir == "" {
		return
	}
	if err := browser.SaveDiagnostics(page, s.diagnosticsDir, url, reason); err != nil {
		s.logger.Warn("failed to save diagnostics", "url", url, "error", err)
	}
}
