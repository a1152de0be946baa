package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/grocery-scraper/internal/browser"
	"github.com/maltedev/grocery-scraper/internal/models"
	"github.com/maltedev/grocery-scraper/internal/parser"
	"github.com/maltedev/grocery-scraper/internal/site"
	"github.com/playwright-community/playwright-go"
)

const FailedCategoriesFile = "failed_categories_page_html.html"

type CategoryScraper struct {
	browser        PageOpener
	adapter        site.Adapter
	diagnosticsDir string
	logger         *slog.Logger
}

func NewCategoryScraper(b PageOpener, adapter site.Adapter, diagnosticsDir string, logger *slog.Logger) *CategoryScraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &CategoryScraper{
		browser:        b,
		adapter:        adapter,
		diagnosticsDir: diagnosticsDir,
		logger:         logger.With("component", "categories"),
	}
}

// FetchCategories loads startURL, tries to set the delivery location and
// parses the category links from whatever the page renders. A failed
// location flow only logs. An empty result saves the markup for inspection.
func (s *CategoryScraper) FetchCategories(ctx context.Context, startURL, location string) ([]models.Category, error) {
	if startURL == "" {
		startURL = s.adapter.CategoriesURL()
	}

	page, err := s.browser.NewPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if err := s.browser.NavigateWithRetry(page, startURL, 3); err != nil {
		return nil, fmt.Errorf("failed to open categories page: %w", err)
	}

	sel := s.adapter.Selectors()
	if err := page.Locator(sel.BodyReady).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: ms(10 * time.Second),
	}); err != nil {
		s.logger.Warn("initial wait for body content timed out, proceeding")
	}

	if location != "" {
		if err := s.setLocation(ctx, page, location); err != nil {
			s.logger.Error("automated location setting failed", "location", location, "error", err)
			s.logger.Warn("proceeding with page content, category loading might have failed")
		}
	}

	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read categories page: %w", err)
	}
	s.logger.Info("fetched categories page", "bytes", len(html))

	categories, err := parser.ParseCategories(html, s.adapter.BaseURL(), s.adapter.CategoryPathPrefix())
	if err != nil {
		return nil, err
	}

	if len(categories) == 0 {
		state := browser.ClassifyContent(html, s.adapter.ErrorBannerTexts())
		s.logger.Error("no category links found on categories page", "url", startURL, "page_state", state.String())
		if s.diagnosticsDir != "" {
			if path, err := browser.SaveHTML(s.diagnosticsDir, FailedCategoriesFile, html); err != nil {
				s.logger.Warn("failed to save categories page", "error", err)
			} else {
				s.logger.Info("saved categories page for inspection", "path", path)
			}
		}
		return categories, nil
	}

	s.logger.Info("parsed categories", "count", len(categories))
	return categories, nil
}

func (s *CategoryScraper) setLocation(ctx context.Context, page playwright.Page, location string) error {
	sel := s.adapter.Selectors()
	visible := func(selector string, timeout time.Duration) (playwright.Locator, error) {
		loc := page.Locator(selector).First()
		err := loc.WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: ms(timeout),
		})
		return loc, err
	}

	trigger, err := visible(sel.LocationTrigger, 20*time.Second)
	if err != nil {
		return fmt.Errorf("location picker not found: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Second):
	}

	if err := trigger.Click(); err != nil {
		return fmt.Errorf("failed to open location picker: %w", err)
	}

	input, err := visible(sel.LocationInput, 15*time.Second)
	if err != nil {
		return fmt.Errorf("location input not found: %w", err)
	}
	if err := input.Fill(location); err != nil {
		return fmt.Errorf("failed to type location: %w", err)
	}

	suggestion, err := visible(sel.LocationSuggestion, 15*time.Second)
	if err != nil {
		return fmt.Errorf("no location suggestions: %w", err)
	}
	if err := suggestion.Click(); err != nil {
		return fmt.Errorf("failed to pick suggestion: %w", err)
	}

	if err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: ms(45 * time.Second),
	}); err != nil {
		s.logger.Warn("page did not reach network idle after location change", "error", err)
	}

	if _, err := visible(sel.CategoryLink, 15*time.Second); err != nil {
		return fmt.Errorf("category links did not appear after setting location: %w", err)
	}

	s.logger.Info("delivery location set", "location", location)
	return nil
}
