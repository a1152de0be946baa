package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/maltedev/grocery-scraper/internal/models"
	"github.com/playwright-community/playwright-go"
)

var (
	ErrErrorBanner       = errors.New("site error banner shown")
	ErrContainerNotFound = errors.New("listing container not found")
	ErrRedirectedAway    = errors.New("redirected away from product page")
)

// StatusError is a non-2xx detail response. Its message is what the
// log-mining utility searches for.
type StatusError struct {
	URL       string
	ProductID string
	Code      int
	Status    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch error for %s (ID: %s): unexpected status %s", e.URL, e.ProductID, e.Status)
}

// Forbidden reports whether the site refused the request outright.
func (e *StatusError) Forbidden() bool {
	return e.Code == 403 || e.Code == 429
}

type CategoryFetcher interface {
	FetchCategories(ctx context.Context, startURL, location string) ([]models.Category, error)
}

type Lister interface {
	Discover(ctx context.Context, category models.Category) (DiscoveryResult, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, productID string) ([]models.ProductRecord, error)
}

// PageOpener is satisfied by *browser.Browser.
type PageOpener interface {
	NewPage() (playwright.Page, error)
	NavigateWithRetry(page playwright.Page, url string, maxRetries int) error
}
