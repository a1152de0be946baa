// Package site describes the markup and URL layout of a quick-commerce storefront.
// Scrapers only talk to an Adapter, so a markup change touches one place.
package site

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/playwright-community/playwright-go"
)

type Selectors struct {
	BodyReady          string
	LocationTrigger    string
	LocationInput      string
	LocationSuggestion string
	CategoryLink       string
	ScrollContainer    string
	ProductCard        string
	ErrorBanner        string
}

type Adapter interface {
	Name() string
	Selectors() Selectors

	BaseURL() string
	CategoriesURL() string
	ProductURL(productID string) string

	CategoryPathPrefix() string
	ProductPathMarker() string
	StateMarker() string
	CardIDAttribute() string
	ErrorBannerTexts() []string

	LocateScrollContainer(page playwright.Page) playwright.Locator
	LocateProductCards(page playwright.Page) playwright.Locator
	LocateErrorBanner(page playwright.Page) playwright.Locator
}

type Blinkit struct {
	baseURL   string
	selectors Selectors
}

var BlinkitSelectors = Selectors{
	BodyReady:          "body > div:first-child",
	LocationTrigger:    "div.LocationBar__Container-sc-x8ezho-6",
	LocationInput:      `input[name="select-locality"][placeholder*="search delivery location"]`,
	LocationSuggestion: "div.LocationSearchList__LocationListContainer-sc-93rfr7-0",
	CategoryLink:       `a[href^="/cn/"]`,
	ScrollContainer:    "#plpContainer",
	ProductCard:        `#plpContainer div[id][tabindex="0"][role="button"]`,
	ErrorBanner:        "text=/something went wrong|oops!/i",
}

func NewBlinkit(baseURL string) *Blinkit {
	if baseURL == "" {
		baseURL = "https://blinkit.com"
	}
	return &Blinkit{
		baseURL:   strings.TrimRight(baseURL, "/"),
		selectors: BlinkitSelectors,
	}
}

func (b *Blinkit) Name() string { return "blinkit" }

func (b *Blinkit) Selectors() Selectors { return b.selectors }

func (b *Blinkit) BaseURL() string { return b.baseURL }

func (b *Blinkit) CategoriesURL() string { return b.baseURL + "/categories" }

// ProductURL builds a detail URL with a placeholder slug. The site redirects
// to the canonical slug as long as the identifier is valid.
func (b *Blinkit) ProductURL(productID string) string {
	return fmt.Sprintf("%s/prn/product/prid/%s", b.baseURL, url.PathEscape(productID))
}

func (b *Blinkit) CategoryPathPrefix() string { return "/cn/" }

func (b *Blinkit) ProductPathMarker() string { return "/prid/" }

func (b *Blinkit) StateMarker() string { return "window.grofers.PRELOADED_STATE = " }

func (b *Blinkit) CardIDAttribute() string { return "id" }

func (b *Blinkit) ErrorBannerTexts() []string {
	return []string{"Something went wrong", "Oops!"}
}

func (b *Blinkit) LocateScrollContainer(page playwright.Page) playwright.Locator {
	return page.Locator(b.selectors.ScrollContainer)
}

func (b *Blinkit) LocateProductCards(page playwright.Page) playwright.Locator {
	return page.Locator(b.selectors.ProductCard)
}

func (b *Blinkit) LocateErrorBanner(page playwright.Page) playwright.Locator {
	return page.Locator(b.selectors.ErrorBanner)
}

// WithSelectors returns a copy of the adapter using overridden selectors.
// Empty fields keep their current value.
func (b *Blinkit) WithSelectors(s Selectors) *Blinkit {
	merged := b.selectors
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&merged.BodyReady, s.BodyReady)
	override(&merged.LocationTrigger, s.LocationTrigger)
	override(&merged.LocationInput, s.LocationInput)
	override(&merged.LocationSuggestion, s.LocationSuggestion)
	override(&merged.CategoryLink, s.CategoryLink)
	override(&merged.ScrollContainer, s.ScrollContainer)
	override(&merged.ProductCard, s.ProductCard)
	override(&merged.ErrorBanner, s.ErrorBanner)

	return &Blinkit{baseURL: b.baseURL, selectors: merged}
}

// IsProductURL reports whether a final response URL still points at a
// product page after redirects.
func IsProductURL(a Adapter, finalURL string) bool {
	return strings.Contains(finalURL, a.ProductPathMarker())
}
