package parser

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/grocery-scraper/internal/models"
)

// ParseCategories collects anchors whose path starts with pathPrefix and
// resolves them against baseURL. Links to other hosts are ignored. The result
// is deduplicated by absolute URL, keeping the first anchor's name.
func ParseCategories(html, baseURL, pathPrefix string) ([]models.Category, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	categories := make([]models.Category, 0)
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			slog.Debug("skipping unparsable category link", "href", href, "error", err)
			return
		}
		abs := base.ResolveReference(ref)
		if !strings.EqualFold(abs.Host, base.Host) || !strings.HasPrefix(abs.Path, pathPrefix) {
			return
		}
		abs.Fragment = ""

		key := abs.String()
		if seen[key] {
			return
		}
		seen[key] = true

		categories = append(categories, models.Category{
			Name: strings.Join(strings.Fields(s.Text()), " "),
			URL:  key,
		})
	})

	return categories, nil
}
