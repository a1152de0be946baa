package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/maltedev/grocery-scraper/internal/browser"
	"github.com/maltedev/grocery-scraper/internal/config"
	"github.com/maltedev/grocery-scraper/internal/models"
	"github.com/maltedev/grocery-scraper/internal/parser"
	"github.com/maltedev/grocery-scraper/internal/ratelimit"
	"github.com/maltedev/grocery-scraper/internal/site"
)

type DetailOptions struct {
	Timeout   time.Duration
	DelayMin  time.Duration
	DelayMax  time.Duration
	UserAgent string
	// FailedHTMLDir keeps pages whose state could not be parsed. Empty
	// disables it.
	FailedHTMLDir string
}

func DetailOptionsFromConfig(cfg config.DetailConfig, out config.OutputConfig) DetailOptions {
	opts := DetailOptions{
		Timeout:   cfg.Timeout,
		DelayMin:  cfg.DelayMin,
		DelayMax:  cfg.DelayMax,
		UserAgent: cfg.UserAgent,
	}
	if out.SaveFailedHTML {
		opts.FailedHTMLDir = filepath.Join(out.DiagnosticsDir, "details")
	}
	return opts
}

// DetailScraper fetches product pages over plain HTTP. Detail pages render
// their state server side, so no browser is needed.
type DetailScraper struct {
	client  *resty.Client
	adapter site.Adapter
	parser  parser.Parser
	limiter *ratelimit.AdaptiveRateLimiter
	htmlDir string
	logger  *slog.Logger
}

func NewDetailScraper(adapter site.Adapter, opts DetailOptions, logger *slog.Logger) *DetailScraper {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10)).
		SetHeaders(map[string]string{
			"User-Agent":      opts.UserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Referer":         adapter.BaseURL() + "/",
			"DNT":             "1",
		})

	return &DetailScraper{
		client:  client,
		adapter: adapter,
		parser:  parser.NewStateParser(adapter.StateMarker()),
		limiter: ratelimit.NewAdaptiveRateLimiter(opts.DelayMin, opts.DelayMax),
		htmlDir: opts.FailedHTMLDir,
		logger:  logger.With("component", "detail"),
	}
}

// Fetch returns the records of every variant on the product's detail page.
// Every failure is logged here and comes back with an empty slice, so callers
// only need the error for accounting.
func (s *DetailScraper) Fetch(ctx context.Context, productID string) ([]models.ProductRecord, error) {
	productURL := s.adapter.ProductURL(productID)
	logger := s.logger.With("product_id", productID)

	if err := s.limiter.Wait(ctx); err != nil {
		return []models.ProductRecord{}, err
	}

	logger.Debug("fetching detail page", "url", productURL)
	resp, err := s.client.R().SetContext(ctx).Get(productURL)
	if err != nil {
		err = fmt.Errorf("fetch error for %s (ID: %s): %w", productURL, productID, err)
		logger.Error("detail fetch failed", "error", err)
		return []models.ProductRecord{}, err
	}

	if resp.IsError() {
		statusErr := &StatusError{
			URL:       productURL,
			ProductID: productID,
			Code:      resp.StatusCode(),
			Status:    resp.Status(),
		}
		if statusErr.Forbidden() {
			s.limiter.RecordError()
		}
		logger.Error("detail fetch failed", "status", resp.StatusCode(), "error", statusErr)
		return []models.ProductRecord{}, statusErr
	}
	s.limiter.RecordSuccess()

	finalURL := productURL
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		finalURL = resp.RawResponse.Request.URL.String()
	}
	if !site.IsProductURL(s.adapter, finalURL) {
		logger.Warn("redirected away from product page", "final_url", finalURL)
		return []models.ProductRecord{}, fmt.Errorf("%w: %s", ErrRedirectedAway, finalURL)
	}

	records, err := s.parser.ParseProductPage(resp.String(), productID, finalURL)
	if err != nil {
		switch {
		case errors.Is(err, parser.ErrMalformedEmbeddedState):
			logger.Error("could not read embedded state", "url", finalURL, "error", err)
		case errors.Is(err, parser.ErrNoProductData):
			logger.Error("no variant or product data in embedded state", "url", finalURL)
		}
		if s.htmlDir != "" {
			if path, saveErr := browser.SaveHTML(s.htmlDir, productID+".html", resp.String()); saveErr == nil {
				logger.Info("saved unparsed page", "path", path)
			}
		}
		return []models.ProductRecord{}, err
	}

	logger.Info("extracted variants", "count", len(records))
	return records, nil
}
