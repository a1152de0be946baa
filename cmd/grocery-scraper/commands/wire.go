package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/maltedev/grocery-scraper/internal/browser"
	"github.com/maltedev/grocery-scraper/internal/database"
	"github.com/maltedev/grocery-scraper/internal/events"
	"github.com/maltedev/grocery-scraper/internal/pipeline"
	"github.com/maltedev/grocery-scraper/internal/scraper"
	"github.com/maltedev/grocery-scraper/internal/site"
	"github.com/maltedev/grocery-scraper/internal/storage"
	"github.com/redis/go-redis/v9"
)

// stack owns everything a command opens so it can be closed in one place.
type stack struct {
	adapter  *site.Blinkit
	browser  *browser.Browser
	pipeline *pipeline.Pipeline
	closers  []func()
}

func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

type stackOptions struct {
	browser bool
	sinks   bool
	extra   []pipeline.Sink
}

func buildStack(ctx context.Context, o stackOptions) (*stack, error) {
	s := &stack{adapter: site.NewBlinkit(cfg.Site.BaseURL).WithSelectors(site.Selectors{
		ScrollContainer: cfg.Site.ScrollContainerSelector,
		ProductCard:     cfg.Site.ProductCardSelector,
		ErrorBanner:     cfg.Site.ErrorBannerSelector,
	})}

	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	ids, err := storage.NewIDStore(cfg.Output.IDsFile)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Fetcher: scraper.NewDetailScraper(s.adapter, scraper.DetailOptionsFromConfig(cfg.Detail, cfg.Output), log),
		IDs:     ids,
		Records: storage.NewRecordStore(cfg.Output.RecordsFile),
		Sinks:   o.extra,
	}

	if o.browser {
		b, err := browser.New(browser.OptionsFromConfig(cfg.Browser))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize browser: %w", err)
		}
		s.browser = b
		s.closers = append(s.closers, func() {
			if err := b.Close(); err != nil {
				log.Warn("failed to close browser", "error", err)
			}
		})

		deps.Categories = scraper.NewCategoryScraper(b, s.adapter, cfg.Output.DiagnosticsDir, log)
		discoverer := scraper.NewDiscoverer(scraper.DiscoveryOptionsFromConfig(cfg.Discovery), log)
		deps.Lister = scraper.NewListingScraper(b, s.adapter, discoverer, filepath.Join(cfg.Output.DiagnosticsDir, "listings"), log)
	}

	if o.sinks {
		sinks, err := s.openSinks(ctx)
		if err != nil {
			return nil, err
		}
		deps.Sinks = append(deps.Sinks, sinks...)
	}

	s.pipeline = pipeline.New(deps, pipeline.OptionsFromConfig(cfg), log)
	ok = true
	return s, nil
}

func (s *stack) openSinks(ctx context.Context) ([]pipeline.Sink, error) {
	var sinks []pipeline.Sink

	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.ConfigFromSettings(cfg.Database))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.closers = append(s.closers, db.Close)

		if err := db.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		sinks = append(sinks, database.NewRecordSink(db, log))
		log.Info("mirroring records to postgres", "database", cfg.Database.Name)
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.closers = append(s.closers, func() { client.Close() })

		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		sinks = append(sinks, events.NewPublisher(client, cfg.Redis.Stream, log))
		log.Info("publishing records to redis", "stream", cfg.Redis.Stream)
	}

	return sinks, nil
}
