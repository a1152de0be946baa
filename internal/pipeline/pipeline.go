package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/maltedev/grocery-scraper/internal/config"
	"github.com/maltedev/grocery-scraper/internal/models"
	"github.com/maltedev/grocery-scraper/internal/ratelimit"
	"github.com/maltedev/grocery-scraper/internal/scraper"
	"github.com/maltedev/grocery-scraper/internal/storage"
	"golang.org/x/sync/errgroup"
)

// Sink receives the records of each fetched product in addition to the
// records file.
type Sink interface {
	Name() string
	Write(ctx context.Context, runID string, records []models.ProductRecord) error
}

type Options struct {
	ListingConcurrency int
	DetailConcurrency  int
	CategoryDelayMin   time.Duration
	CategoryDelayMax   time.Duration
	MaxCategories      int
	Resume             bool
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ListingConcurrency: cfg.Discovery.ListingConcurrency,
		DetailConcurrency:  cfg.Detail.Concurrency,
		CategoryDelayMin:   cfg.Discovery.CategoryDelayMin,
		CategoryDelayMax:   cfg.Discovery.CategoryDelayMax,
		MaxCategories:      cfg.Discovery.MaxCategories,
		Resume:             cfg.Output.Resume,
	}
}

type Pipeline struct {
	categories scraper.CategoryFetcher
	lister     scraper.Lister
	fetcher    scraper.Fetcher
	ids        *storage.IDStore
	records    *storage.RecordStore
	sinks      []Sink
	opts       Options
	sleep      func(ctx context.Context, min, max time.Duration) error
	logger     *slog.Logger
}

type Deps struct {
	Categories scraper.CategoryFetcher
	Lister     scraper.Lister
	Fetcher    scraper.Fetcher
	IDs        *storage.IDStore
	Records    *storage.RecordStore
	Sinks      []Sink
}

func New(deps Deps, opts Options, logger *slog.Logger) *Pipeline {
	if opts.ListingConcurrency < 1 {
		opts.ListingConcurrency = 1
	}
	if opts.DetailConcurrency < 1 {
		opts.DetailConcurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		categories: deps.Categories,
		lister:     deps.Lister,
		fetcher:    deps.Fetcher,
		ids:        deps.IDs,
		records:    deps.Records,
		sinks:      deps.Sinks,
		opts:       opts,
		sleep:      ratelimit.Sleep,
		logger:     logger.With("component", "pipeline"),
	}
}

type RunInput struct {
	RunID    string
	StartURL string
	Location string
	// Categories skips the categories page when set.
	Categories []models.Category
	// ProductIDs skips discovery when set.
	ProductIDs []string
}

type Summary struct {
	RunID             string                      `json:"run_id"`
	Categories        int                         `json:"categories"`
	CategoriesFailed  int                         `json:"categories_failed"`
	CategoriesSkipped int                         `json:"categories_skipped"`
	Terminations      map[scraper.Termination]int `json:"terminations"`
	ProductIDs        int                         `json:"product_ids"`
	DetailsFailed     int                         `json:"details_failed"`
	Records           int                         `json:"records"`
	StartedAt         time.Time                   `json:"started_at"`
	FinishedAt        time.Time                   `json:"finished_at"`
}

func newSummary(runID string) *Summary {
	return &Summary{
		RunID:        runID,
		Terminations: make(map[scraper.Termination]int),
		StartedAt:    time.Now().UTC(),
	}
}

// Run executes categories, discovery and details in order. Only a failure to
// obtain the category list aborts the run; every later failure is per item.
func (p *Pipeline) Run(ctx context.Context, in RunInput) (*Summary, error) {
	summary := newSummary(in.RunID)
	logger := p.logger.With("run_id", in.RunID)

	if p.records != nil {
		if err := p.records.Reset(); err != nil {
			return nil, fmt.Errorf("failed to reset records: %w", err)
		}
	}

	ids := in.ProductIDs
	if ids == nil {
		categories := p.limit(in.Categories)
		if categories == nil {
			var err error
			categories, err = p.Categories(ctx, in.StartURL, in.Location)
			if err != nil {
				return nil, err
			}
		}

		ids = p.discover(ctx, categories, summary)
	}

	p.fetchDetails(ctx, in.RunID, ids, summary)

	if err := p.flush(); err != nil {
		return summary, err
	}

	summary.FinishedAt = time.Now().UTC()
	logger.Info("run finished",
		"categories", summary.Categories,
		"categories_failed", summary.CategoriesFailed,
		"product_ids", summary.ProductIDs,
		"details_failed", summary.DetailsFailed,
		"records", summary.Records,
		"duration", summary.FinishedAt.Sub(summary.StartedAt).String())

	return summary, ctx.Err()
}

// Categories fetches the category list, capped at MaxCategories.
func (p *Pipeline) Categories(ctx context.Context, startURL, location string) ([]models.Category, error) {
	if p.categories == nil {
		return nil, fmt.Errorf("no category source configured")
	}
	categories, err := p.categories.FetchCategories(ctx, startURL, location)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch categories: %w", err)
	}
	if categories == nil {
		categories = []models.Category{}
	}
	return p.limit(categories), nil
}

func (p *Pipeline) limit(categories []models.Category) []models.Category {
	if p.opts.MaxCategories > 0 && len(categories) > p.opts.MaxCategories {
		p.logger.Info("limiting categories", "max", p.opts.MaxCategories, "found", len(categories))
		return categories[:p.opts.MaxCategories]
	}
	return categories
}

// DiscoverIDs runs only the listing stage and returns the unique identifiers.
func (p *Pipeline) DiscoverIDs(ctx context.Context, categories []models.Category) ([]string, *Summary, error) {
	summary := newSummary("")
	ids := p.discover(ctx, p.limit(categories), summary)
	if err := p.flush(); err != nil {
		return ids, summary, err
	}
	summary.FinishedAt = time.Now().UTC()
	return ids, summary, ctx.Err()
}

// FetchDetails runs only the detail stage for the given identifiers.
func (p *Pipeline) FetchDetails(ctx context.Context, runID string, ids []string) (*Summary, error) {
	summary := newSummary(runID)
	p.fetchDetails(ctx, runID, ids, summary)
	if err := p.flush(); err != nil {
		return summary, err
	}
	summary.FinishedAt = time.Now().UTC()
	return summary, ctx.Err()
}

func (p *Pipeline) flush() error {
	if p.ids != nil {
		if err := p.ids.Flush(); err != nil {
			return fmt.Errorf("failed to write identifiers: %w", err)
		}
	}
	if p.records != nil {
		if err := p.records.Flush(); err != nil {
			return fmt.Errorf("failed to write records: %w", err)
		}
	}
	return nil
}

type listingResult struct {
	category models.Category
	result   scraper.DiscoveryResult
	err      error
}

func (p *Pipeline) discover(ctx context.Context, categories []models.Category, summary *Summary) []string {
	seen := make(map[string]bool)
	var resumed []string
	results := make(chan listingResult)
	done := make(chan struct{})

	// Single writer for the id set, the summary and the checkpoint file.
	go func() {
		defer close(done)
		for r := range results {
			logger := p.logger.With("category", r.category.Name, "url", r.category.URL)
			summary.Terminations[r.result.Termination]++

			if r.err != nil {
				summary.CategoriesFailed++
				logger.Error("listing discovery failed", "termination", r.result.Termination, "ids", len(r.result.IDs), "error", r.err)
			} else if len(r.result.IDs) == 0 {
				logger.Warn("category returned no identifiers", "termination", r.result.Termination)
			}

			for _, id := range r.result.IDs {
				seen[id] = true
			}

			if p.ids != nil && (r.err == nil || len(r.result.IDs) > 0) {
				if err := p.ids.Put(r.category, r.result.IDs); err != nil {
					logger.Error("failed to checkpoint identifiers", "error", err)
				}
			}
			logger.Info("category done", "ids", len(r.result.IDs), "total_unique", len(seen))
		}
	}()

	var g errgroup.Group
	g.SetLimit(p.opts.ListingConcurrency)

	for i, category := range categories {
		if ctx.Err() != nil {
			break
		}
		summary.Categories++

		if p.opts.Resume && p.ids != nil && p.ids.Has(category.URL) {
			prev, _ := p.ids.Get(category.URL)
			resumed = append(resumed, prev.ProductIDs...)
			summary.CategoriesSkipped++
			p.logger.Info("skipping category already on file", "category", category.Name)
			continue
		}

		p.logger.Info("scraping category", "index", i+1, "of", len(categories), "category", category.Name)
		g.Go(func() error {
			res, err := p.lister.Discover(ctx, category)
			results <- listingResult{category: category, result: res, err: err}
			if i < len(categories)-1 {
				p.sleep(ctx, p.opts.CategoryDelayMin, p.opts.CategoryDelayMax)
			}
			return nil
		})
	}

	g.Wait()
	close(results)
	<-done

	for _, id := range resumed {
		seen[id] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	summary.ProductIDs = len(ids)
	p.logger.Info("finished discovery", "categories", summary.Categories, "unique_ids", len(ids))
	if p.ids != nil {
		stats := p.ids.GetStats()
		p.logger.Info("identifier checkpoint", "categories", stats["categories"], "empty", stats["empty"], "ids", stats["ids"])
	}
	return ids
}

type detailResult struct {
	productID string
	records   []models.ProductRecord
	err       error
}

func (p *Pipeline) fetchDetails(ctx context.Context, runID string, ids []string, summary *Summary) {
	if summary.ProductIDs == 0 {
		summary.ProductIDs = len(ids)
	}
	results := make(chan detailResult)
	done := make(chan struct{})

	go func() {
		defer close(done)
		processed := 0
		for r := range results {
			processed++
			if r.err != nil {
				summary.DetailsFailed++
			}
			if len(r.records) == 0 {
				continue
			}

			for _, rec := range r.records {
				if problems := rec.Validate(); len(problems) > 0 {
					p.logger.Warn("record failed validation", "product_id", rec.ProductID, "problems", problems)
				}
			}
			summary.Records += len(r.records)
			if p.records != nil {
				if err := p.records.Append(r.records...); err != nil {
					p.logger.Error("failed to checkpoint records", "product_id", r.productID, "error", err)
				}
			}
			for _, sink := range p.sinks {
				if err := sink.Write(ctx, runID, r.records); err != nil {
					p.logger.Error("sink write failed", "sink", sink.Name(), "product_id", r.productID, "error", err)
				}
			}
			if processed%50 == 0 {
				p.logger.Info("detail progress", "processed", processed, "of", len(ids), "records", summary.Records)
			}
		}
	}()

	var g errgroup.Group
	g.SetLimit(p.opts.DetailConcurrency)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			records, err := p.fetcher.Fetch(ctx, id)
			results <- detailResult{productID: id, records: records, err: err}
			return nil
		})
	}

	g.Wait()
	close(results)
	<-done

	p.logger.Info("finished details", "ids", len(ids), "failed", summary.DetailsFailed, "records", summary.Records)
}
