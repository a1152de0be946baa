package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/maltedev/grocery-scraper/internal/browser"
	"github.com/maltedev/grocery-scraper/internal/config"
	"github.com/maltedev/grocery-scraper/internal/ratelimit"
)

// ListingPage is a listing page that has already been navigated to.
type ListingPage interface {
	WaitForContainer(ctx context.Context, timeout time.Duration) error
	WaitForFirstCard(ctx context.Context, timeout time.Duration) error
	CountCards(ctx context.Context) (int, error)
	ScrollToEnd(ctx context.Context) error
	// WaitForGrowth reports whether the card count rose above previous
	// before timeout. A timeout is not an error.
	WaitForGrowth(ctx context.Context, previous int, timeout time.Duration) (bool, error)
	State(ctx context.Context) (browser.PageState, error)
	CardIDs(ctx context.Context) ([]string, error)
}

type Termination string

const (
	TerminationStalled     Termination = "stalled"
	TerminationCapReached  Termination = "cap_reached"
	TerminationErrorBanner Termination = "error_banner"
	TerminationNoContainer Termination = "no_container"
	TerminationPageError   Termination = "page_error"
	TerminationCancelled   Termination = "cancelled"
)

type DiscoveryResult struct {
	IDs         []string
	Attempts    int
	Counts      []int
	Termination Termination
}

type DiscoveryOptions struct {
	MaxAttempts int
	// StallThreshold is the number of consecutive measurements without growth
	// that end the loop. One stops at the first pause, which can lose trailing
	// items on sites that load in bursts.
	StallThreshold      int
	GrowthTimeout       time.Duration
	ScrollDelayMin      time.Duration
	ScrollDelayMax      time.Duration
	InitialWaitAttempts int
	InitialWaitTimeout  time.Duration
	InitialBackoffMin   time.Duration
	InitialBackoffMax   time.Duration
	ContainerTimeout    time.Duration
}

func DefaultDiscoveryOptions() DiscoveryOptions {
	return DiscoveryOptions{
		MaxAttempts:         40,
		StallThreshold:      1,
		GrowthTimeout:       15 * time.Second,
		ScrollDelayMin:      1 * time.Second,
		ScrollDelayMax:      3 * time.Second,
		InitialWaitAttempts: 5,
		InitialWaitTimeout:  10 * time.Second,
		InitialBackoffMin:   2 * time.Second,
		InitialBackoffMax:   4 * time.Second,
		ContainerTimeout:    20 * time.Second,
	}
}

func DiscoveryOptionsFromConfig(cfg config.DiscoveryConfig) DiscoveryOptions {
	opts := DefaultDiscoveryOptions()
	opts.MaxAttempts = cfg.MaxScrollAttempts
	opts.StallThreshold = cfg.StallThreshold
	opts.GrowthTimeout = cfg.GrowthTimeout
	opts.ScrollDelayMin = cfg.ScrollDelayMin
	opts.ScrollDelayMax = cfg.ScrollDelayMax
	opts.InitialWaitAttempts = cfg.InitialWaitAttempts
	opts.InitialWaitTimeout = cfg.InitialWaitTimeout
	opts.ContainerTimeout = cfg.ContainerTimeout
	return opts
}

type Discoverer struct {
	opts   DiscoveryOptions
	sleep  func(ctx context.Context, min, max time.Duration) error
	logger *slog.Logger
}

func NewDiscoverer(opts DiscoveryOptions, logger *slog.Logger) *Discoverer {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.StallThreshold < 1 {
		opts.StallThreshold = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{
		opts:   opts,
		sleep:  ratelimit.Sleep,
		logger: logger.With("component", "discovery"),
	}
}

// Run scrolls page until the card count stops growing, the attempt cap is
// reached or the site shows an error banner, then returns the unique card
// identifiers seen. A page with no cards at all ends as stalled without error.
func (d *Discoverer) Run(ctx context.Context, page ListingPage) (DiscoveryResult, error) {
	res := DiscoveryResult{IDs: []string{}}

	if err := page.WaitForContainer(ctx, d.opts.ContainerTimeout); err != nil {
		res.Termination = TerminationNoContainer
		return res, fmt.Errorf("%w: %v", ErrContainerNotFound, err)
	}

	d.waitForFirstCard(ctx, page)

	last, stalls := -1, 0
	for attempt := 0; attempt < d.opts.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			res.Termination = TerminationCancelled
			break
		}

		if state, err := page.State(ctx); err == nil && state == browser.StateErrorBanner {
			d.logger.Warn("error banner detected, aborting category", "attempt", attempt+1)
			res.Termination = TerminationErrorBanner
			res.IDs = d.collect(ctx, page)
			return res, ErrErrorBanner
		}

		count, err := page.CountCards(ctx)
		if err != nil {
			d.logger.Error("failed to count cards", "attempt", attempt+1, "error", err)
			res.Termination = TerminationPageError
			break
		}
		res.Attempts = attempt + 1
		res.Counts = append(res.Counts, count)
		d.logger.Debug("measured cards", "attempt", attempt+1, "count", count)

		if count == last {
			stalls++
			if stalls >= d.opts.StallThreshold {
				res.Termination = TerminationStalled
				break
			}
		} else {
			stalls = 0
		}
		last = count

		if err := page.ScrollToEnd(ctx); err != nil {
			d.logger.Warn("scroll failed", "attempt", attempt+1, "error", err)
		}

		grew, err := page.WaitForGrowth(ctx, count, d.opts.GrowthTimeout)
		if err != nil {
			d.logger.Warn("waiting for new cards failed", "attempt", attempt+1, "error", err)
		} else if !grew {
			d.logger.Debug("no new cards after scroll", "attempt", attempt+1, "count", count)
		}

		if err := d.sleep(ctx, d.opts.ScrollDelayMin, d.opts.ScrollDelayMax); err != nil {
			res.Termination = TerminationCancelled
			break
		}
	}

	if res.Termination == "" {
		res.Termination = TerminationCapReached
	}

	res.IDs = d.collect(ctx, page)
	d.logger.Info("discovery finished",
		"attempts", res.Attempts,
		"termination", res.Termination,
		"ids", len(res.IDs))

	if res.Termination == TerminationCancelled {
		return res, ctx.Err()
	}
	return res, nil
}

func (d *Discoverer) waitForFirstCard(ctx context.Context, page ListingPage) {
	for attempt := 1; attempt <= d.opts.InitialWaitAttempts; attempt++ {
		err := page.WaitForFirstCard(ctx, d.opts.InitialWaitTimeout)
		if err == nil {
			return
		}
		d.logger.Warn("initial product cards not visible",
			"attempt", attempt, "max_attempts", d.opts.InitialWaitAttempts, "error", err)

		if attempt == d.opts.InitialWaitAttempts {
			break
		}
		if err := d.sleep(ctx, d.opts.InitialBackoffMin, d.opts.InitialBackoffMax); err != nil {
			return
		}
	}
	if d.opts.InitialWaitAttempts > 0 {
		d.logger.Warn("no product cards appeared, scrolling anyway")
	}
}

func (d *Discoverer) collect(ctx context.Context, page ListingPage) []string {
	raw, err := page.CardIDs(ctx)
	if err != nil {
		d.logger.Error("failed to read card identifiers", "error", err)
		return []string{}
	}

	seen := make(map[string]bool, len(raw))
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

