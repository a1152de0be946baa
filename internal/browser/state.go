package browser

import (
	"context"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

type PageState int

const (
	StateUnknown PageState = iota
	StateReady
	StateErrorBanner
	StateTimeout
)

func (s PageState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateErrorBanner:
		return "error_banner"
	case StateTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Probe is the part of playwright.Locator the classifier needs.
type Probe interface {
	IsVisible(options ...playwright.LocatorIsVisibleOptions) (bool, error)
}

var pollInterval = 250 * time.Millisecond

// Classify polls the ready and banner probes until one becomes visible or the
// timeout elapses. A visible banner wins over a ready element. When every
// probe call failed the state is Unknown rather than Timeout.
func Classify(ctx context.Context, ready, banner Probe, timeout time.Duration) (PageState, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	succeeded := false

	for {
		if banner != nil {
			visible, err := banner.IsVisible()
			if err != nil {
				lastErr = err
			} else {
				succeeded = true
				if visible {
					return StateErrorBanner, nil
				}
			}
		}

		visible, err := ready.IsVisible()
		if err != nil {
			lastErr = err
		} else {
			succeeded = true
			if visible {
				return StateReady, nil
			}
		}

		if !time.Now().Before(deadline) {
			if !succeeded {
				return StateUnknown, lastErr
			}
			return StateTimeout, nil
		}

		select {
		case <-ctx.Done():
			return StateUnknown, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// ClassifyContent inspects already rendered markup. It is used where only
// the page source is available.
func ClassifyContent(content string, bannerTexts []string) PageState {
	if strings.TrimSpace(content) == "" {
		return StateUnknown
	}
	lower := strings.ToLower(content)
	for _, text := range bannerTexts {
		if text != "" && strings.Contains(lower, strings.ToLower(text)) {
			return StateErrorBanner
		}
	}
	return StateReady
}
