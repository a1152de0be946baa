package scraper

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/maltedev/grocery-scraper/internal/browser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeListing replays a scripted sequence of card counts. Each scroll moves
// to the next entry; the last entry repeats.
type fakeListing struct {
	counts       []int
	step         int
	containerErr error
	firstCardErr error
	bannerAt     int
	countErr     error

	firstCardCalls int
	scrolls        int
}

func (f *fakeListing) current() int {
	if f.step >= len(f.counts) {
		return f.counts[len(f.counts)-1]
	}
	return f.counts[f.step]
}

func (f *fakeListing) WaitForContainer(context.Context, time.Duration) error {
	return f.containerErr
}

func (f *fakeListing) WaitForFirstCard(context.Context, time.Duration) error {
	f.firstCardCalls++
	return f.firstCardErr
}

func (f *fakeListing) CountCards(context.Context) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.current(), nil
}

func (f *fakeListing) ScrollToEnd(context.Context) error {
	f.scrolls++
	f.step++
	return nil
}

func (f *fakeListing) WaitForGrowth(_ context.Context, previous int, _ time.Duration) (bool, error) {
	return f.current() > previous, nil
}

func (f *fakeListing) State(context.Context) (browser.PageState, error) {
	if f.bannerAt > 0 && f.scrolls+1 >= f.bannerAt {
		return browser.StateErrorBanner, nil
	}
	return browser.StateTimeout, nil
}

func (f *fakeListing) CardIDs(context.Context) ([]string, error) {
	n := f.current()
	ids := make([]string, 0, n+1)
	for i := 0; i < n; i++ {
		ids = append(ids, fmt.Sprintf("p%03d", i))
	}
	if n > 0 {
		ids = append(ids, "p000", "")
	}
	return ids, nil
}

func testDiscoverer(maxAttempts, stallThreshold int) *Discoverer {
	opts := DefaultDiscoveryOptions()
	opts.MaxAttempts = maxAttempts
	opts.StallThreshold = stallThreshold
	d := NewDiscoverer(opts, nil)
	d.sleep = func(ctx context.Context, _, _ time.Duration) error { return ctx.Err() }
	return d
}

func TestDiscovererStopsWhenGrowthStalls(t *testing.T) {
	page := &fakeListing{counts: []int{10, 20, 30, 30}}

	res, err := testDiscoverer(40, 1).Run(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, TerminationStalled, res.Termination)
	assert.Equal(t, 4, res.Attempts)
	assert.Equal(t, []int{10, 20, 30, 30}, res.Counts)
	assert.Len(t, res.IDs, 30)
	assert.Equal(t, "p000", res.IDs[0])
}

func TestDiscovererRespectsAttemptCap(t *testing.T) {
	counts := make([]int, 100)
	for i := range counts {
		counts[i] = (i + 1) * 5
	}
	page := &fakeListing{counts: counts}

	res, err := testDiscoverer(7, 1).Run(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, TerminationCapReached, res.Termination)
	assert.Equal(t, 7, res.Attempts)
	assert.Equal(t, 7, page.scrolls)
}

func TestDiscovererZeroProducts(t *testing.T) {
	page := &fakeListing{counts: []int{0}, firstCardErr: errors.New("timeout")}

	res, err := testDiscoverer(40, 1).Run(context.Background(), page)
	require.NoError(t, err)

	assert.Empty(t, res.IDs)
	assert.NotNil(t, res.IDs)
	assert.Equal(t, TerminationStalled, res.Termination)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 5, page.firstCardCalls)
}

func TestDiscovererStallThreshold(t *testing.T) {
	// Loading pauses for one cycle at 20 and then resumes.
	counts := []int{10, 20, 20, 35, 35, 35}

	tests := []struct {
		name        string
		threshold   int
		wantIDs     int
		wantAttempt int
	}{
		{"single pause ends the loop", 1, 20, 3},
		{"tolerates one pause", 2, 35, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := &fakeListing{counts: counts}

			res, err := testDiscoverer(40, tt.threshold).Run(context.Background(), page)
			require.NoError(t, err)

			assert.Equal(t, TerminationStalled, res.Termination)
			assert.Len(t, res.IDs, tt.wantIDs)
			assert.Equal(t, tt.wantAttempt, res.Attempts)
		})
	}
}

func TestDiscovererErrorBannerReturnsPartial(t *testing.T) {
	page := &fakeListing{counts: []int{10, 20, 30}, bannerAt: 2}

	res, err := testDiscoverer(40, 1).Run(context.Background(), page)
	assert.ErrorIs(t, err, ErrErrorBanner)
	assert.Equal(t, TerminationErrorBanner, res.Termination)
	assert.Len(t, res.IDs, 20)
}

func TestDiscovererMissingContainer(t *testing.T) {
	page := &fakeListing{counts: []int{5}, containerErr: errors.New("timeout")}

	res, err := testDiscoverer(40, 1).Run(context.Background(), page)
	assert.ErrorIs(t, err, ErrContainerNotFound)
	assert.Equal(t, TerminationNoContainer, res.Termination)
	assert.Empty(t, res.IDs)
}

func TestDiscovererCountFailureKeepsCollected(t *testing.T) {
	page := &fakeListing{counts: []int{4}, countErr: errors.New("page closed")}

	res, err := testDiscoverer(40, 1).Run(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, TerminationPageError, res.Termination)
	assert.Len(t, res.IDs, 4)
}

func TestDiscovererCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := testDiscoverer(40, 1).Run(ctx, &fakeListing{counts: []int{1, 2, 3}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, TerminationCancelled, res.Termination)
}
