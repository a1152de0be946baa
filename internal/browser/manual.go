package browser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
)

// OpenForManualInteraction opens a headful browser on a persistent profile so
// an operator can solve challenges or pick a location by hand. It returns once
// a line is read from in or ctx is cancelled.
func OpenForManualInteraction(ctx context.Context, opts *Options, startURL string, in io.Reader, out io.Writer) error {
	if opts == nil {
		opts = DefaultOptions()
	}
	manual := *opts
	manual.Headless = false
	if manual.UserDataDir == "" {
		manual.UserDataDir = "./tmp_user_data"
	}
	if err := os.MkdirAll(manual.UserDataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create profile dir: %w", err)
	}

	b, err := New(&manual)
	if err != nil {
		return err
	}
	defer b.Close()

	page, err := b.NewPage()
	if err != nil {
		return err
	}
	if startURL != "" {
		if err := b.NavigateWithRetry(page, startURL, 2); err != nil {
			b.logger.Warn("initial navigation failed, browser stays open", "url", startURL, "error", err)
		}
	}

	fmt.Fprintf(out, "Browser open with profile %s. Press Enter to close.\n", manual.UserDataDir)

	done := make(chan struct{})
	go func() {
		bufio.NewReader(in).ReadString('\n')
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
