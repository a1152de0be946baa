package browser

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/playwright-community/playwright-go"
)

type Snapshotter interface {
	Screenshot(options ...playwright.PageScreenshotOptions) ([]byte, error)
	Content() (string, error)
}

var unsafeName = strings.NewReplacer("/", "_", "\\", "_", "?", "_", "&", "_", ":", "_", "*", "_", "\"", "_", "<", "_", ">", "_", "|", "_")

// DiagnosticsName derives a file stem from a page URL: the scheme is dropped
// and path separators become underscores.
func DiagnosticsName(pageURL string) string {
	name := pageURL
	if i := strings.Index(name, "://"); i >= 0 {
		name = name[i+3:]
	}
	name = strings.TrimRight(name, "/")
	name = unsafeName.Replace(name)
	if name == "" {
		name = "page"
	}
	return name
}

// SaveDiagnostics writes a full-page screenshot and the rendered markup of
// page into dir. Both captures are attempted even when one fails.
func SaveDiagnostics(page Snapshotter, dir, pageURL, reason string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create diagnostics dir: %w", err)
	}

	base := filepath.Join(dir, DiagnosticsName(pageURL))
	var errs []string

	png, err := page.Screenshot(playwright.PageScreenshotOptions{FullPage: playwright.Bool(true)})
	if err != nil {
		errs = append(errs, fmt.Sprintf("screenshot: %v", err))
	} else if err := os.WriteFile(base+".png", png, 0o644); err != nil {
		errs = append(errs, fmt.Sprintf("write screenshot: %v", err))
	}

	html, err := page.Content()
	if err != nil {
		errs = append(errs, fmt.Sprintf("content: %v", err))
	} else if err := os.WriteFile(base+".html", []byte(html), 0o644); err != nil {
		errs = append(errs, fmt.Sprintf("write html: %v", err))
	}

	slog.Default().With("component", "browser").Info("saved diagnostics",
		"url", pageURL, "reason", reason, "path", base)

	if len(errs) > 0 {
		return fmt.Errorf("diagnostics incomplete for %s: %s", pageURL, strings.Join(errs, "; "))
	}
	return nil
}

// SaveHTML writes markup that was captured earlier, e.g. a categories page
// that produced no links.
func SaveHTML(dir, name, html string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create diagnostics dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
