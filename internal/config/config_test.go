package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://blinkit.com", cfg.Site.BaseURL)
	assert.Equal(t, "https://blinkit.com/categories", cfg.Site.CategoriesURL)
	assert.Equal(t, "Mumbai", cfg.Site.LocationQuery)
	assert.Equal(t, 40, cfg.Discovery.MaxScrollAttempts)
	assert.Equal(t, 1, cfg.Discovery.StallThreshold)
	assert.Equal(t, 5, cfg.Discovery.InitialWaitAttempts)
	assert.Equal(t, 30*time.Second, cfg.Detail.Timeout)
	assert.Equal(t, "scrape.log", cfg.Logging.File)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SITE_BASE_URL", "https://example.test/")
	t.Setenv("DISCOVERY_CONCURRENCY", "3")
	t.Setenv("DETAIL_DELAY_MAX", "5s")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("DISCOVERY_MAX_SCROLLS", "not-a-number")
	t.Setenv("SITE_SELECTOR_PRODUCT_CARD", "div.card[id]")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://example.test", cfg.Site.BaseURL)
	assert.Equal(t, "https://example.test/categories", cfg.Site.CategoriesURL)
	assert.Equal(t, 3, cfg.Discovery.ListingConcurrency)
	assert.Equal(t, 5*time.Second, cfg.Detail.DelayMax)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 40, cfg.Discovery.MaxScrollAttempts)
	assert.Equal(t, "div.card[id]", cfg.Site.ProductCardSelector)
	assert.Empty(t, cfg.Site.ScrollContainerSelector)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"zero listing concurrency", func(c *Config) { c.Discovery.ListingConcurrency = 0 }, "DISCOVERY_CONCURRENCY"},
		{"zero detail concurrency", func(c *Config) { c.Detail.Concurrency = 0 }, "DETAIL_CONCURRENCY"},
		{"zero stall threshold", func(c *Config) { c.Discovery.StallThreshold = 0 }, "DISCOVERY_STALL_THRESHOLD"},
		{"inverted scroll delay", func(c *Config) { c.Discovery.ScrollDelayMin = 10 * time.Second }, "DISCOVERY_SCROLL_DELAY_MIN"},
		{"inverted detail delay", func(c *Config) { c.Detail.DelayMin = time.Minute }, "DETAIL_DELAY_MIN"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"db without name", func(c *Config) { c.Database.Enabled = true; c.Database.Name = "" }, "DB_NAME"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
