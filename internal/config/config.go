package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Site      SiteConfig
	Browser   BrowserConfig
	Discovery DiscoveryConfig
	Detail    DetailConfig
	Output    OutputConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Logging   LoggingConfig
}

type SiteConfig struct {
	BaseURL       string
	CategoriesURL string
	LocationQuery string

	// Selector overrides; empty keeps the built-in selector.
	ScrollContainerSelector string
	ProductCardSelector     string
	ErrorBannerSelector     string
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	UserAgent      string
	UserDataDir    string
	ProxyServer    string
}

type DiscoveryConfig struct {
	ListingConcurrency  int
	MaxScrollAttempts   int
	StallThreshold      int
	GrowthTimeout       time.Duration
	ScrollDelayMin      time.Duration
	ScrollDelayMax      time.Duration
	InitialWaitAttempts int
	InitialWaitTimeout  time.Duration
	ContainerTimeout    time.Duration
	CategoryDelayMin    time.Duration
	CategoryDelayMax    time.Duration
	MaxCategories       int
}

type DetailConfig struct {
	Concurrency int
	Timeout     time.Duration
	DelayMin    time.Duration
	DelayMax    time.Duration
	UserAgent   string
}

type OutputConfig struct {
	IDsFile        string
	RecordsFile    string
	DiagnosticsDir string
	SaveFailedHTML bool
	Resume         bool
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int32
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first; variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	baseURL := strings.TrimRight(getEnvOrDefault("SITE_BASE_URL", "https://blinkit.com"), "/")

	cfg := &Config{
		Site: SiteConfig{
			BaseURL:       baseURL,
			CategoriesURL: getEnvOrDefault("SITE_CATEGORIES_URL", baseURL+"/categories"),
			LocationQuery: getEnvOrDefault("SITE_LOCATION", "Mumbai"),

			ScrollContainerSelector: os.Getenv("SITE_SELECTOR_SCROLL_CONTAINER"),
			ProductCardSelector:     os.Getenv("SITE_SELECTOR_PRODUCT_CARD"),
			ErrorBannerSelector:     os.Getenv("SITE_SELECTOR_ERROR_BANNER"),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Asia/Kolkata"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-IN"),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", defaultUserAgent),
			UserDataDir:    getEnvOrDefault("BROWSER_USER_DATA_DIR", ""),
			ProxyServer:    getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Discovery: DiscoveryConfig{
			ListingConcurrency:  getIntOrDefault("DISCOVERY_CONCURRENCY", 2),
			MaxScrollAttempts:   getIntOrDefault("DISCOVERY_MAX_SCROLLS", 40),
			StallThreshold:      getIntOrDefault("DISCOVERY_STALL_THRESHOLD", 1),
			GrowthTimeout:       getDurationOrDefault("DISCOVERY_GROWTH_TIMEOUT", 15*time.Second),
			ScrollDelayMin:      getDurationOrDefault("DISCOVERY_SCROLL_DELAY_MIN", 1*time.Second),
			ScrollDelayMax:      getDurationOrDefault("DISCOVERY_SCROLL_DELAY_MAX", 3*time.Second),
			InitialWaitAttempts: getIntOrDefault("DISCOVERY_INITIAL_ATTEMPTS", 5),
			InitialWaitTimeout:  getDurationOrDefault("DISCOVERY_INITIAL_TIMEOUT", 10*time.Second),
			ContainerTimeout:    getDurationOrDefault("DISCOVERY_CONTAINER_TIMEOUT", 20*time.Second),
			CategoryDelayMin:    getDurationOrDefault("DISCOVERY_CATEGORY_DELAY_MIN", 2*time.Second),
			CategoryDelayMax:    getDurationOrDefault("DISCOVERY_CATEGORY_DELAY_MAX", 5*time.Second),
			MaxCategories:       getIntOrDefault("DISCOVERY_MAX_CATEGORIES", 0),
		},
		Detail: DetailConfig{
			Concurrency: getIntOrDefault("DETAIL_CONCURRENCY", 4),
			Timeout:     getDurationOrDefault("DETAIL_TIMEOUT", 30*time.Second),
			DelayMin:    getDurationOrDefault("DETAIL_DELAY_MIN", 500*time.Millisecond),
			DelayMax:    getDurationOrDefault("DETAIL_DELAY_MAX", 2*time.Second),
			UserAgent:   getEnvOrDefault("DETAIL_USER_AGENT", defaultUserAgent),
		},
		Output: OutputConfig{
			IDsFile:        getEnvOrDefault("OUTPUT_IDS_FILE", "product_ids_by_category.json"),
			RecordsFile:    getEnvOrDefault("OUTPUT_RECORDS_FILE", "all_product_data.json"),
			DiagnosticsDir: getEnvOrDefault("OUTPUT_DIAGNOSTICS_DIR", "diagnostics"),
			SaveFailedHTML: getBoolOrDefault("OUTPUT_SAVE_FAILED_HTML", false),
			Resume:         getBoolOrDefault("OUTPUT_RESUME", false),
		},
		Server: ServerConfig{
			Port:            getIntOrDefault("SERVER_PORT", 8084),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			Name:     getEnvOrDefault("DB_NAME", "grocery_catalog"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Enabled:  getBoolOrDefault("REDIS_ENABLED", false),
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:catalog_products"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
			File:   getEnvOrDefault("LOG_FILE", "scrape.log"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("SITE_BASE_URL is required")
	}

	if c.Discovery.ListingConcurrency < 1 {
		return fmt.Errorf("DISCOVERY_CONCURRENCY must be at least 1")
	}

	if c.Detail.Concurrency < 1 {
		return fmt.Errorf("DETAIL_CONCURRENCY must be at least 1")
	}

	if c.Discovery.MaxScrollAttempts < 1 {
		return fmt.Errorf("DISCOVERY_MAX_SCROLLS must be at least 1")
	}

	if c.Discovery.StallThreshold < 1 {
		return fmt.Errorf("DISCOVERY_STALL_THRESHOLD must be at least 1")
	}

	if c.Discovery.ScrollDelayMin > c.Discovery.ScrollDelayMax {
		return fmt.Errorf("DISCOVERY_SCROLL_DELAY_MIN cannot be greater than DISCOVERY_SCROLL_DELAY_MAX")
	}

	if c.Discovery.CategoryDelayMin > c.Discovery.CategoryDelayMax {
		return fmt.Errorf("DISCOVERY_CATEGORY_DELAY_MIN cannot be greater than DISCOVERY_CATEGORY_DELAY_MAX")
	}

	if c.Detail.DelayMin > c.Detail.DelayMax {
		return fmt.Errorf("DETAIL_DELAY_MIN cannot be greater than DETAIL_DELAY_MAX")
	}

	if c.Output.IDsFile == "" || c.Output.RecordsFile == "" {
		return fmt.Errorf("output files must not be empty")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Enabled && c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required when DB_ENABLED is set")
	}

	return nil
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
