package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	// Redis configuration (notification stream consumed by the Telegram bot)
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration (rate-limit block keys)
	MemcacheAddr string

	// Dedup configuration
	CacheFile       string
	SeenFile        string
	MaxAgeDays      int
	DedupStrategies []string
	AutoSave        bool

	// Retry configuration
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Crawler configuration
	CrawlInterval   time.Duration
	MaxPages        int
	RequestDelayMin time.Duration
	RequestDelayMax time.Duration
	ErrorLogDir     string

	// Browser configuration (JS-rendered pages)
	BrowserEnabled  bool
	PageLoadTimeout time.Duration

	// URLs for the site parsers
	MercadoLibreURL string
	InfoCasasURL    string
	GallitoURL      string

	// Metrics endpoint
	MetricsAddr string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	streamMaxLen, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "500"))
	crawlInterval, _ := strconv.Atoi(getEnv("CRAWL_INTERVAL_SECONDS", "3600"))
	maxAgeDays, _ := strconv.Atoi(getEnv("CACHE_MAX_AGE_DAYS", "30"))
	maxRetries, _ := strconv.Atoi(getEnv("MAX_RETRIES", "5"))
	retryBase, _ := strconv.ParseFloat(getEnv("RETRY_BASE_DELAY_SECONDS", "2"), 64)
	retryMax, _ := strconv.ParseFloat(getEnv("RETRY_MAX_DELAY_SECONDS", "60"), 64)
	maxPages, _ := strconv.Atoi(getEnv("MAX_PAGES", "2"))
	delayMin, _ := strconv.Atoi(getEnv("REQUEST_DELAY_MIN_SECONDS", "2"))
	delayMax, _ := strconv.Atoi(getEnv("REQUEST_DELAY_MAX_SECONDS", "5"))
	pageTimeout, _ := strconv.Atoi(getEnv("PAGE_LOAD_TIMEOUT_SECONDS", "60"))

	return Config{
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "listings"),
		RedisStreamCount:     streamCount,
		RedisStreamMaxLength: streamMaxLen,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		CacheFile:            getEnv("CACHE_FILE", "cache/listings_cache.json"),
		SeenFile:             getEnv("SEEN_FILE", "data/seen_listings.json"),
		MaxAgeDays:           maxAgeDays,
		DedupStrategies:      splitList(getEnv("DEDUP_STRATEGIES", "url,content_hash")),
		AutoSave:             getEnv("CACHE_AUTO_SAVE", "true") == "true",
		MaxRetries:           maxRetries,
		RetryBaseDelay:       time.Duration(retryBase * float64(time.Second)),
		RetryMaxDelay:        time.Duration(retryMax * float64(time.Second)),
		CrawlInterval:        time.Duration(crawlInterval) * time.Second,
		MaxPages:             maxPages,
		RequestDelayMin:      time.Duration(delayMin) * time.Second,
		RequestDelayMax:      time.Duration(delayMax) * time.Second,
		ErrorLogDir:          getEnv("ERROR_LOG_DIR", "logs"),
		BrowserEnabled:       getEnv("BROWSER_ENABLED", "false") == "true",
		PageLoadTimeout:      time.Duration(pageTimeout) * time.Second,
		MercadoLibreURL:      getEnv("MERCADOLIBRE_URL", "https://listado.mercadolibre.com.uy/inmuebles/terrenos/venta"),
		InfoCasasURL:         getEnv("INFOCASAS_URL", "https://www.infocasas.com.uy/venta/campos"),
		GallitoURL:           getEnv("GALLITO_URL", "https://www.gallito.com.uy/inmuebles/campos-y-chacras/venta"),
		MetricsAddr:          getEnv("METRICS_ADDR", ""),
		Environment:          getEnv("LANDWORKER_ENVIRONMENT", "development"),
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.CrawlInterval <= 0 {
		return fmt.Errorf("crawl interval must be positive")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1")
	}
	if c.RetryBaseDelay <= 0 || c.RetryMaxDelay < c.RetryBaseDelay {
		return fmt.Errorf("invalid retry delays: base=%v max=%v", c.RetryBaseDelay, c.RetryMaxDelay)
	}
	if c.RequestDelayMax < c.RequestDelayMin {
		return fmt.Errorf("request delay max must not be below min")
	}
	for _, s := range c.DedupStrategies {
		switch s {
		case "url", "content_hash", "address_price":
		default:
			return fmt.Errorf("unknown dedup strategy: %q", s)
		}
	}
	if c.MercadoLibreURL == "" && c.InfoCasasURL == "" && c.GallitoURL == "" {
		return fmt.Errorf("at least one site URL must be configured")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
