package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the jobscout server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Scraper  ScraperConfig
	Search   SearchConfig
}

type ServerConfig struct {
	Port               int
	Env                string
	AdminAPIKey        string
	RateLimitPerMinute int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type ScraperConfig struct {
	Queries        []string
	Concurrency    int
	Headless       bool
	PollInterval   time.Duration
	RunTimeout     time.Duration
	CompanyTimeout time.Duration
	DiscoveryLimit int
	Schedule       string
}

type SearchConfig struct {
	GoogleAPIKey   string
	GoogleEngineID string
	BingAPIKey     string
	SerpAPIKey     string
	Timeout        time.Duration
	CacheTTL       time.Duration
}

// Load reads configuration from the environment (and an optional .env file)
// and returns a validated Config. Returns an error with a descriptive message
// if any required value is missing or invalid.
func Load() (*Config, error) {
	// Missing .env is fine; existing environment always wins.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               envInt("JOBSCOUT_PORT", 8080),
			Env:                envString("JOBSCOUT_ENV", "development"),
			AdminAPIKey:        os.Getenv("ADMIN_API_KEY"),
			RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Scraper: ScraperConfig{
			Queries:        splitQueries(envString("SCRAPER_SEARCH_QUERIES", "ai startup")),
			Concurrency:    envInt("SCRAPER_CONCURRENCY", 5),
			Headless:       envBool("SCRAPER_HEADLESS", true),
			PollInterval:   envDuration("SCRAPER_POLL_INTERVAL", 30*time.Second),
			RunTimeout:     envDuration("SCRAPER_RUN_TIMEOUT", 30*time.Minute),
			CompanyTimeout: envDuration("SCRAPER_COMPANY_TIMEOUT", 2*time.Minute),
			DiscoveryLimit: envInt("SCRAPER_DISCOVERY_LIMIT", 50),
			Schedule:       os.Getenv("SCRAPER_SCHEDULE"),
		},
		Search: SearchConfig{
			GoogleAPIKey:   os.Getenv("GOOGLE_SEARCH_API_KEY"),
			GoogleEngineID: os.Getenv("GOOGLE_SEARCH_ENGINE_ID"),
			BingAPIKey:     os.Getenv("BING_SEARCH_API_KEY"),
			SerpAPIKey:     os.Getenv("SERPAPI_KEY"),
			Timeout:        envDuration("SEARCH_TIMEOUT", 10*time.Second),
			CacheTTL:       envDuration("SEARCH_CACHE_TTL", time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if len(c.Scraper.Queries) == 0 {
		return fmt.Errorf("SCRAPER_SEARCH_QUERIES must contain at least one query")
	}
	if c.Scraper.Concurrency < 1 {
		return fmt.Errorf("SCRAPER_CONCURRENCY must be at least 1, got %d", c.Scraper.Concurrency)
	}
	if c.Scraper.PollInterval <= 0 {
		return fmt.Errorf("SCRAPER_POLL_INTERVAL must be positive, got %s", c.Scraper.PollInterval)
	}
	if c.Scraper.RunTimeout <= 0 {
		return fmt.Errorf("SCRAPER_RUN_TIMEOUT must be positive, got %s", c.Scraper.RunTimeout)
	}
	if c.Scraper.DiscoveryLimit < 1 {
		return fmt.Errorf("SCRAPER_DISCOVERY_LIMIT must be at least 1, got %d", c.Scraper.DiscoveryLimit)
	}

	if (c.Search.GoogleAPIKey == "") != (c.Search.GoogleEngineID == "") {
		return fmt.Errorf("GOOGLE_SEARCH_API_KEY and GOOGLE_SEARCH_ENGINE_ID must be set together")
	}

	return nil
}

// splitQueries parses a comma-separated query list, dropping empty entries.
func splitQueries(s string) []string {
	var queries []string
	for _, q := range strings.Split(s, ",") {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	return queries
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
