package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultUserAgent is the desktop browser UA the site expects; requests with
// a library UA get a challenge page instead of listings.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

// Config holds site, cache, server and mount settings.
// Load from env; call LoadEnvFile(".env") first to use a .env file.
type Config struct {
	// Upstream site
	BaseURL     string // e.g. https://uakino.best (no trailing slash)
	UserAgent   string
	HTTPTimeout time.Duration
	RateLimit   float64 // requests per second to the site; <= 0 disables the limiter
	RateBurst   int
	// HostConcurrency caps in-flight requests per upstream host (site and player hosts).
	HostConcurrency int
	// PlayerConcurrency caps how many player pages one stream request resolves at once.
	PlayerConcurrency int

	// Caches
	GenreCachePath string        // JSON file, e.g. ./genre_cache.json
	GenreCacheTTL  time.Duration // default 7 days
	SearchCacheTTL time.Duration // default 1h
	SearchCacheDB  string        // optional SQLite file for persistent search results; "" = memory only

	// Server
	Addr string // listen address, default :3000

	// Mount point for the .strm export
	MountPoint string

	// Logging
	LogLevel  string
	LogFormat string // "text" (default) or "json"
}

// Load reads config from environment.
func Load() *Config {
	c := &Config{
		BaseURL:           strings.TrimSuffix(getEnv("UAKINO_BASE_URL", "https://uakino.best"), "/"),
		UserAgent:         getEnv("UAKINO_USER_AGENT", DefaultUserAgent),
		HTTPTimeout:       getEnvDuration("UAKINO_HTTP_TIMEOUT", 30*time.Second),
		RateLimit:         getEnvFloat("UAKINO_RATE_LIMIT", 5),
		RateBurst:         getEnvInt("UAKINO_RATE_BURST", 10),
		HostConcurrency:   getEnvInt("UAKINO_HOST_CONCURRENCY", 4),
		PlayerConcurrency: getEnvInt("UAKINO_PLAYER_CONCURRENCY", 4),
		GenreCachePath:    getEnv("UAKINO_GENRE_CACHE", "./genre_cache.json"),
		GenreCacheTTL:     getEnvDuration("UAKINO_GENRE_CACHE_TTL", 7*24*time.Hour),
		SearchCacheTTL:    getEnvDuration("UAKINO_SEARCH_CACHE_TTL", time.Hour),
		SearchCacheDB:     os.Getenv("UAKINO_SEARCH_CACHE_DB"),
		Addr:              getEnv("UAKINO_ADDR", ":3000"),
		MountPoint:        getEnv("UAKINO_MOUNT", "/mnt/uakino"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 1
	}
	if c.HostConcurrency <= 0 {
		c.HostConcurrency = 4
	}
	if c.PlayerConcurrency <= 0 {
		c.PlayerConcurrency = 4
	}
	if c.GenreCacheTTL <= 0 {
		c.GenreCacheTTL = 7 * 24 * time.Hour
	}
	if c.SearchCacheTTL <= 0 {
		c.SearchCacheTTL = time.Hour
	}
	return c
}

// SiteHost returns scheme://host of BaseURL, or BaseURL unchanged when it does not parse.
func (c *Config) SiteHost() string {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" {
		return c.BaseURL
	}
	return u.Scheme + "://" + u.Host
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return defaultVal
		}
		return f
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
