package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":3000"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Mode
	ProbeMode  bool   // true => regional probe, false => central aggregator
	Region     string // region tag attached to every probe report
	CentralURL string // base URL of the central API (probe mode)

	// Shared secrets
	APISecret   string // x-api-key expected on probe reports
	AdminSecret string // x-admin-key expected on admin endpoints

	// Catalog
	CatalogFile           string        // path to the services catalog (YAML or JSON)
	CatalogReloadInterval time.Duration // how often the catalog file is re-read

	// Probing
	ProbeInterval     time.Duration // default per-component interval (30s)
	ProbeTimeout      time.Duration // default per-request timeout (10s)
	ProbeJitter       time.Duration // upper bound of the startup delay (5s)
	DebounceThreshold int           // consecutive failures before outage (3)
	ReportTimeout     time.Duration // timeout for one report to the central API

	// History
	HistoryDays   int           // trailing days kept in memory for the status view
	RetentionDays int           // day records older than this are purged
	PurgeInterval time.Duration // retention job period (24h)

	// Redis (central mode only)
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts

	// HTTP surface
	RateLimitBurst  int      // requests allowed in a burst per client IP
	RateLimitPerMin int      // sustained requests per minute per client IP
	CORSOrigins     []string // allowed CORS origins ("*" by default)
	AllowedCIDRS    []string // optional, restrict healthz/readyz/metrics to specific IPs
	TrustProxy      bool     // true => trust X-Forwarded-For headers
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("STATUS_LISTEN_PORT", ":3000"),
		ShutdownTimeout: mustDuration("STATUS_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("STATUS_LOG_LEVEL", "info"),
		PrettyLog: mustBool("STATUS_PRETTY_LOG", true),

		// Mode
		ProbeMode:  mustBool("STATUS_PROBE_MODE", false),
		Region:     getenv("STATUS_REGION", "local"),
		CentralURL: strings.TrimRight(getenv("STATUS_CENTRAL_URL", "http://localhost:3000"), "/"),

		// Secrets
		APISecret:   requireEnv("STATUS_API_SECRET"),
		AdminSecret: getenv("STATUS_ADMIN_SECRET", ""),

		// Catalog
		CatalogFile:           getenv("STATUS_CATALOG_FILE", "/app/services.yaml"),
		CatalogReloadInterval: mustDuration("STATUS_CATALOG_RELOAD_INTERVAL", time.Minute),

		// Probing
		ProbeInterval:     mustDuration("STATUS_PROBE_INTERVAL", 30*time.Second),
		ProbeTimeout:      mustDuration("STATUS_PROBE_TIMEOUT", 10*time.Second),
		ProbeJitter:       mustDuration("STATUS_PROBE_JITTER", 5*time.Second),
		DebounceThreshold: getenvInt("STATUS_DEBOUNCE_THRESHOLD", 3),
		ReportTimeout:     mustDuration("STATUS_REPORT_TIMEOUT", 10*time.Second),

		// History
		HistoryDays:   getenvInt("STATUS_HISTORY_DAYS", 90),
		RetentionDays: getenvInt("STATUS_RETENTION_DAYS", 365),
		PurgeInterval: mustDuration("STATUS_PURGE_INTERVAL", 24*time.Hour),

		// Redis settings
		RedisAddr:           getenv("STATUS_REDIS_ADDR", "localhost:6379"),
		RedisUser:           getenv("STATUS_REDIS_USERNAME", ""),
		RedisPassword:       getenv("STATUS_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("STATUS_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),

		// HTTP surface
		RateLimitBurst:  getenvInt("STATUS_RATE_LIMIT_BURST", 300),
		RateLimitPerMin: getenvInt("STATUS_RATE_LIMIT_PER_MIN", 300),
		CORSOrigins:     splitAndTrim(getenv("STATUS_CORS_ORIGINS", "*")),
		AllowedCIDRS:    parseAllowedIPs(getenv("STATUS_ALLOWED_CIDRS", "")),
		TrustProxy:      mustBool("STATUS_TRUST_PROXY", false),
	}

	if !cfg.ProbeMode && cfg.AdminSecret == "" {
		panic("❌ FATAL: STATUS_ADMIN_SECRET is required in central mode")
	}
	if cfg.DebounceThreshold < 1 {
		panic(fmt.Sprintf("❌ FATAL: STATUS_DEBOUNCE_THRESHOLD must be >= 1, got %d", cfg.DebounceThreshold))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		cfgCopy.APISecret = "***REDACTED***"
		cfgCopy.AdminSecret = "***REDACTED***"
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// Mode returns a short name of the running mode for logs.
func (c *Config) Mode() string {
	if c.ProbeMode {
		return "probe"
	}
	return "central"
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
