// Package config gathers the runtime settings shared by the commands. Every setting
// is a flag whose default comes from the matching environment variable.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Transaction sources.
const (
	SourceBigQuery = "bigquery"
	SourceMemory   = "memory"
)

// Config holds every setting the binaries read at startup.
type Config struct {
	Port string

	LogLevel  string
	LogFormat string

	// TransactionSource selects the transaction repository: "bigquery" or "memory".
	TransactionSource string
	ProjectID         string
	Dataset           string
	// SeedCSV is loaded into the in-memory transaction store at startup.
	SeedCSV string

	// PostgresDSN enables the Postgres allocation and rate store. Empty means in-memory.
	PostgresDSN string

	// RedisAddr enables the shared Redis cache. Empty means the in-process LRU.
	RedisAddr string
	CacheSize int
	CacheTTL  time.Duration

	// JWTSecret enables bearer-token authentication on /api routes.
	JWTSecret string

	ExportBucket string

	NotionToken      string
	NotionDatabaseID string

	// GeminiModel enables narrative recommendations when set together with GeminiAPIKey.
	GeminiModel  string
	GeminiAPIKey string
}

// Load parses args (without the program name) into a Config.
func Load(name string, args []string) (*Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cfg := Register(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Register binds every setting to fs and returns the Config they populate once fs is parsed.
func Register(fs *flag.FlagSet) *Config {
	cfg := &Config{}

	fs.StringVar(&cfg.Port, "port", env("PORT", "8080"), "HTTP server port (or set PORT env)")
	fs.StringVar(&cfg.LogLevel, "log-level", env("LOG_LEVEL", "info"), "Log level (or set LOG_LEVEL env)")
	fs.StringVar(&cfg.LogFormat, "log-format", env("LOG_FORMAT", "console"), "Log format: console or json (or set LOG_FORMAT env)")

	fs.StringVar(&cfg.TransactionSource, "source", env("TRANSACTION_SOURCE", SourceMemory), "Transaction source: bigquery or memory (or set TRANSACTION_SOURCE env)")
	fs.StringVar(&cfg.ProjectID, "project", env("GCP_PROJECT", ""), "GCP project ID (or set GCP_PROJECT env)")
	fs.StringVar(&cfg.Dataset, "dataset", env("BQ_DATASET", "ledger"), "BigQuery dataset ID (or set BQ_DATASET env)")
	fs.StringVar(&cfg.SeedCSV, "seed-csv", env("SEED_CSV", ""), "CSV file loaded into the in-memory transaction store (or set SEED_CSV env)")

	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", env("DATABASE_URL", ""), "Postgres DSN for allocations and rates (or set DATABASE_URL env)")

	fs.StringVar(&cfg.RedisAddr, "redis-addr", env("REDIS_ADDR", ""), "Redis address for the response cache (or set REDIS_ADDR env)")
	fs.IntVar(&cfg.CacheSize, "cache-size", envInt("CACHE_SIZE", 512), "Maximum in-process cache entries (or set CACHE_SIZE env)")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", envDuration("CACHE_TTL", 5*time.Minute), "Cache entry lifetime (or set CACHE_TTL env)")

	fs.StringVar(&cfg.JWTSecret, "jwt-secret", env("JWT_SECRET", ""), "HMAC secret for bearer tokens; empty disables auth (or set JWT_SECRET env)")

	fs.StringVar(&cfg.ExportBucket, "bucket", env("GCS_BUCKET", ""), "GCS bucket for ledger exports (or set GCS_BUCKET env)")

	fs.StringVar(&cfg.NotionToken, "notion-token", env("NOTION_TOKEN", ""), "Notion integration token (or set NOTION_TOKEN env)")
	fs.StringVar(&cfg.NotionDatabaseID, "notion-db", env("NOTION_ROLLOVER_DB_ID", ""), "Notion rollover database ID (or set NOTION_ROLLOVER_DB_ID env)")

	fs.StringVar(&cfg.GeminiModel, "gemini-model", env("GEMINI_MODEL", ""), "Gemini model for narrative insights (or set GEMINI_MODEL env)")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")

	return cfg
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	var errs []error

	switch c.TransactionSource {
	case SourceMemory:
	case SourceBigQuery:
		if c.ProjectID == "" {
			errs = append(errs, errors.New("-project is required when -source=bigquery"))
		}
		if c.Dataset == "" {
			errs = append(errs, errors.New("-dataset is required when -source=bigquery"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown -source %q", c.TransactionSource))
	}

	if c.Port == "" {
		errs = append(errs, errors.New("-port is required"))
	}
	if c.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("-cache-size must be positive, got %d", c.CacheSize))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("-cache-ttl must not be negative, got %s", c.CacheTTL))
	}
	if (c.NotionToken == "") != (c.NotionDatabaseID == "") {
		errs = append(errs, errors.New("-notion-token and -notion-db must be set together"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// InsightsEnabled reports whether the Gemini narrative is configured.
func (c *Config) InsightsEnabled() bool {
	return c.GeminiModel != "" && c.GeminiAPIKey != ""
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
