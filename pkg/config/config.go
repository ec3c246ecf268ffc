package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Store selects the persistence backend
	Store StoreConfig

	// Redis
	Redis RedisConfig

	// Pipeline parameters shared by every stage
	Pipeline PipelineConfig

	// External collaborators
	Sources SourcesConfig
	Scorer  ScorerConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	CacheTTL time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
// DATABASE_URL wins; otherwise the URL is built from DB_* parts when DB_NAME is set.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// StoreConfig selects between PostgreSQL and the embedded SQLite store
type StoreConfig struct {
	Driver     string // postgres, sqlite
	SQLitePath string
}

// PipelineConfig holds the stage parameters
type PipelineConfig struct {
	Tickers             []string
	MatchThreshold      float64 // fuzzy match score on 0-100
	ConfidenceThreshold float64 // minimum sentiment confidence
	SequenceLength      int
	TrainRatio          float64
	ValRatio            float64
	TechnicalWorkers    int
	PriceWorkers        int
	PriceLookbackDays   int
	MentionLookbackDays int
	LatestRunOnly       bool // aggregate only the newest sentiment batch
	ExtraSuffixes       []string
	DatasetDir          string
	Schedule            string
}

// SourcesConfig holds article and alias source settings
type SourcesConfig struct {
	RSSURL        string
	RSSSourceName string
	AliasFile     string
	Timeout       time.Duration
	YahooRPS      float64
}

// ScorerConfig holds the sentiment scorer settings
type ScorerConfig struct {
	Kind    string // lexicon, http
	URL     string
	Token   string
	Model   string
	Timeout time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", ""),
			User:            getEnv("DB_USER", ""),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Store: StoreConfig{
			Driver:     strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
			SQLitePath: getEnv("SQLITE_PATH", "data/newsquant.db"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			CacheTTL: getEnvAsDuration("REDIS_CACHE_TTL", "168h"),
		},

		Pipeline: PipelineConfig{
			Tickers:             getEnvAsList("TICKERS", nil),
			MatchThreshold:      getEnvAsFloat("MATCH_THRESHOLD", 85),
			ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.8),
			SequenceLength:      getEnvAsInt("SEQUENCE_LENGTH", 10),
			TrainRatio:          getEnvAsFloat("TRAIN_RATIO", 0.70),
			ValRatio:            getEnvAsFloat("VAL_RATIO", 0.15),
			TechnicalWorkers:    getEnvAsInt("TECHNICAL_WORKERS", 4),
			PriceWorkers:        getEnvAsInt("PRICE_WORKERS", 4),
			PriceLookbackDays:   getEnvAsInt("PRICE_LOOKBACK_DAYS", 365),
			MentionLookbackDays: getEnvAsInt("MENTION_LOOKBACK_DAYS", 7),
			LatestRunOnly:       getEnvAsBool("SENTIMENT_LATEST_RUN_ONLY", true),
			ExtraSuffixes:       getEnvAsList("ENTITY_EXTRA_SUFFIXES", []string{"Motors"}),
			DatasetDir:          getEnv("DATASET_DIR", "data/datasets"),
			Schedule:            getEnv("PIPELINE_SCHEDULE", "0 22 * * 1-5"),
		},

		Sources: SourcesConfig{
			RSSURL:        getEnv("RSS_URL", "https://feeds.finance.yahoo.com/rss/2.0/headline?region=US&lang=en-US"),
			RSSSourceName: getEnv("RSS_SOURCE_NAME", "yahoo_finance"),
			AliasFile:     getEnv("ALIAS_FILE", ""),
			Timeout:       getEnvAsDuration("SOURCE_TIMEOUT", "30s"),
			YahooRPS:      getEnvAsFloat("YAHOO_RPS", 2),
		},

		Scorer: ScorerConfig{
			Kind:    strings.ToLower(getEnv("SCORER_KIND", "lexicon")),
			URL:     getEnv("SCORER_URL", ""),
			Token:   getEnv("SCORER_TOKEN", ""),
			Model:   getEnv("SCORER_MODEL", "ProsusAI/finbert"),
			Timeout: getEnvAsDuration("SCORER_TIMEOUT", "20s"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFile loads an explicit .env file first (when path is set), then calls Load.
// Variables already present in the environment win.
func LoadFile(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return Load()
}

// DSN returns the PostgreSQL connection string
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	if d.Name == "" {
		return ""
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	switch {
	case d.User != "" && d.Password != "":
		u.User = url.UserPassword(d.User, d.Password)
	case d.User != "":
		u.User = url.User(d.User)
	}
	return u.String()
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Store.Driver {
	case "postgres":
		if c.Database.DSN() == "" {
			return fmt.Errorf("DATABASE_URL (or DB_NAME) is required")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for sqlite store")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of: postgres, sqlite")
	}

	p := c.Pipeline
	if p.MatchThreshold < 0 || p.MatchThreshold > 100 {
		return fmt.Errorf("MATCH_THRESHOLD must be within [0, 100], got %v", p.MatchThreshold)
	}
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be within [0, 1], got %v", p.ConfidenceThreshold)
	}
	if p.SequenceLength < 1 {
		return fmt.Errorf("SEQUENCE_LENGTH must be positive, got %d", p.SequenceLength)
	}
	if p.TrainRatio <= 0 || p.ValRatio < 0 || p.TrainRatio+p.ValRatio > 1 {
		return fmt.Errorf("TRAIN_RATIO/VAL_RATIO invalid: train=%v val=%v", p.TrainRatio, p.ValRatio)
	}
	if p.TechnicalWorkers < 1 {
		return fmt.Errorf("TECHNICAL_WORKERS must be positive, got %d", p.TechnicalWorkers)
	}
	if p.PriceWorkers < 1 {
		return fmt.Errorf("PRICE_WORKERS must be positive, got %d", p.PriceWorkers)
	}

	if c.Scorer.Kind != "lexicon" && c.Scorer.Kind != "http" {
		return fmt.Errorf("SCORER_KIND must be one of: lexicon, http")
	}
	if c.Scorer.Kind == "http" && c.Scorer.URL == "" {
		return fmt.Errorf("SCORER_URL is required for http scorer")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
