package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	TaxRecords TaxRecordsConfig
	Aggregator AggregatorConfig
	Penalty    PenaltyConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	CORS       CORSConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
	Env  string
}

// TaxRecordsConfig holds the remote tax-records service client configuration.
type TaxRecordsConfig struct {
	BaseURL string
	Timeout time.Duration
	Retries int
}

// AggregatorConfig tunes how tax years are populated.
type AggregatorConfig struct {
	BatchSize     int
	SettleTimeout time.Duration
	Retention     time.Duration
}

// PenaltyConfig holds the penalty defaults applied when no rule matches.
type PenaltyConfig struct {
	DefaultCapMonths int
	DefaultRate      decimal.Decimal
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// RedisConfig holds the tax-records cache configuration.
// An empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("TAX_RECORDS_BASE_URL", "http://localhost:9000")
	v.SetDefault("TAX_RECORDS_TIMEOUT", "10s")
	v.SetDefault("TAX_RECORDS_RETRIES", 2)
	v.SetDefault("AGGREGATOR_BATCH_SIZE", 5)
	v.SetDefault("AGGREGATOR_SETTLE_TIMEOUT", "60s")
	v.SetDefault("AGGREGATOR_RETENTION", "10m")
	v.SetDefault("PENALTY_DEFAULT_CAP_MONTHS", 24)
	v.SetDefault("PENALTY_DEFAULT_RATE", "0.02")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "pbb")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 1)
	v.SetDefault("DB_POOL_MAX", 5)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "pbb:")
	v.SetDefault("REDIS_TTL", "10m")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")

	v.AutomaticEnv()

	rate, err := decimal.NewFromString(strings.TrimSpace(v.GetString("PENALTY_DEFAULT_RATE")))
	if err != nil {
		return nil, fmt.Errorf("PENALTY_DEFAULT_RATE must be a decimal number: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		TaxRecords: TaxRecordsConfig{
			BaseURL: strings.TrimRight(v.GetString("TAX_RECORDS_BASE_URL"), "/"),
			Timeout: v.GetDuration("TAX_RECORDS_TIMEOUT"),
			Retries: v.GetInt("TAX_RECORDS_RETRIES"),
		},
		Aggregator: AggregatorConfig{
			BatchSize:     v.GetInt("AGGREGATOR_BATCH_SIZE"),
			SettleTimeout: v.GetDuration("AGGREGATOR_SETTLE_TIMEOUT"),
			Retention:     v.GetDuration("AGGREGATOR_RETENTION"),
		},
		Penalty: PenaltyConfig{
			DefaultCapMonths: v.GetInt("PENALTY_DEFAULT_CAP_MONTHS"),
			DefaultRate:      rate,
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			Prefix:   v.GetString("REDIS_PREFIX"),
			TTL:      v.GetDuration("REDIS_TTL"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.TaxRecords.BaseURL == "" {
		return fmt.Errorf("TAX_RECORDS_BASE_URL is required")
	}
	if u, err := url.Parse(c.TaxRecords.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("TAX_RECORDS_BASE_URL must be an absolute URL")
	}
	if c.TaxRecords.Timeout <= 0 {
		return fmt.Errorf("TAX_RECORDS_TIMEOUT must be positive")
	}
	if c.TaxRecords.Retries < 0 {
		return fmt.Errorf("TAX_RECORDS_RETRIES must be non-negative")
	}

	if c.Aggregator.BatchSize < 1 {
		return fmt.Errorf("AGGREGATOR_BATCH_SIZE must be at least 1")
	}
	if c.Aggregator.SettleTimeout <= 0 {
		return fmt.Errorf("AGGREGATOR_SETTLE_TIMEOUT must be positive")
	}
	if c.Aggregator.Retention <= 0 {
		return fmt.Errorf("AGGREGATOR_RETENTION must be positive")
	}

	if c.Penalty.DefaultCapMonths < 1 {
		return fmt.Errorf("PENALTY_DEFAULT_CAP_MONTHS must be at least 1")
	}
	if !c.Penalty.DefaultRate.IsPositive() || c.Penalty.DefaultRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("PENALTY_DEFAULT_RATE must be greater than 0 and at most 1")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	if c.Redis.Enabled() && c.Redis.TTL <= 0 {
		return fmt.Errorf("REDIS_TTL must be positive when REDIS_ADDR is set")
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
