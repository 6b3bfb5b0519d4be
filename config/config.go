package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	HTTP      HTTPConfig      `json:"http"`
	Retry     RetryConfig     `json:"retry"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Refresh   RefreshConfig   `json:"refresh"`
}

type ServerConfig struct {
	Port            int           `json:"port" env:"SERVER_PORT" default:"9300"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	ReadTimeout     time.Duration `json:"read_timeout" env:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `json:"write_timeout" env:"SERVER_WRITE_TIMEOUT" default:"60s"`
}

type DatabaseConfig struct {
	Host     string `json:"host" env:"DB_HOST" default:"localhost"`
	Port     string `json:"port" env:"DB_PORT" default:"5432"`
	Name     string `json:"name" env:"DB_NAME" default:"feeds"`
	User     string `json:"user" env:"FEED_REFRESHER_DB_USER" default:"feed_refresher"`
	Password string `json:"-" env:"FEED_REFRESHER_DB_PASSWORD"`
	SSLMode  string `json:"ssl_mode" env:"DB_SSL_MODE" default:"prefer"`
}

type HTTPConfig struct {
	Timeout   time.Duration `json:"timeout" env:"HTTP_TIMEOUT" default:"30s"`
	UserAgent string        `json:"user_agent" env:"HTTP_USER_AGENT"`
}

type RetryConfig struct {
	MaxAttempts   int           `json:"max_attempts" env:"RETRY_MAX_ATTEMPTS" default:"3"`
	BaseDelay     time.Duration `json:"base_delay" env:"RETRY_BASE_DELAY" default:"1s"`
	MaxDelay      time.Duration `json:"max_delay" env:"RETRY_MAX_DELAY" default:"60s"`
	BackoffFactor float64       `json:"backoff_factor" env:"RETRY_BACKOFF_FACTOR" default:"2.0"`
	JitterFactor  float64       `json:"jitter_factor" env:"RETRY_JITTER_FACTOR" default:"0.0"`
}

type RateLimitConfig struct {
	HostInterval time.Duration `json:"host_interval" env:"RATE_LIMIT_HOST_INTERVAL" default:"5s"`
}

type RefreshConfig struct {
	DefaultBatchSize     int           `json:"default_batch_size" env:"REFRESH_BATCH_SIZE" default:"5"`
	InterBatchDelay      time.Duration `json:"inter_batch_delay" env:"REFRESH_INTER_BATCH_DELAY" default:"2s"`
	SingleFeedMaxRetries int           `json:"single_feed_max_retries" env:"REFRESH_SINGLE_FEED_MAX_RETRIES" default:"3"`
	AutoRefreshEnabled   bool          `json:"auto_refresh_enabled" env:"REFRESH_AUTO_ENABLED" default:"true"`
	AutoRefreshInterval  time.Duration `json:"auto_refresh_interval" env:"REFRESH_AUTO_INTERVAL" default:"30m"`
}

// DSN builds the pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

func LoadConfig() (*Config, error) {
	config := &Config{}

	// 環境変数から設定を読み込み
	if err := loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	// 設定の検証
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func loadFromEnv(config *Config) error {
	var err error

	if config.Server.Port, err = intFromEnv("SERVER_PORT", 9300); err != nil {
		return err
	}
	if config.Server.ShutdownTimeout, err = durationFromEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second); err != nil {
		return err
	}
	if config.Server.ReadTimeout, err = durationFromEnv("SERVER_READ_TIMEOUT", 10*time.Second); err != nil {
		return err
	}
	if config.Server.WriteTimeout, err = durationFromEnv("SERVER_WRITE_TIMEOUT", 60*time.Second); err != nil {
		return err
	}

	config.Database.Host = stringFromEnv("DB_HOST", "localhost")
	config.Database.Port = stringFromEnv("DB_PORT", "5432")
	config.Database.Name = stringFromEnv("DB_NAME", "feeds")
	config.Database.User = stringFromEnv("FEED_REFRESHER_DB_USER", "feed_refresher")
	config.Database.Password = os.Getenv("FEED_REFRESHER_DB_PASSWORD")
	config.Database.SSLMode = stringFromEnv("DB_SSL_MODE", "prefer")

	if config.HTTP.Timeout, err = durationFromEnv("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return err
	}
	config.HTTP.UserAgent = stringFromEnv("HTTP_USER_AGENT",
		"Mozilla/5.0 (compatible; FeedRefresher/1.0; +https://alt.example.com/bot)")

	if config.Retry.MaxAttempts, err = intFromEnv("RETRY_MAX_ATTEMPTS", 3); err != nil {
		return err
	}
	if config.Retry.BaseDelay, err = durationFromEnv("RETRY_BASE_DELAY", 1*time.Second); err != nil {
		return err
	}
	if config.Retry.MaxDelay, err = durationFromEnv("RETRY_MAX_DELAY", 60*time.Second); err != nil {
		return err
	}
	if config.Retry.BackoffFactor, err = floatFromEnv("RETRY_BACKOFF_FACTOR", 2.0); err != nil {
		return err
	}
	if config.Retry.JitterFactor, err = floatFromEnv("RETRY_JITTER_FACTOR", 0.0); err != nil {
		return err
	}

	if config.RateLimit.HostInterval, err = durationFromEnv("RATE_LIMIT_HOST_INTERVAL", 5*time.Second); err != nil {
		return err
	}

	if config.Refresh.DefaultBatchSize, err = intFromEnv("REFRESH_BATCH_SIZE", 5); err != nil {
		return err
	}
	if config.Refresh.InterBatchDelay, err = durationFromEnv("REFRESH_INTER_BATCH_DELAY", 2*time.Second); err != nil {
		return err
	}
	if config.Refresh.SingleFeedMaxRetries, err = intFromEnv("REFRESH_SINGLE_FEED_MAX_RETRIES", 3); err != nil {
		return err
	}
	if config.Refresh.AutoRefreshEnabled, err = boolFromEnv("REFRESH_AUTO_ENABLED", true); err != nil {
		return err
	}
	if config.Refresh.AutoRefreshInterval, err = durationFromEnv("REFRESH_AUTO_INTERVAL", 30*time.Minute); err != nil {
		return err
	}

	return nil
}

func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.HTTP.Timeout <= 0 {
		return fmt.Errorf("HTTP timeout must be positive: %v", config.HTTP.Timeout)
	}

	if config.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry max attempts must be positive: %d", config.Retry.MaxAttempts)
	}

	if config.Retry.BackoffFactor <= 1.0 {
		return fmt.Errorf("backoff factor must be greater than 1.0: %f", config.Retry.BackoffFactor)
	}

	if config.RateLimit.HostInterval <= 0 {
		return fmt.Errorf("rate limit host interval must be positive: %v", config.RateLimit.HostInterval)
	}

	if config.Refresh.DefaultBatchSize <= 0 {
		return fmt.Errorf("refresh batch size must be positive: %d", config.Refresh.DefaultBatchSize)
	}

	if config.Refresh.InterBatchDelay < 0 {
		return fmt.Errorf("inter-batch delay must be non-negative: %v", config.Refresh.InterBatchDelay)
	}

	if config.Refresh.SingleFeedMaxRetries <= 0 {
		return fmt.Errorf("single feed max retries must be positive: %d", config.Refresh.SingleFeedMaxRetries)
	}

	if config.Refresh.AutoRefreshEnabled && config.Refresh.AutoRefreshInterval <= 0 {
		return fmt.Errorf("auto refresh interval must be positive: %v", config.Refresh.AutoRefreshInterval)
	}

	return nil
}

func stringFromEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intFromEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, v)
	}

	return parsed, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %s", key, v)
	}

	return parsed, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, v)
	}

	return parsed, nil
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", key, v)
	}

	return parsed, nil
}
