package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the worker.
type Config struct {
	PostgresURL string `mapstructure:"POSTGRES_URL"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	ServerPort  string `mapstructure:"SERVER_PORT"`

	SourceName      string `mapstructure:"SOURCE_NAME"`
	BaseURL         string `mapstructure:"BASE_URL"`
	RobotsURL       string `mapstructure:"ROBOTS_URL"`
	SitemapIndexURL string `mapstructure:"SITEMAP_INDEX_URL"`

	ConnectTimeoutSeconds float64 `mapstructure:"HTTP_CONNECT_TIMEOUT_SECONDS"`
	ReadTimeoutSeconds    float64 `mapstructure:"HTTP_READ_TIMEOUT_SECONDS"`
	MaxRetries            int     `mapstructure:"MAX_RETRIES"`
	BackoffSeconds        float64 `mapstructure:"BACKOFF_SECONDS"`
	BackoffJitterSeconds  float64 `mapstructure:"BACKOFF_JITTER_SECONDS"`
	RequestDelaySeconds   float64 `mapstructure:"REQUEST_DELAY_SECONDS"`

	Concurrency       int     `mapstructure:"CONCURRENCY"`
	BatchPauseSeconds float64 `mapstructure:"BATCH_PAUSE_SECONDS"`

	MaxSitemaps    int `mapstructure:"MAX_SITEMAPS"`
	URLsPerSitemap int `mapstructure:"URLS_PER_SITEMAP"`
	PoolSize       int `mapstructure:"POOL_SIZE"`

	MaxListings  int `mapstructure:"MAX_LISTINGS"`
	PerMakeLimit int `mapstructure:"PER_MAKE_LIMIT"`

	InactiveAfterDays int `mapstructure:"INACTIVE_AFTER_DAYS"`
	DeleteAfterDays   int `mapstructure:"DELETE_AFTER_DAYS"`

	JPYToRUBRate float64 `mapstructure:"JPY_TO_RUB_RATE"`

	RunOnce         bool `mapstructure:"RUN_ONCE"`
	IntervalSeconds int  `mapstructure:"INTERVAL_SECONDS"`
	UpsertBatchSize int  `mapstructure:"UPSERT_BATCH_SIZE"`
}

// Load reads configuration from file or environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present.
	// This allows configuration purely through environment variables in production.
	_ = viper.ReadInConfig()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")

	viper.SetDefault("SOURCE_NAME", "carsensor")
	viper.SetDefault("BASE_URL", "https://www.carsensor.net")
	viper.SetDefault("ROBOTS_URL", "https://www.carsensor.net/robots.txt")
	viper.SetDefault("SITEMAP_INDEX_URL", "https://www.carsensor.net/usedcar-detail-index.xml")

	viper.SetDefault("HTTP_CONNECT_TIMEOUT_SECONDS", 10)
	viper.SetDefault("HTTP_READ_TIMEOUT_SECONDS", 30)
	viper.SetDefault("MAX_RETRIES", 3)
	viper.SetDefault("BACKOFF_SECONDS", 2.0)
	viper.SetDefault("BACKOFF_JITTER_SECONDS", 1.0)
	viper.SetDefault("REQUEST_DELAY_SECONDS", 0.5)

	viper.SetDefault("CONCURRENCY", 5)
	viper.SetDefault("BATCH_PAUSE_SECONDS", 2.0)

	viper.SetDefault("MAX_SITEMAPS", 40)
	viper.SetDefault("URLS_PER_SITEMAP", 2000)
	viper.SetDefault("POOL_SIZE", 20000)

	viper.SetDefault("MAX_LISTINGS", 300)
	viper.SetDefault("PER_MAKE_LIMIT", 10)

	viper.SetDefault("INACTIVE_AFTER_DAYS", 7)
	viper.SetDefault("DELETE_AFTER_DAYS", 30)

	viper.SetDefault("JPY_TO_RUB_RATE", 0.62)

	viper.SetDefault("RUN_ONCE", false)
	viper.SetDefault("INTERVAL_SECONDS", 21600)
	viper.SetDefault("UPSERT_BATCH_SIZE", 500)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) ConnectTimeout() time.Duration {
	return secondsToDuration(c.ConnectTimeoutSeconds)
}

func (c *Config) ReadTimeout() time.Duration {
	return secondsToDuration(c.ReadTimeoutSeconds)
}

func (c *Config) BackoffBase() time.Duration {
	return secondsToDuration(c.BackoffSeconds)
}

func (c *Config) BackoffJitter() time.Duration {
	return secondsToDuration(c.BackoffJitterSeconds)
}

func (c *Config) RequestDelay() time.Duration {
	return secondsToDuration(c.RequestDelaySeconds)
}

func (c *Config) BatchPause() time.Duration {
	return secondsToDuration(c.BatchPauseSeconds)
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
