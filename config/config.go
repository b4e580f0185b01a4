package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MaxFeedPageSize is the largest page the api server returns.
const MaxFeedPageSize = 100

type Config struct {
	AppEnv string `mapstructure:"APP_ENV"`

	// client core
	APIBaseURL         string        `mapstructure:"API_BASE_URL"`
	APITimeout         time.Duration `mapstructure:"API_TIMEOUT"`
	FeedPageSize       int           `mapstructure:"FEED_PAGE_SIZE"`
	ResolveConcurrency int           `mapstructure:"RESOLVE_CONCURRENCY"`
	CacheBackend       string        `mapstructure:"CACHE_BACKEND"`
	CacheMaxEntries    int           `mapstructure:"CACHE_MAX_ENTRIES"`
	CacheSingleFlight  bool          `mapstructure:"CACHE_SINGLE_FLIGHT"`
	CacheTTL           time.Duration `mapstructure:"CACHE_TTL"`
	LocalDBPath        string        `mapstructure:"LOCAL_DB_PATH"`

	// sandbox api server
	DBDriver   string `mapstructure:"DB_DRIVER"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBName     string `mapstructure:"DB_NAME"`
	SQLitePath string `mapstructure:"SQLITE_PATH"`
	ServerPort string `mapstructure:"SERVER_PORT"`

	JWTSecretKey      string        `mapstructure:"JWT_SECRET_KEY"`
	JWTIssuer         string        `mapstructure:"JWT_ISSUER"`
	JWTExpirationTime time.Duration `mapstructure:"JWT_EXPIRATION_TIME"`

	RedisHost     string `mapstructure:"REDIS_HOST"`
	RedisPort     string `mapstructure:"REDIS_PORT"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	MQUser     string `mapstructure:"MQ_USER"`
	MQPassword string `mapstructure:"MQ_PASSWORD"`
	MQHost     string `mapstructure:"MQ_HOST"`
	MQPort     string `mapstructure:"MQ_PORT"`

	MinioEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinioPublicURL string `mapstructure:"MINIO_PUBLIC_URL"`
	MinioAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket    string `mapstructure:"MINIO_BUCKET"`

	JaegerEndpoint  string        `mapstructure:"JAEGER_ENDPOINT"`
	FollowRateLimit int           `mapstructure:"FOLLOW_RATE_LIMIT"`
	FollowRateWin   time.Duration `mapstructure:"FOLLOW_RATE_WINDOW"`
}

func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	configureViper(v)
	if err := readConfiguration(v); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

// normalize backfills values that an empty env entry can zero out.
func (c *Config) normalize() {
	if c.FeedPageSize <= 0 {
		c.FeedPageSize = 10
	}
	// a page larger than the server serves would always come back short
	c.FeedPageSize = min(c.FeedPageSize, MaxFeedPageSize)
	if c.ResolveConcurrency <= 0 {
		c.ResolveConcurrency = 4
	}
	if c.APITimeout <= 0 {
		c.APITimeout = 10 * time.Second
	}
	if c.CacheBackend == "" {
		c.CacheBackend = "memory"
	}
	if c.JWTSecretKey == "" {
		c.JWTSecretKey = "your_fallback_secret_key_change_in_production"
	}
	if c.JWTIssuer == "" {
		c.JWTIssuer = "feedsync"
	}
	if c.JWTExpirationTime == 0 {
		c.JWTExpirationTime = time.Hour * 24 * 365
	}
	if c.RedisHost == "" {
		c.RedisHost = "localhost"
	}
	if c.RedisPort == "" {
		c.RedisPort = "6379"
	}
	if c.FollowRateWin <= 0 {
		c.FollowRateWin = time.Minute
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")

	v.SetDefault("API_BASE_URL", "http://localhost:8080")
	v.SetDefault("API_TIMEOUT", "10s")
	v.SetDefault("FEED_PAGE_SIZE", 10)
	v.SetDefault("RESOLVE_CONCURRENCY", 4)
	v.SetDefault("CACHE_BACKEND", "memory")
	v.SetDefault("CACHE_MAX_ENTRIES", 0)
	v.SetDefault("CACHE_SINGLE_FLIGHT", false)
	v.SetDefault("CACHE_TTL", "24h")
	v.SetDefault("LOCAL_DB_PATH", "./data/feedsync.db")

	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_USER", "root")
	v.SetDefault("DB_PASSWORD", "root")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_NAME", "feedsync")
	v.SetDefault("SQLITE_PATH", "./data/apiserver.db")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("JWT_SECRET_KEY", "your_fallback_secret_key_change_in_production")
	v.SetDefault("JWT_ISSUER", "feedsync")
	v.SetDefault("JWT_EXPIRATION_TIME", "8760h")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", "0")

	v.SetDefault("MQ_USER", "guest")
	v.SetDefault("MQ_PASSWORD", "guest")
	v.SetDefault("MQ_HOST", "localhost")
	v.SetDefault("MQ_PORT", "5672")

	v.SetDefault("MINIO_ENDPOINT", "")
	v.SetDefault("MINIO_PUBLIC_URL", "http://localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "")
	v.SetDefault("MINIO_SECRET_KEY", "")
	v.SetDefault("MINIO_BUCKET", "post-media")

	v.SetDefault("JAEGER_ENDPOINT", "")
	v.SetDefault("FOLLOW_RATE_LIMIT", 30)
	v.SetDefault("FOLLOW_RATE_WINDOW", "1m")
}

func configureViper(v *viper.Viper) {
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

func readConfiguration(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Warning: .env file not found, using defaults and system env")
			return nil
		}
		return fmt.Errorf("config file error: %w", err)
	}
	fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	return nil
}
