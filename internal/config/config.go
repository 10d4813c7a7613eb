package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Etcd      EtcdConfig      `mapstructure:"etcd"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Environment     string        `mapstructure:"environment"`
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CorsOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig selects the storage backend: "mysql", "sqlite" or "memory".
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig is optional; an empty Addr disables redis and rate limiting stays local.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type EtcdConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type WorkersConfig struct {
	OutboxInterval     time.Duration `mapstructure:"outbox_interval"`
	OutboxBatchSize    int           `mapstructure:"outbox_batch_size"`
	ReconcilerSchedule string        `mapstructure:"reconciler_schedule"`
}

type WebhookConfig struct {
	RequestTimeout time.Duration   `mapstructure:"request_timeout"`
	RetryDelays    []time.Duration `mapstructure:"retry_delays"`
	PoolSize       int             `mapstructure:"pool_size"`
	QueueSize      int             `mapstructure:"queue_size"`
	MaxParallel    int             `mapstructure:"max_parallel"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type RateLimitConfig struct {
	RequestsPerSecond         int `mapstructure:"requests_per_second"`
	EvaluateRequestsPerSecond int `mapstructure:"evaluate_requests_per_second"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.environment", "dev")
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "rollouthq.db")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("etcd.enabled", false)
	v.SetDefault("etcd.endpoints", []string{"127.0.0.1:2379"})
	v.SetDefault("etcd.dial_timeout", 5*time.Second)

	v.SetDefault("workers.outbox_interval", 5*time.Second)
	v.SetDefault("workers.outbox_batch_size", 10)
	v.SetDefault("workers.reconciler_schedule", "@every 1m")

	v.SetDefault("webhook.request_timeout", 10*time.Second)
	v.SetDefault("webhook.retry_delays", []string{"1s", "5s", "30s"})
	v.SetDefault("webhook.pool_size", 4)
	v.SetDefault("webhook.queue_size", 256)
	v.SetDefault("webhook.max_parallel", 8)

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("ratelimit.requests_per_second", 20)
	v.SetDefault("ratelimit.evaluate_requests_per_second", 200)
}

// Load reads .env, then config.yaml from . or ./config, then ROLLOUT_* variables.
// Later sources win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("ROLLOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Driver != "memory" && c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Etcd.Enabled && len(c.Etcd.Endpoints) == 0 {
		return errors.New("etcd.endpoints is required when etcd is enabled")
	}
	return nil
}
