package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/fieldservice-api/internal/repository/postgres"
	"github.com/jwalitptl/fieldservice-api/pkg/auth"
	"github.com/jwalitptl/fieldservice-api/pkg/mail"
	"github.com/jwalitptl/fieldservice-api/pkg/messaging/redis"
	"github.com/jwalitptl/fieldservice-api/pkg/worker"
)

// EnvPrefix is the prefix of environment variables that override file values,
// e.g. FSM_DATABASE_HOST or FSM_JWT_SECRET.
const EnvPrefix = "FSM"

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" split_words:"true"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" split_words:"true"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" split_words:"true"`
	MigrationsPath  string        `mapstructure:"migrations_path" split_words:"true"`
	AutoMigrate     bool          `mapstructure:"auto_migrate" split_words:"true"`
}

// DSN returns the lib/pq connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func (c DatabaseConfig) ToPoolConfig() postgres.PoolConfig {
	return postgres.PoolConfig{
		DSN:             c.DSN(),
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" split_words:"true"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" split_words:"true"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" split_words:"true"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes" split_words:"true"`
}

type JWTConfig struct {
	Secret             string `mapstructure:"secret"`
	RefreshSecret      string `mapstructure:"refresh_secret" split_words:"true"`
	ExpiryHours        int    `mapstructure:"expiry_hours" split_words:"true"`
	RefreshExpiryHours int    `mapstructure:"refresh_expiry_hours" split_words:"true"`
}

type RedisConfig struct {
	URL           string        `mapstructure:"url"`
	MaxRetries    int           `mapstructure:"max_retries" split_words:"true"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff" split_words:"true"`
	PoolSize      int           `mapstructure:"pool_size" split_words:"true"`
	MinIdleConns  int           `mapstructure:"min_idle_conns" split_words:"true"`
	EventsChannel string        `mapstructure:"events_channel" split_words:"true"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size" split_words:"true"`
	PollInterval  time.Duration `mapstructure:"poll_interval" split_words:"true"`
	RetryAttempts int           `mapstructure:"retry_attempts" split_words:"true"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" split_words:"true"`
	Retention     time.Duration `mapstructure:"retention"`
}

type AuditConfig struct {
	RetentionDays   int           `mapstructure:"retention_days" split_words:"true"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" split_words:"true"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" split_words:"true"`
	Burst             int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins" split_words:"true"`
	AllowedMethods []string `mapstructure:"allowed_methods" split_words:"true"`
	AllowedHeaders []string `mapstructure:"allowed_headers" split_words:"true"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type CacheConfig struct {
	CategoryTTL     time.Duration `mapstructure:"category_ttl" split_words:"true"`
	UserTTL         time.Duration `mapstructure:"user_ttl" split_words:"true"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" split_words:"true"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Prefix  string `mapstructure:"prefix"`
}

type WorkerConfig struct {
	HealthPort int `mapstructure:"health_port" split_words:"true"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Audit     AuditConfig     `mapstructure:"audit"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" split_words:"true"`
	CORS      CORSConfig      `mapstructure:"cors"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "fieldservice")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.migrations_path", "migrations")
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("jwt.expiry_hours", 24)
	v.SetDefault("jwt.refresh_expiry_hours", 24*7)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.events_channel", "fieldservice.events")

	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", 2*time.Second)
	v.SetDefault("outbox.retry_attempts", 5)
	v.SetDefault("outbox.retry_delay", 10*time.Second)
	v.SetDefault("outbox.retention", 7*24*time.Hour)

	v.SetDefault("audit.retention_days", 365)
	v.SetDefault("audit.cleanup_interval", time.Hour)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20.0)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"})

	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from", "no-reply@fieldservice.local")

	v.SetDefault("cache.category_ttl", 5*time.Minute)
	v.SetDefault("cache.user_ttl", time.Minute)
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.prefix", "fieldservice")

	v.SetDefault("worker.health_port", 8081)
}

// LoadConfig reads config.yml (or CONFIG_FILE), falls back to defaults for
// missing keys and finally applies FSM_* environment overrides.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")           // current directory
		v.AddConfigPath("./config")    // config subdirectory
		v.AddConfigPath("/app")        // container root directory
		v.AddConfigPath("/app/config") // container config directory
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret must be set")
	}
	if c.JWT.RefreshSecret == "" {
		c.JWT.RefreshSecret = c.JWT.Secret
	}
	if c.Outbox.BatchSize <= 0 || c.Outbox.PollInterval <= 0 {
		return errors.New("outbox batch_size and poll_interval must be positive")
	}
	if c.Outbox.RetryAttempts <= 0 || c.Outbox.RetryDelay <= 0 {
		return errors.New("outbox retry_attempts and retry_delay must be positive")
	}
	return nil
}

func (c *OutboxConfig) ToWorkerConfig() worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     c.BatchSize,
		PollInterval:  c.PollInterval,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
	}
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

func (c *JWTConfig) ToAuthConfig() auth.Config {
	return auth.Config{
		Secret:        c.Secret,
		RefreshSecret: c.RefreshSecret,
		AccessTTL:     time.Duration(c.ExpiryHours) * time.Hour,
		RefreshTTL:    time.Duration(c.RefreshExpiryHours) * time.Hour,
	}
}

func (c *SMTPConfig) ToMailConfig() mail.Config {
	return mail.Config{
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		From:     c.From,
	}
}
