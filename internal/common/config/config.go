// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	API           APIConfig          `mapstructure:"api"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Kafka         KafkaConfig        `mapstructure:"kafka"`
	Evaluation    EvaluationConfig   `mapstructure:"evaluation"`
	Dispatch      DispatchConfig     `mapstructure:"dispatch"`
	Pricing       PricingConfig      `mapstructure:"pricing"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Search        SearchConfig       `mapstructure:"search"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type APIConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
	MetricsPort   int    `mapstructure:"metrics_port"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string.
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Enabled   bool     `mapstructure:"enabled"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	DispatchTopic string   `mapstructure:"dispatch_topic"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
}

// EvaluationConfig controls the periodic alert evaluation cycle.
type EvaluationConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	WorkerCount  int           `mapstructure:"worker_count"`
	PriceTimeout time.Duration `mapstructure:"price_timeout"`
}

// DispatchConfig controls the notification dispatch worker pool.
type DispatchConfig struct {
	WorkerCount     int           `mapstructure:"worker_count"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	BackoffBase     time.Duration `mapstructure:"backoff_base"`
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`
}

type PricingConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// NotificationConfig holds channel-level delivery settings.
type NotificationConfig struct {
	EmailEnabled   bool          `mapstructure:"email_enabled"`
	WebhookEnabled bool          `mapstructure:"webhook_enabled"`
	FromEmail      string        `mapstructure:"from_email"`
	AWSRegion      string        `mapstructure:"aws_region"`
	BroadcastTopic string        `mapstructure:"broadcast_topic"` // SNS topic ARN for system broadcasts
	RetentionDays  int           `mapstructure:"retention_days"`
	CleanupEvery   time.Duration `mapstructure:"cleanup_every"`
}

type SearchConfig struct {
	NotificationIndex string `mapstructure:"notification_index"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required")
	}
	if cfg.Kafka.DispatchTopic == "" {
		return fmt.Errorf("kafka.dispatch_topic is required")
	}
	if cfg.Evaluation.Interval <= 0 {
		return fmt.Errorf("evaluation.interval must be positive")
	}
	if cfg.Dispatch.MaxAttempts <= 0 {
		return fmt.Errorf("dispatch.max_attempts must be positive")
	}
	if cfg.Dispatch.BackoffBase <= 0 {
		return fmt.Errorf("dispatch.backoff_base must be positive")
	}
	if cfg.Notifications.EmailEnabled && cfg.Notifications.FromEmail == "" {
		return fmt.Errorf("notifications.from_email is required when email is enabled")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "stockwatch"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.API.ListenAddress == "" {
		cfg.API.ListenAddress = ":8080"
	}
	if cfg.API.MetricsPort == 0 {
		cfg.API.MetricsPort = 9100
	}
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 20
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = "stockwatch-dispatch"
	}
	if cfg.Kafka.DispatchTopic == "" {
		cfg.Kafka.DispatchTopic = "alert-dispatch"
	}
	if cfg.Evaluation.Interval == 0 {
		cfg.Evaluation.Interval = 5 * time.Minute
	}
	if cfg.Evaluation.WorkerCount == 0 {
		cfg.Evaluation.WorkerCount = 8
	}
	if cfg.Evaluation.PriceTimeout == 0 {
		cfg.Evaluation.PriceTimeout = 5 * time.Second
	}
	if cfg.Dispatch.WorkerCount == 0 {
		cfg.Dispatch.WorkerCount = 4
	}
	if cfg.Dispatch.MaxAttempts == 0 {
		cfg.Dispatch.MaxAttempts = 3
	}
	if cfg.Dispatch.BackoffBase == 0 {
		cfg.Dispatch.BackoffBase = 10 * time.Second
	}
	if cfg.Dispatch.DeliveryTimeout == 0 {
		cfg.Dispatch.DeliveryTimeout = 30 * time.Second
	}
	if cfg.Pricing.CacheTTL == 0 {
		cfg.Pricing.CacheTTL = 5 * time.Minute
	}
	if cfg.Notifications.AWSRegion == "" {
		cfg.Notifications.AWSRegion = "us-east-1"
	}
	if cfg.Notifications.RetentionDays == 0 {
		cfg.Notifications.RetentionDays = 90
	}
	if cfg.Notifications.CleanupEvery == 0 {
		cfg.Notifications.CleanupEvery = 24 * time.Hour
	}
	if cfg.Search.NotificationIndex == "" {
		cfg.Search.NotificationIndex = "notifications"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
