package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	JWT            JWTConfig            `yaml:"jwt"`
	Log            LogConfig            `yaml:"log"`
	Momo           MomoConfig           `yaml:"momo"`
	Redis          RedisConfig          `yaml:"redis"`
	Kafka          KafkaConfig          `yaml:"kafka"`
	Scheduler      SchedulerConfig      `yaml:"scheduler"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
}

// ServerConfig contains HTTP and gRPC health server settings
type ServerConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	GRPCHealthPort     int    `yaml:"grpc_health_port"`
	ReadTimeoutSeconds int    `yaml:"read_timeout_seconds"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
}

// JWTConfig contains the settings used to verify identity tokens
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// MomoProductConfig holds the credentials of one MTN MoMo product
type MomoProductConfig struct {
	SubscriptionKey string `yaml:"subscription_key"`
	APIUser         string `yaml:"api_user"`
	APIKey          string `yaml:"api_key"`
}

// MomoConfig contains MTN MoMo gateway settings
type MomoConfig struct {
	Environment     string            `yaml:"environment"` // "sandbox" or a production target such as "mtnghana"
	BaseURL         string            `yaml:"base_url"`
	Currency        string            `yaml:"currency"`
	CallbackURL     string            `yaml:"callback_url"`
	WebhookSecret   string            `yaml:"webhook_secret"`
	TokenTTLMinutes int               `yaml:"token_ttl_minutes"`
	TokenCache      string            `yaml:"token_cache"` // "memory" or "redis"
	TimeoutSeconds  int               `yaml:"timeout_seconds"`
	Collection      MomoProductConfig `yaml:"collection"`
}

// RedisConfig contains the shared cache connection used by the MoMo token store
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig contains ledger event publishing settings
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	ReconcilePendingTopUps string `yaml:"reconcile_pending_topups"`
}

// ReconciliationConfig controls the stale top-up poll
type ReconciliationConfig struct {
	OlderThanMinutes int `yaml:"older_than_minutes"`
	BatchSize        int `yaml:"batch_size"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables if present
	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// MoMo
	if val := os.Getenv("MOMO_ENVIRONMENT"); val != "" {
		c.Momo.Environment = val
	}
	if val := os.Getenv("MOMO_COLLECTION_PRIMARY_KEY"); val != "" {
		c.Momo.Collection.SubscriptionKey = val
	}
	if val := os.Getenv("MOMO_COLLECTION_USER_ID"); val != "" {
		c.Momo.Collection.APIUser = val
	}
	if val := os.Getenv("MOMO_COLLECTION_API_KEY"); val != "" {
		c.Momo.Collection.APIKey = val
	}
	if val := os.Getenv("MOMO_WEBHOOK_SECRET"); val != "" {
		c.Momo.WebhookSecret = val
	}

	// Redis
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}

	// Kafka
	if val := os.Getenv("KAFKA_BROKERS"); val != "" {
		c.Kafka.Brokers = strings.Split(val, ",")
		c.Kafka.Enabled = true
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.GRPCHealthPort < 0 || c.Server.GRPCHealthPort > 65535 {
		return fmt.Errorf("invalid grpc health port: %d", c.Server.GRPCHealthPort)
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 15
	}

	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}

	// MoMo defaults
	if c.Momo.Environment == "" {
		c.Momo.Environment = "sandbox"
	}
	if c.Momo.BaseURL == "" {
		if c.Momo.Environment == "sandbox" {
			c.Momo.BaseURL = "https://sandbox.momodeveloper.mtn.com"
		} else {
			c.Momo.BaseURL = "https://proxy.momoapi.mtn.com"
		}
	}
	if c.Momo.Currency == "" {
		c.Momo.Currency = "GHS"
	}
	if c.Momo.TokenTTLMinutes == 0 {
		c.Momo.TokenTTLMinutes = 55 // provider tokens live 60 minutes
	}
	if c.Momo.TokenTTLMinutes >= 60 {
		return fmt.Errorf("momo token ttl must be shorter than the provider's 60 minute expiry")
	}
	if c.Momo.TimeoutSeconds == 0 {
		c.Momo.TimeoutSeconds = 30
	}
	switch c.Momo.TokenCache {
	case "":
		c.Momo.TokenCache = "memory"
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required when momo token cache is redis")
		}
	default:
		return fmt.Errorf("invalid momo token cache: %s", c.Momo.TokenCache)
	}

	// Kafka validation
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka brokers are required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			c.Kafka.Topic = "feepay.ledger"
		}
	}

	// Scheduler defaults
	if c.Scheduler.ReconcilePendingTopUps == "" {
		c.Scheduler.ReconcilePendingTopUps = "0 */5 * * * *" // every 5 minutes
	}

	// Reconciliation defaults
	if c.Reconciliation.OlderThanMinutes == 0 {
		c.Reconciliation.OlderThanMinutes = 10
	}
	if c.Reconciliation.BatchSize == 0 {
		c.Reconciliation.BatchSize = 50
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetHealthAddress returns the gRPC health server address, or "" when disabled
func (c *Config) GetHealthAddress() string {
	if c.Server.GRPCHealthPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCHealthPort)
}

// TokenTTL returns the local validity window for cached MoMo tokens
func (m MomoConfig) TokenTTL() time.Duration {
	return time.Duration(m.TokenTTLMinutes) * time.Minute
}

// ReconcileOlderThan returns the age after which a PENDING top-up is polled
func (r ReconciliationConfig) ReconcileOlderThan() time.Duration {
	return time.Duration(r.OlderThanMinutes) * time.Minute
}
