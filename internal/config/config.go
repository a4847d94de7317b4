package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/fairyhunter13/recycling-rewards/internal/model"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Log       LogConfig
	Ledger    LedgerConfig
	Reward    RewardConfig
	Notify    NotifyConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
type DBConfig struct {
	Host        string `envconfig:"DB_HOST" default:"localhost"`
	Port        int    `envconfig:"DB_PORT" default:"5432"`
	User        string `envconfig:"DB_USER" default:"postgres"`
	Password    string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name        string `envconfig:"DB_NAME" default:"recycling_db"`
	SSLMode     string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns    int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns    int    `envconfig:"DB_MIN_CONNS" default:"5"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d&pool_min_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode, c.MaxConns, c.MinConns)
}

// LogConfig holds logging configuration.
// When File is set, logs are also written to a rotating file.
type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty     bool   `envconfig:"LOG_PRETTY" default:"false"`
	File       string `envconfig:"LOG_FILE"`
	MaxSizeMB  int    `envconfig:"LOG_MAX_SIZE_MB" default:"100"`
	MaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"5"`
	MaxAgeDays int    `envconfig:"LOG_MAX_AGE_DAYS" default:"28"`
}

// LedgerConfig controls token minting and redemption.
type LedgerConfig struct {
	PointsTable map[string]int `envconfig:"POINTS_TABLE" default:"plastic:5,tin:6,paper:3,glass:8,electronics:15,other:4"`
	// LazyMint creates a scanned token that was never minted, then redeems it.
	LazyMint bool `envconfig:"LEDGER_LAZY_MINT" default:"true"`
	// LazyTrustPayload takes the point value of a lazily created token from
	// the scanned payload instead of the point table.
	LazyTrustPayload bool `envconfig:"LEDGER_LAZY_TRUST_PAYLOAD" default:"false"`
	AcceptLegacy     bool `envconfig:"CODEC_ACCEPT_LEGACY" default:"true"`
	BulkMax          int  `envconfig:"MINT_BULK_MAX" default:"50"`
}

// Points returns the configured point table with normalized category keys.
func (c LedgerConfig) Points() model.PointTable {
	if len(c.PointsTable) == 0 {
		return model.DefaultPointTable()
	}
	table := make(model.PointTable, len(c.PointsTable))
	for category, points := range c.PointsTable {
		table[model.NormalizeCategory(category)] = points
	}
	return table
}

// RewardConfig controls the bin reward cycle.
type RewardConfig struct {
	Threshold int  `envconfig:"REWARD_THRESHOLD" default:"10"`
	AutoReset bool `envconfig:"REWARD_AUTO_RESET" default:"false"`
}

// NotifyConfig selects and configures the collection notifier.
// Driver is one of "log", "sms", "webhook" or "mqtt".
type NotifyConfig struct {
	Driver  string        `envconfig:"NOTIFY_DRIVER" default:"log"`
	Timeout time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"5s"`

	TwilioBaseURL    string `envconfig:"NOTIFY_TWILIO_BASE_URL" default:"https://api.twilio.com"`
	TwilioAccountSID string `envconfig:"NOTIFY_TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `envconfig:"NOTIFY_TWILIO_AUTH_TOKEN"`
	SMSFrom          string `envconfig:"NOTIFY_SMS_FROM"`
	SMSTo            string `envconfig:"NOTIFY_SMS_TO"`

	WebhookURL    string `envconfig:"NOTIFY_WEBHOOK_URL"`
	WebhookSecret string `envconfig:"NOTIFY_WEBHOOK_SECRET"`

	MQTTBroker   string `envconfig:"NOTIFY_MQTT_BROKER" default:"tcp://localhost:1883"`
	MQTTClientID string `envconfig:"NOTIFY_MQTT_CLIENT_ID" default:"recycling-rewards"`
	MQTTUsername string `envconfig:"NOTIFY_MQTT_USERNAME"`
	MQTTPassword string `envconfig:"NOTIFY_MQTT_PASSWORD"`
	MQTTTopic    string `envconfig:"NOTIFY_MQTT_TOPIC" default:"recycling/collections"`
}

// AuthConfig configures how the caller identity is resolved.
// Mode "jwt" verifies an HS256 bearer token; mode "header" trusts headers
// set by an upstream gateway.
type AuthConfig struct {
	Mode        string `envconfig:"AUTH_MODE" default:"jwt"`
	JWTSecret   string `envconfig:"AUTH_JWT_SECRET"`
	UserHeader  string `envconfig:"AUTH_USER_HEADER" default:"X-User-ID"`
	AdminHeader string `envconfig:"AUTH_ADMIN_HEADER" default:"X-User-Admin"`
}

// RateLimitConfig bounds how fast a single user may scan.
type RateLimitConfig struct {
	Enabled   bool    `envconfig:"SCAN_RATE_LIMIT_ENABLED" default:"true"`
	ScanRPS   float64 `envconfig:"SCAN_RATE_LIMIT_RPS" default:"2"`
	ScanBurst int     `envconfig:"SCAN_RATE_LIMIT_BURST" default:"5"`
}

// Load parses environment variables into the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	for category, points := range c.Ledger.PointsTable {
		if points < 0 {
			return fmt.Errorf("POINTS_TABLE: negative value for %q", category)
		}
	}
	if c.Ledger.BulkMax < 1 {
		return fmt.Errorf("MINT_BULK_MAX must be at least 1, got %d", c.Ledger.BulkMax)
	}
	if c.Reward.Threshold < 1 {
		return fmt.Errorf("REWARD_THRESHOLD must be at least 1, got %d", c.Reward.Threshold)
	}
	switch c.Auth.Mode {
	case "jwt":
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("AUTH_JWT_SECRET is required when AUTH_MODE=jwt")
		}
	case "header":
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.Auth.Mode)
	}
	return nil
}
