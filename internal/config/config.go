package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prorata-io/prorata/internal/types"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `mapstructure:"deployment"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Stripe     StripeConfig     `mapstructure:"stripe"`
	Billing    BillingConfig    `mapstructure:"billing"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" default:"local"`
}

type LoggingConfig struct {
	Level          types.LogLevel `mapstructure:"level" default:"info"`
	DBLevel        types.LogLevel `mapstructure:"db_level" default:"info"`
	FluentdEnabled bool           `mapstructure:"fluentd_enabled"`
	FluentdHost    string         `mapstructure:"fluentd_host"`
	FluentdPort    int            `mapstructure:"fluentd_port"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host" default:"localhost"`
	Port                   int    `mapstructure:"port" default:"5432"`
	User                   string `mapstructure:"user" default:"postgres"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname" default:"prorata"`
	SSLMode                string `mapstructure:"sslmode" default:"disable"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" default:"20"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" default:"10"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" default:"60"`
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type CacheConfig struct {
	Type              string `mapstructure:"type" default:"inmemory"`
	DefaultTTLSeconds int    `mapstructure:"default_ttl_seconds" default:"300"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" default:"localhost:6379"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ClientID      string   `mapstructure:"client_id" default:"prorata"`
	ConsumerGroup string   `mapstructure:"consumer_group" default:"prorata-usage"`
	UsageTopic    string   `mapstructure:"usage_topic" default:"usage_events"`
	TLS           bool     `mapstructure:"tls"`
	UseSASL       bool     `mapstructure:"use_sasl"`
	SASLMechanism string   `mapstructure:"sasl_mechanism"`
	SASLUser      string   `mapstructure:"sasl_user"`
	SASLPassword  string   `mapstructure:"sasl_password"`
}

type StripeConfig struct {
	SecretKey string `mapstructure:"secret_key"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment" default:"local"`
	SampleRate  float64 `mapstructure:"sample_rate" default:"1.0"`
}

// BillingConfig holds engine level billing policy knobs.
type BillingConfig struct {
	DefaultCurrency string `mapstructure:"default_currency" default:"usd"`
	// FloorInvoiceTotal floors the due-today total at zero when true.
	FloorInvoiceTotal bool `mapstructure:"floor_invoice_total" default:"true"`
	// AlertThresholdPercent emits a low balance alert once the remaining
	// share of an allowance drops below this percentage. Zero disables alerts.
	AlertThresholdPercent int `mapstructure:"alert_threshold_percent" default:"10"`
}

// NewConfig loads configuration from config files and environment variables.
// Environment variables use the PRORATA_ prefix with underscores, e.g.
// PRORATA_POSTGRES_HOST.
func NewConfig() (*Configuration, error) {
	// Load .env if present; silently skipped otherwise
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("prorata")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := GetDefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// GetDefaultConfig returns a configuration suitable for local development
// and tests.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging: LoggingConfig{
			Level:   types.LogLevelInfo,
			DBLevel: types.LogLevelInfo,
		},
		Postgres: PostgresConfig{
			Host:                   "localhost",
			Port:                   5432,
			User:                   "postgres",
			DBName:                 "prorata",
			SSLMode:                "disable",
			MaxOpenConns:           20,
			MaxIdleConns:           10,
			ConnMaxLifetimeMinutes: 60,
		},
		Cache: CacheConfig{Type: "inmemory", DefaultTTLSeconds: 300},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Kafka: KafkaConfig{
			ClientID:      "prorata",
			ConsumerGroup: "prorata-usage",
			UsageTopic:    "usage_events",
		},
		Billing: BillingConfig{
			DefaultCurrency:       "usd",
			FloorInvoiceTotal:     true,
			AlertThresholdPercent: 10,
		},
		Sentry: SentryConfig{Environment: "local", SampleRate: 1.0},
	}
}
