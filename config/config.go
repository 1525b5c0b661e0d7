package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

type Config struct {
	// Telegram bot
	Bot BotConfig `mapstructure:"bot"`

	// Link shortening provider (vk.cc)
	Provider ProviderConfig `mapstructure:"provider"`

	// Conversation / batch intake
	Intake IntakeConfig `mapstructure:"intake"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	// Ops HTTP server (health + webhook)
	HTTP HTTPConfig `mapstructure:"http"`

	// OpenTelemetry
	Tracing TracingConfig `mapstructure:"tracing"`

	// Logging
	Log LogConfig `mapstructure:"log"`
}

type BotConfig struct {
	Token         string `mapstructure:"token"`
	Mode          string `mapstructure:"mode"`
	WebhookURL    string `mapstructure:"webhook_url"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	PollTimeout   int    `mapstructure:"poll_timeout"`
	Debug         bool   `mapstructure:"debug"`
}

type ProviderConfig struct {
	Token      string        `mapstructure:"token"`
	BaseURL    string        `mapstructure:"base_url"`
	APIVersion string        `mapstructure:"api_version"`
	Timeout    time.Duration `mapstructure:"timeout"`
	StatsTTL   time.Duration `mapstructure:"stats_ttl"`
}

type IntakeConfig struct {
	MaxBatchSize    int           `mapstructure:"max_batch_size"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	PageSize        int           `mapstructure:"page_size"`
	ThrottleLimit   int           `mapstructure:"throttle_limit"`
	ThrottleWindow  time.Duration `mapstructure:"throttle_window"`
	LaneIdleTimeout time.Duration `mapstructure:"lane_idle_timeout"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	Port              int    `mapstructure:"port"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type HTTPConfig struct {
	Port        int    `mapstructure:"port"`
	WebhookPath string `mapstructure:"webhook_path"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

var (
	ErrMissingBotToken      = errors.New("bot token is required (BOT_TOKEN)")
	ErrMissingProviderToken = errors.New("provider token is required (VK_TOKEN)")
)

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Flat env names used by deployments.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the settings the bot cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Bot.Token) == "" {
		return ErrMissingBotToken
	}
	if strings.TrimSpace(c.Provider.Token) == "" {
		return ErrMissingProviderToken
	}
	if c.Intake.MaxBatchSize < 1 {
		return fmt.Errorf("intake.max_batch_size must be positive, got %d", c.Intake.MaxBatchSize)
	}
	switch c.Bot.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.Bot.WebhookURL == "" {
			return errors.New("bot.webhook_url is required in webhook mode (WEBHOOK_URL)")
		}
	default:
		return fmt.Errorf("bot.mode must be %q or %q, got %q", ModePolling, ModeWebhook, c.Bot.Mode)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.mode", ModePolling)
	v.SetDefault("bot.poll_timeout", 60)

	v.SetDefault("provider.base_url", "https://api.vk.com/method")
	v.SetDefault("provider.api_version", "5.199")
	v.SetDefault("provider.timeout", 10*time.Second)
	v.SetDefault("provider.stats_ttl", time.Minute)

	v.SetDefault("intake.max_batch_size", 50)
	v.SetDefault("intake.session_ttl", 30*time.Minute)
	v.SetDefault("intake.page_size", 5)
	v.SetDefault("intake.throttle_limit", 30)
	v.SetDefault("intake.throttle_window", time.Minute)
	v.SetDefault("intake.lane_idle_timeout", 2*time.Minute)

	v.SetDefault("prometheus.enabled", true)
	v.SetDefault("prometheus.port", 9090)

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.webhook_path", "/telegram/webhook")

	v.SetDefault("tracing.service_name", "linkbot")

	v.SetDefault("log.level", "info")
}

func bindEnvVars(v *viper.Viper) {
	// Telegram
	v.BindEnv("bot.token", "BOT_TOKEN")
	v.BindEnv("bot.mode", "BOT_MODE")
	v.BindEnv("bot.webhook_url", "WEBHOOK_URL")
	v.BindEnv("bot.webhook_secret", "WEBHOOK_SECRET")
	v.BindEnv("bot.poll_timeout", "BOT_POLL_TIMEOUT")
	v.BindEnv("bot.debug", "BOT_DEBUG")

	// Provider
	v.BindEnv("provider.token", "VK_TOKEN")
	v.BindEnv("provider.base_url", "VK_BASE_URL")
	v.BindEnv("provider.api_version", "VK_API_VERSION")
	v.BindEnv("provider.timeout", "PROVIDER_TIMEOUT")
	v.BindEnv("provider.stats_ttl", "STATS_CACHE_TTL")

	// Intake
	v.BindEnv("intake.max_batch_size", "MAX_LINKS_PER_BATCH")
	v.BindEnv("intake.session_ttl", "SESSION_TTL")
	v.BindEnv("intake.page_size", "LINKS_PAGE_SIZE")
	v.BindEnv("intake.throttle_limit", "THROTTLE_LIMIT")
	v.BindEnv("intake.throttle_window", "THROTTLE_WINDOW")
	v.BindEnv("intake.lane_idle_timeout", "LANE_IDLE_TIMEOUT")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")
	v.BindEnv("postgres.max_conns", "PG_MAX_CONNS")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.enabled", "NATS_ENABLED")
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")

	// Prometheus
	v.BindEnv("prometheus.enabled", "PROM_ENABLED")
	v.BindEnv("prometheus.port", "PROM_PORT")

	// HTTP
	v.BindEnv("http.port", "HTTP_PORT")
	v.BindEnv("http.webhook_path", "WEBHOOK_PATH")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.endpoint", "OTLP_GRPC_ENDPOINT")
	v.BindEnv("tracing.service_name", "SERVICE_NAME")

	// Logging
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.encoding", "LOG_ENCODING")
}
