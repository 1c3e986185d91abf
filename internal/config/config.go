package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Instantly  InstantlyConfig  `yaml:"instantly" mapstructure:"instantly"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Oracle     OracleConfig     `yaml:"oracle" mapstructure:"oracle"`
	Provision  ProvisionConfig  `yaml:"provision" mapstructure:"provision"`
	Enrichment EnrichmentConfig `yaml:"enrichment" mapstructure:"enrichment"`
	Followup   FollowupConfig   `yaml:"followup" mapstructure:"followup"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Auth       AuthConfig       `yaml:"auth" mapstructure:"auth"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Circuit    CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the campaign store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// InstantlyConfig holds lead vendor API settings.
type InstantlyConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"gte=1"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit" validate:"gte=0"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// OracleConfig selects the filter and copy generator.
type OracleConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider" validate:"oneof=anthropic gemini none"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours" validate:"gte=0"`
}

// ProvisionConfig configures campaign provisioning.
type ProvisionConfig struct {
	DefaultLeadCount    int      `yaml:"default_lead_count" mapstructure:"default_lead_count" validate:"gte=1,lte=1000"`
	SenderName          string   `yaml:"sender_name" mapstructure:"sender_name"`
	Timezone            string   `yaml:"timezone" mapstructure:"timezone"`
	SendFrom            string   `yaml:"send_from" mapstructure:"send_from"`
	SendTo              string   `yaml:"send_to" mapstructure:"send_to"`
	Accounts            []string `yaml:"accounts" mapstructure:"accounts" validate:"omitempty,dive,email"`
	Target              string   `yaml:"target" mapstructure:"target" validate:"oneof=list campaign"`
	SkipIfInWorkspace   bool     `yaml:"skip_if_in_workspace" mapstructure:"skip_if_in_workspace"`
	JobPollIntervalSecs int      `yaml:"job_poll_interval_secs" mapstructure:"job_poll_interval_secs" validate:"gte=1"`
	JobPollAttempts     int      `yaml:"job_poll_attempts" mapstructure:"job_poll_attempts" validate:"gte=1"`
}

// EnrichmentConfig bounds lead search polling.
type EnrichmentConfig struct {
	PollIntervalSecs       int `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs" validate:"gte=1"`
	MaxWaitSecs            int `yaml:"max_wait_secs" mapstructure:"max_wait_secs" validate:"gtefield=PollIntervalSecs"`
	MaxConsecutiveFailures int `yaml:"max_consecutive_failures" mapstructure:"max_consecutive_failures" validate:"gte=1"`
}

// FollowupConfig configures follow-up of timed-out lead searches.
type FollowupConfig struct {
	IntervalSecs      int    `yaml:"interval_secs" mapstructure:"interval_secs" validate:"gte=1"`
	MaxChecks         int    `yaml:"max_checks" mapstructure:"max_checks" validate:"gte=1"`
	Concurrency       int    `yaml:"concurrency" mapstructure:"concurrency" validate:"gte=1,lte=50"`
	TemporalHost      string `yaml:"temporal_host" mapstructure:"temporal_host"`
	TemporalNamespace string `yaml:"temporal_namespace" mapstructure:"temporal_namespace"`
}

// BatchConfig configures batch provisioning.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent" validate:"gte=1,lte=50"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// AuthConfig configures bearer token auth. An empty secret disables auth.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
}

// RedisConfig configures the oracle answer cache. An empty URL disables it.
type RedisConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// LogConfig configures logging. File enables a rotated copy of the log.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// RetryConfig configures retries of vendor calls.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts" validate:"gte=1,lte=10"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms" validate:"gte=0"`
	MaxBackoffSecs   int `yaml:"max_backoff_secs" mapstructure:"max_backoff_secs" validate:"gte=0"`
}

// CircuitConfig configures the vendor circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold" validate:"gte=1"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs" validate:"gte=1"`
}

// MonitoringConfig configures campaign health alerts.
type MonitoringConfig struct {
	Enabled             bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL          string  `yaml:"webhook_url" mapstructure:"webhook_url" validate:"omitempty,url"`
	CheckIntervalSecs   int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs" validate:"gte=0"`
	StallAfterHours     int     `yaml:"stall_after_hours" mapstructure:"stall_after_hours" validate:"gte=1"`
	BounceRateThreshold float64 `yaml:"bounce_rate_threshold" mapstructure:"bounce_rate_threshold" validate:"gte=0,lte=100"`
	MinSent             int     `yaml:"min_sent" mapstructure:"min_sent" validate:"gte=0"`
}

// Secs converts a seconds setting to a duration.
func Secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path, or from ./config.yaml when path
// is empty, then the environment.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "outreach.db")
	v.SetDefault("instantly.base_url", "https://api.instantly.ai/api/v2")
	v.SetDefault("instantly.timeout_secs", 60)
	v.SetDefault("instantly.rate_limit", 5.0)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("oracle.provider", "anthropic")
	v.SetDefault("oracle.cache_ttl_hours", 24)
	v.SetDefault("provision.default_lead_count", 3)
	v.SetDefault("provision.sender_name", "")
	v.SetDefault("provision.timezone", "Etc/GMT+12")
	v.SetDefault("provision.send_from", "09:00")
	v.SetDefault("provision.send_to", "17:00")
	v.SetDefault("provision.target", "list")
	v.SetDefault("provision.skip_if_in_workspace", false)
	v.SetDefault("provision.job_poll_interval_secs", 3)
	v.SetDefault("provision.job_poll_attempts", 40)
	v.SetDefault("enrichment.poll_interval_secs", 10)
	v.SetDefault("enrichment.max_wait_secs", 180)
	v.SetDefault("enrichment.max_consecutive_failures", 3)
	v.SetDefault("followup.interval_secs", 30)
	v.SetDefault("followup.max_checks", 10)
	v.SetDefault("followup.concurrency", 4)
	v.SetDefault("followup.temporal_host", "localhost:7233")
	v.SetDefault("followup.temporal_namespace", "default")
	v.SetDefault("batch.max_concurrent", 3)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_secs", 30)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 30)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.stall_after_hours", 24)
	v.SetDefault("monitoring.bounce_rate_threshold", 5.0)
	v.SetDefault("monitoring.min_sent", 50)

	// Read config file (optional unless given explicitly)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct constraints and the settings mode needs.
// Modes: provision, serve, followup, manage, migrate.
func (c *Config) Validate(mode string) error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return eris.Wrap(err, "config: validate")
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Namespace()), fe.Tag()))
		}
	}

	needStore := func() {
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	}
	needVendor := func() {
		if c.Instantly.Key == "" {
			errs = append(errs, "instantly.key is required")
		}
	}
	needOracle := func() {
		switch c.Oracle.Provider {
		case "anthropic":
			if c.Anthropic.Key == "" {
				errs = append(errs, "anthropic.key is required for the anthropic oracle")
			}
		case "gemini":
			if c.Gemini.Key == "" {
				errs = append(errs, "gemini.key is required for the gemini oracle")
			}
		}
	}

	switch mode {
	case "provision":
		needStore()
		needVendor()
		needOracle()
	case "serve":
		needStore()
		needVendor()
		needOracle()
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be between 1 and 65535")
		}
	case "followup", "manage":
		needStore()
		needVendor()
	case "migrate":
		needStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}

	if cfg.File != "" {
		rotated := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
				Compress:   true,
			}),
			zapCfg.Level,
		)
		logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, rotated)
		}))
	}
	zap.ReplaceGlobals(logger)

	return nil
}
