package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/enrichment"
	"github.com/sells-group/outreach-cli/internal/metrics"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/oracle"
	"github.com/sells-group/outreach-cli/internal/provision"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/internal/store"
	anthropicpkg "github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/instantly"
)

// appEnv holds the initialized store, clients and services used by the
// commands.
type appEnv struct {
	Store       store.Store
	Vendor      instantly.Client
	Oracle      oracle.Oracle // nil when oracle.provider is none
	Provisioner *provision.Provisioner
	Manager     *provision.Manager
	redis       *redis.Client
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates the config for mode and builds everything the command
// needs. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	env := &appEnv{Store: st, Vendor: initVendor(cfg)}
	env.Manager = provision.NewManager(env.Vendor, st)

	if mode == "provision" || mode == "serve" {
		o, rdb, err := initOracle(ctx, cfg)
		if err != nil {
			env.Close()
			return nil, err
		}
		env.redis = rdb

		var filters oracle.FilterOracle
		var copyGen oracle.CopyOracle
		if o != nil {
			env.Oracle = o
			filters, copyGen = o, o
		}
		env.Provisioner = provision.New(env.Vendor, filters, copyGen, provisionConfig(cfg), provision.WithStore(st))
	}

	return env, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = cfg.Store.SQLitePath
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initVendor builds the lead vendor client with retries, a circuit breaker,
// rate limiting and call metrics.
func initVendor(c *config.Config) instantly.Client {
	retry := resilience.FromSettings(
		c.Retry.MaxAttempts,
		time.Duration(c.Retry.InitialBackoffMs)*time.Millisecond,
		config.Secs(c.Retry.MaxBackoffSecs),
	)

	breakers := resilience.NewServiceBreakers(resilience.CircuitBreakerConfig{
		FailureThreshold: c.Circuit.FailureThreshold,
		ResetTimeout:     config.Secs(c.Circuit.ResetTimeoutSecs),
	})
	cb := breakers.Get("instantly")

	opts := []instantly.Option{
		instantly.WithTimeout(config.Secs(c.Instantly.TimeoutSecs)),
		instantly.WithRetry(retry),
		instantly.WithCircuitBreaker(cb),
		instantly.WithObserver(metrics.ObserveVendorCall),
	}
	if c.Instantly.BaseURL != "" {
		opts = append(opts, instantly.WithBaseURL(c.Instantly.BaseURL))
	}
	if c.Instantly.RateLimit > 0 {
		opts = append(opts, instantly.WithRateLimit(c.Instantly.RateLimit))
	}
	return instantly.NewClient(c.Instantly.Key, opts...)
}

// initOracle picks the configured model provider and wraps it in the Redis
// answer cache when one is configured. It returns nil for provider none.
func initOracle(ctx context.Context, c *config.Config) (oracle.Oracle, *redis.Client, error) {
	var o oracle.Oracle
	switch c.Oracle.Provider {
	case "anthropic":
		o = oracle.NewAnthropic(anthropicpkg.NewClient(c.Anthropic.Key), c.Anthropic.Model)
	case "gemini":
		g, err := oracle.NewGemini(ctx, oracle.GeminiConfig{
			APIKey:  c.Gemini.Key,
			Model:   c.Gemini.Model,
			BaseURL: c.Gemini.BaseURL,
		})
		if err != nil {
			return nil, nil, err
		}
		o = g
	case "none":
		zap.L().Info("oracle disabled, provisioning uses fallback copy and filters")
		return nil, nil, nil
	default:
		return nil, nil, eris.Errorf("unsupported oracle provider: %s", c.Oracle.Provider)
	}

	if c.Redis.URL == "" {
		return o, nil, nil
	}
	opts, err := redis.ParseURL(c.Redis.URL)
	if err != nil {
		return nil, nil, eris.Wrap(err, "parse redis url")
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		zap.L().Warn("redis unavailable, oracle cache disabled", zap.Error(err))
		_ = rdb.Close()
		return o, nil, nil
	}
	ttl := time.Duration(c.Oracle.CacheTTLHours) * time.Hour
	zap.L().Info("oracle cache enabled", zap.Duration("ttl", ttl))
	return oracle.NewCached(o, oracle.NewRedisCache(rdb, ""), ttl), rdb, nil
}

// provisionConfig maps configuration onto the provisioner's settings.
func provisionConfig(c *config.Config) provision.Config {
	return provision.Config{
		DefaultLeadCount:  c.Provision.DefaultLeadCount,
		SenderName:        c.Provision.SenderName,
		Timezone:          c.Provision.Timezone,
		SendFrom:          c.Provision.SendFrom,
		SendTo:            c.Provision.SendTo,
		Accounts:          c.Provision.Accounts,
		Target:            model.ResourceType(c.Provision.Target),
		SkipIfInWorkspace: c.Provision.SkipIfInWorkspace,
		Poll: enrichment.Config{
			Interval:               config.Secs(c.Enrichment.PollIntervalSecs),
			MaxWait:                config.Secs(c.Enrichment.MaxWaitSecs),
			MaxConsecutiveFailures: c.Enrichment.MaxConsecutiveFailures,
		},
		JobPollInterval: config.Secs(c.Provision.JobPollIntervalSecs),
		JobPollAttempts: c.Provision.JobPollAttempts,
	}
}

// bindOptions maps configuration onto the follow-up bind settings.
func bindOptions(c *config.Config) provision.BindOptions {
	return provision.BindOptions{
		SkipIfInWorkspace: c.Provision.SkipIfInWorkspace,
		JobPollInterval:   config.Secs(c.Provision.JobPollIntervalSecs),
		JobPollAttempts:   c.Provision.JobPollAttempts,
	}
}
