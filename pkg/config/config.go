package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/platinummonkey/apidelta/pkg/model"
	"github.com/platinummonkey/apidelta/pkg/observability"
	"github.com/platinummonkey/apidelta/pkg/storage"
	"github.com/platinummonkey/apidelta/pkg/storage/postgres"
	"github.com/platinummonkey/apidelta/pkg/webhooks"
)

// EnvPrefix prefixes every environment override, e.g. APIDELTA_SERVER_PORT
const EnvPrefix = "APIDELTA"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Storage       storage.Config
	Comparison    ComparisonConfig
	Watcher       WatcherConfig
	Webhooks      WebhooksConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	// RateLimitRequests of zero disables API rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitBurst    int
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// ComparisonConfig holds the defaults applied to every comparison
type ComparisonConfig struct {
	Visibility   model.Visibility
	IncludeMinor bool
	Concurrency  int
}

// WatcherConfig holds the descriptor watcher settings
type WatcherConfig struct {
	Dir       string
	Reference string
	Debounce  time.Duration
	Schedule  string
	LogFormat string
}

// WebhooksConfig holds the notification endpoints. Every URL shares the secret and the
// event filter.
type WebhooksConfig struct {
	URLs        []string
	Secret      string
	Events      []string
	Timeout     time.Duration
	MaxAttempts int
	Workers     int
}

// Enabled reports whether any endpoint is configured
func (w WebhooksConfig) Enabled() bool {
	return len(w.URLs) > 0
}

// Dispatcher converts the settings for webhooks.NewDispatcher
func (w WebhooksConfig) Dispatcher() (webhooks.Config, error) {
	events := make([]webhooks.EventType, 0, len(w.Events))
	for _, e := range w.Events {
		t, err := webhooks.ParseEventType(e)
		if err != nil {
			return webhooks.Config{}, err
		}
		events = append(events, t)
	}
	endpoints := make([]webhooks.Endpoint, 0, len(w.URLs))
	for _, u := range w.URLs {
		endpoints = append(endpoints, webhooks.Endpoint{URL: u, Secret: w.Secret, Events: events})
	}
	retry := webhooks.DefaultRetryConfig()
	if w.MaxAttempts > 0 {
		retry.MaxAttempts = w.MaxAttempts
	}
	return webhooks.Config{
		Endpoints: endpoints,
		Timeout:   w.Timeout,
		Retry:     retry,
		Workers:   w.Workers,
	}, nil
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
	OTelSampleRatio    float64
}

// OTel converts the settings for observability.InitOTel
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_body_bytes", 32<<20)
	v.SetDefault("server.rate_limit_requests", 0)
	v.SetDefault("server.rate_limit_window", time.Minute)
	v.SetDefault("server.rate_limit_burst", 0)

	s := storage.DefaultConfig()
	v.SetDefault("storage.type", s.Type)
	v.SetDefault("storage.filesystem_root", s.FilesystemRoot)
	v.SetDefault("storage.postgres_url", "")
	v.SetDefault("storage.postgres_replica_urls", "")
	v.SetDefault("storage.postgres_max_conns", s.PostgresMaxConns)
	v.SetDefault("storage.postgres_min_conns", s.PostgresMinConns)
	v.SetDefault("storage.postgres_timeout", s.PostgresTimeout)
	v.SetDefault("storage.s3_enabled", false)
	v.SetDefault("storage.s3_endpoint", "")
	v.SetDefault("storage.s3_region", s.S3Region)
	v.SetDefault("storage.s3_bucket", s.S3Bucket)
	v.SetDefault("storage.s3_access_key", "")
	v.SetDefault("storage.s3_secret_key", "")
	v.SetDefault("storage.s3_use_path_style", false)
	v.SetDefault("storage.redis_url", "")
	v.SetDefault("storage.redis_password", "")
	v.SetDefault("storage.redis_db", s.RedisDB)
	v.SetDefault("storage.redis_max_retries", s.RedisMaxRetries)
	v.SetDefault("storage.redis_pool_size", s.RedisPoolSize)
	v.SetDefault("storage.cache_enabled", s.CacheEnabled)
	v.SetDefault("storage.cache_report_ttl", s.TTL("report", 0))
	v.SetDefault("storage.cache_baseline_ttl", s.TTL("baseline", 0))
	v.SetDefault("storage.l1_cache_size", s.L1CacheSize)

	v.SetDefault("comparison.visibility", "api")
	v.SetDefault("comparison.include_minor", false)
	v.SetDefault("comparison.concurrency", 0)

	v.SetDefault("watcher.dir", "")
	v.SetDefault("watcher.reference", "")
	v.SetDefault("watcher.debounce", 500*time.Millisecond)
	v.SetDefault("watcher.schedule", "")
	v.SetDefault("watcher.log_format", "text")

	v.SetDefault("webhooks.urls", "")
	v.SetDefault("webhooks.secret", "")
	v.SetDefault("webhooks.events", "")
	v.SetDefault("webhooks.timeout", 10*time.Second)
	v.SetDefault("webhooks.max_attempts", 5)
	v.SetDefault("webhooks.workers", 2)

	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.otel_enabled", false)
	v.SetDefault("observability.otel_endpoint", "localhost:4317")
	v.SetDefault("observability.otel_service_name", "apidelta")
	v.SetDefault("observability.otel_service_version", "dev")
	v.SetDefault("observability.otel_insecure", true)
	v.SetDefault("observability.otel_sample_ratio", 1.0)
}

// New returns a viper instance with defaults and APIDELTA_ environment overrides
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration from defaults, the config file and the environment, in
// increasing order of precedence. An explicit path must exist. Without one, apidelta.yaml
// is looked up in the working directory, ~/.apidelta and /etc/apidelta.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("apidelta")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.apidelta")
		v.AddConfigPath("/etc/apidelta")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}
	return FromViper(v)
}

// FromViper builds and validates a Config from v
func FromViper(v *viper.Viper) (*Config, error) {
	comparison, err := loadComparisonConfig(v)
	if err != nil {
		return nil, err
	}
	obs, err := loadObservabilityConfig(v)
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Server:        loadServerConfig(v),
		Storage:       loadStorageConfig(v),
		Comparison:    comparison,
		Watcher:       loadWatcherConfig(v),
		Webhooks:      loadWebhooksConfig(v),
		Observability: obs,
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadServerConfig(v *viper.Viper) ServerConfig {
	return ServerConfig{
		Host:            v.GetString("server.host"),
		Port:            v.GetString("server.port"),
		ReadTimeout:     v.GetDuration("server.read_timeout"),
		WriteTimeout:    v.GetDuration("server.write_timeout"),
		IdleTimeout:     v.GetDuration("server.idle_timeout"),
		ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		MaxBodyBytes:    v.GetInt64("server.max_body_bytes"),

		RateLimitRequests: v.GetInt("server.rate_limit_requests"),
		RateLimitWindow:   v.GetDuration("server.rate_limit_window"),
		RateLimitBurst:    v.GetInt("server.rate_limit_burst"),
	}
}

func loadStorageConfig(v *viper.Viper) storage.Config {
	return storage.Config{
		Type:                v.GetString("storage.type"),
		FilesystemRoot:      v.GetString("storage.filesystem_root"),
		PostgresURL:         v.GetString("storage.postgres_url"),
		PostgresReplicaURLs: postgres.ParseReplicaURLs(v.GetString("storage.postgres_replica_urls")),
		PostgresMaxConns:    v.GetInt("storage.postgres_max_conns"),
		PostgresMinConns:    v.GetInt("storage.postgres_min_conns"),
		PostgresTimeout:     v.GetDuration("storage.postgres_timeout"),
		S3Enabled:           v.GetBool("storage.s3_enabled"),
		S3Endpoint:          v.GetString("storage.s3_endpoint"),
		S3Region:            v.GetString("storage.s3_region"),
		S3Bucket:            v.GetString("storage.s3_bucket"),
		S3AccessKey:         v.GetString("storage.s3_access_key"),
		S3SecretKey:         v.GetString("storage.s3_secret_key"),
		S3UsePathStyle:      v.GetBool("storage.s3_use_path_style"),
		RedisURL:            v.GetString("storage.redis_url"),
		RedisPassword:       v.GetString("storage.redis_password"),
		RedisDB:             v.GetInt("storage.redis_db"),
		RedisMaxRetries:     v.GetInt("storage.redis_max_retries"),
		RedisPoolSize:       v.GetInt("storage.redis_pool_size"),
		CacheEnabled:        v.GetBool("storage.cache_enabled"),
		CacheTTL: map[string]time.Duration{
			"report":   v.GetDuration("storage.cache_report_ttl"),
			"baseline": v.GetDuration("storage.cache_baseline_ttl"),
		},
		L1CacheSize: v.GetInt("storage.l1_cache_size"),
	}
}

func loadComparisonConfig(v *viper.Viper) (ComparisonConfig, error) {
	vis, err := model.ParseVisibility(v.GetString("comparison.visibility"))
	if err != nil {
		return ComparisonConfig{}, fmt.Errorf("comparison.visibility: %w", err)
	}
	return ComparisonConfig{
		Visibility:   vis,
		IncludeMinor: v.GetBool("comparison.include_minor"),
		Concurrency:  v.GetInt("comparison.concurrency"),
	}, nil
}

func loadWatcherConfig(v *viper.Viper) WatcherConfig {
	return WatcherConfig{
		Dir:       v.GetString("watcher.dir"),
		Reference: v.GetString("watcher.reference"),
		Debounce:  v.GetDuration("watcher.debounce"),
		Schedule:  v.GetString("watcher.schedule"),
		LogFormat: v.GetString("watcher.log_format"),
	}
}

func loadWebhooksConfig(v *viper.Viper) WebhooksConfig {
	return WebhooksConfig{
		URLs:        splitList(v.GetStringSlice("webhooks.urls")),
		Secret:      v.GetString("webhooks.secret"),
		Events:      splitList(v.GetStringSlice("webhooks.events")),
		Timeout:     v.GetDuration("webhooks.timeout"),
		MaxAttempts: v.GetInt("webhooks.max_attempts"),
		Workers:     v.GetInt("webhooks.workers"),
	}
}

// splitList accepts a YAML list as well as a comma separated string
func splitList(values []string) []string {
	return postgres.ParseReplicaURLs(strings.Join(values, ","))
}

func loadObservabilityConfig(v *viper.Viper) (ObservabilityConfig, error) {
	level, err := observability.ParseLogLevel(v.GetString("observability.log_level"))
	if err != nil {
		return ObservabilityConfig{}, fmt.Errorf("observability.log_level: %w", err)
	}
	return ObservabilityConfig{
		LogLevel:           level,
		MetricsEnabled:     v.GetBool("observability.metrics_enabled"),
		OTelEnabled:        v.GetBool("observability.otel_enabled"),
		OTelEndpoint:       v.GetString("observability.otel_endpoint"),
		OTelServiceName:    v.GetString("observability.otel_service_name"),
		OTelServiceVersion: v.GetString("observability.otel_service_version"),
		OTelInsecure:       v.GetBool("observability.otel_insecure"),
		OTelSampleRatio:    v.GetFloat64("observability.otel_sample_ratio"),
	}, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server max body bytes must be positive")
	}

	if c.Server.RateLimitRequests < 0 || c.Server.RateLimitBurst < 0 {
		return fmt.Errorf("server rate limit must not be negative")
	}
	if c.Server.RateLimitRequests > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("server rate limit window must be positive")
	}

	switch c.Storage.Type {
	case "filesystem":
		if c.Storage.FilesystemRoot == "" {
			return fmt.Errorf("filesystem root is required for filesystem storage")
		}
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
		if c.Storage.S3Enabled && c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required when the S3 archive is enabled")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be filesystem or postgres)", c.Storage.Type)
	}
	if c.Storage.L1CacheSize < 0 {
		return fmt.Errorf("l1 cache size must not be negative")
	}

	if c.Comparison.Concurrency < 0 {
		return fmt.Errorf("comparison concurrency must not be negative")
	}

	if c.Watcher.Debounce < 0 {
		return fmt.Errorf("watcher debounce must not be negative")
	}
	if c.Watcher.Schedule != "" {
		if _, err := cron.ParseStandard(c.Watcher.Schedule); err != nil {
			return fmt.Errorf("invalid watcher schedule %q: %w", c.Watcher.Schedule, err)
		}
	}
	switch c.Watcher.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid watcher log format: %s (must be text or json)", c.Watcher.LogFormat)
	}

	if c.Webhooks.Enabled() {
		wh, err := c.Webhooks.Dispatcher()
		if err != nil {
			return fmt.Errorf("invalid webhooks config: %w", err)
		}
		for _, ep := range wh.Endpoints {
			if err := ep.Validate(); err != nil {
				return fmt.Errorf("invalid webhooks config: %w", err)
			}
		}
		if c.Webhooks.Timeout <= 0 {
			return fmt.Errorf("webhooks timeout must be positive")
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}
	return nil
}
