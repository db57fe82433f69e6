package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/sphinxql/pkg/cache"
	"github.com/platinummonkey/sphinxql/pkg/client"
	"github.com/platinummonkey/sphinxql/pkg/middleware"
	"github.com/platinummonkey/sphinxql/pkg/observability"
)

// FileEnvVar names the optional YAML config file
const FileEnvVar = "SPHINXQL_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Sphinx        SphinxConfig        `yaml:"sphinx"`
	Cache         CacheConfig         `yaml:"cache"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// SphinxConfig holds searchd connection settings
type SphinxConfig struct {
	PrimaryAddr         string        `yaml:"primary_addr"`
	ReplicaAddrs        []string      `yaml:"replica_addrs"`
	User                string        `yaml:"user"`
	Password            string        `yaml:"password"`
	MaxConns            int           `yaml:"max_conns"`
	MinConns            int           `yaml:"min_conns"`
	ConnMaxLifetime     time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime     time.Duration `yaml:"conn_max_idle_time"`
	Timeout             time.Duration `yaml:"timeout"`
	HealthCheckSchedule string        `yaml:"health_check_schedule"`
	FetchMeta           bool          `yaml:"fetch_meta"`
}

// CacheConfig holds result cache settings
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	L1Size        int           `yaml:"l1_size"`
	TTL           time.Duration `yaml:"ttl"`
	RedisURL      string        `yaml:"redis_url"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
}

// RateLimitConfig holds per-client request limits for the search API. The
// limiter is shared through redis when cache.redis_url is set.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
	Burst    int           `yaml:"burst"`

	// Proxies whose forwarding headers name the client, as CIDRs or addresses
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"` // Use insecure gRPC connection
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Sphinx: SphinxConfig{
			PrimaryAddr:         "127.0.0.1:9306",
			MaxConns:            20,
			MinConns:            2,
			ConnMaxLifetime:     time.Hour,
			ConnMaxIdleTime:     10 * time.Minute,
			Timeout:             5 * time.Second,
			HealthCheckSchedule: "@every 30s",
		},
		Cache: CacheConfig{
			L1Size: 1024,
			TTL:    5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Requests: 600,
			Window:   time.Minute,
			Burst:    60,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "sphinxql",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// LoadConfig loads configuration from the file named by SPHINXQL_CONFIG_FILE
// (if any) and then from environment variables
func LoadConfig() (*Config, error) {
	return Load(os.Getenv(FileEnvVar))
}

// Load applies defaults, then the YAML file at path when path is not empty,
// then environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides every field whose SPHINXQL_* variable is set
func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("SPHINXQL_HOST", s.Host)
	s.Port = getEnv("SPHINXQL_PORT", s.Port)
	s.HealthPort = getEnv("SPHINXQL_HEALTH_PORT", s.HealthPort)
	s.ReadTimeout = getEnvDuration("SPHINXQL_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("SPHINXQL_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("SPHINXQL_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("SPHINXQL_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)

	sp := &c.Sphinx
	sp.PrimaryAddr = getEnv("SPHINXQL_PRIMARY_ADDR", sp.PrimaryAddr)
	if replicas := getEnv("SPHINXQL_REPLICA_ADDRS", ""); replicas != "" {
		sp.ReplicaAddrs = client.ParseReplicaAddrs(replicas)
	}
	sp.User = getEnv("SPHINXQL_USER", sp.User)
	sp.Password = getEnv("SPHINXQL_PASSWORD", sp.Password)
	sp.MaxConns = getEnvInt("SPHINXQL_MAX_CONNS", sp.MaxConns)
	sp.MinConns = getEnvInt("SPHINXQL_MIN_CONNS", sp.MinConns)
	sp.ConnMaxLifetime = getEnvDuration("SPHINXQL_CONN_MAX_LIFETIME", sp.ConnMaxLifetime)
	sp.ConnMaxIdleTime = getEnvDuration("SPHINXQL_CONN_MAX_IDLE_TIME", sp.ConnMaxIdleTime)
	sp.Timeout = getEnvDuration("SPHINXQL_TIMEOUT", sp.Timeout)
	sp.HealthCheckSchedule = getEnv("SPHINXQL_HEALTH_CHECK_SCHEDULE", sp.HealthCheckSchedule)
	sp.FetchMeta = getEnvBool("SPHINXQL_FETCH_META", sp.FetchMeta)

	ca := &c.Cache
	ca.Enabled = getEnvBool("SPHINXQL_CACHE_ENABLED", ca.Enabled)
	ca.L1Size = getEnvInt("SPHINXQL_L1_CACHE_SIZE", ca.L1Size)
	ca.TTL = getEnvDuration("SPHINXQL_CACHE_TTL", ca.TTL)
	ca.RedisURL = getEnv("SPHINXQL_REDIS_URL", ca.RedisURL)
	ca.RedisPassword = getEnv("SPHINXQL_REDIS_PASSWORD", ca.RedisPassword)
	ca.RedisDB = getEnvInt("SPHINXQL_REDIS_DB", ca.RedisDB)

	rl := &c.RateLimit
	rl.Enabled = getEnvBool("SPHINXQL_RATE_LIMIT_ENABLED", rl.Enabled)
	rl.Requests = getEnvInt("SPHINXQL_RATE_LIMIT_REQUESTS", rl.Requests)
	rl.Window = getEnvDuration("SPHINXQL_RATE_LIMIT_WINDOW", rl.Window)
	rl.Burst = getEnvInt("SPHINXQL_RATE_LIMIT_BURST", rl.Burst)
	if proxies := getEnv("SPHINXQL_TRUSTED_PROXIES", ""); proxies != "" {
		rl.TrustedProxies = client.ParseReplicaAddrs(proxies)
	}

	o := &c.Observability
	o.LogLevel = getEnv("SPHINXQL_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("SPHINXQL_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("SPHINXQL_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("SPHINXQL_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("SPHINXQL_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("SPHINXQL_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("SPHINXQL_OTEL_INSECURE", o.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server port is required")
	}
	if c.Server.HealthPort == "" {
		return errors.New("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return errors.New("server port and health port must be different")
	}

	if c.Sphinx.PrimaryAddr == "" {
		return errors.New("sphinx primary address is required")
	}
	if c.Sphinx.MaxConns <= 0 {
		return fmt.Errorf("sphinx max conns must be positive, got %d", c.Sphinx.MaxConns)
	}
	if c.Sphinx.MinConns < 0 || c.Sphinx.MinConns > c.Sphinx.MaxConns {
		return fmt.Errorf("sphinx min conns must be between 0 and %d, got %d", c.Sphinx.MaxConns, c.Sphinx.MinConns)
	}

	if c.Cache.Enabled {
		if c.Cache.L1Size <= 0 {
			return errors.New("cache L1 size must be positive when the cache is enabled")
		}
		if c.Cache.TTL <= 0 {
			return errors.New("cache TTL must be positive when the cache is enabled")
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 {
			return errors.New("rate limit requests must be positive when rate limiting is enabled")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("rate limit window must be positive when rate limiting is enabled")
		}
		if c.RateLimit.Burst < 0 {
			return errors.New("rate limit burst must not be negative")
		}
		if _, err := c.RateLimit.ClientIPResolver(); err != nil {
			return err
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return errors.New("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return errors.New("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// Addr returns the API listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// HealthAddr returns the health/metrics listen address
func (s ServerConfig) HealthAddr() string {
	return s.Host + ":" + s.HealthPort
}

// ConnectionConfig converts to the client's connection settings
func (s SphinxConfig) ConnectionConfig() client.ConnectionConfig {
	return client.ConnectionConfig{
		PrimaryAddr:  s.PrimaryAddr,
		ReplicaAddrs: s.ReplicaAddrs,
		User:         s.User,
		Password:     s.Password,
		MaxConns:     s.MaxConns,
		MinConns:     s.MinConns,
		Timeout:      s.Timeout,
		MaxLifetime:  s.ConnMaxLifetime,
		MaxIdleTime:  s.ConnMaxIdleTime,
	}
}

// ResultCacheConfig converts to the cache package settings
func (c CacheConfig) ResultCacheConfig() cache.Config {
	return cache.Config{
		Size:      c.L1Size,
		TTL:       c.TTL,
		KeyPrefix: cache.DefaultKeyPrefix,
	}
}

// RedisOptions parses RedisURL; explicit password and DB settings win over
// the URL. It returns nil options when no redis URL is configured.
func (c CacheConfig) RedisOptions() (*redis.Options, error) {
	if c.RedisURL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if c.RedisPassword != "" {
		opts.Password = c.RedisPassword
	}
	if c.RedisDB > 0 {
		opts.DB = c.RedisDB
	}
	return opts, nil
}

// LimiterConfig converts to the middleware settings
func (r RateLimitConfig) LimiterConfig() *middleware.RateLimitConfig {
	return &middleware.RateLimitConfig{
		RequestsPerWindow: r.Requests,
		WindowDuration:    r.Window,
		BurstSize:         r.Burst,
	}
}

// ClientIPResolver builds the resolver for TrustedProxies
func (r RateLimitConfig) ClientIPResolver() (*middleware.ClientIPResolver, error) {
	return middleware.NewClientIPResolver(r.TrustedProxies)
}

// Level returns the configured log level
func (o ObservabilityConfig) Level() logrus.Level {
	return observability.ParseLevel(o.LogLevel)
}

// OTelConfig converts to observability.OTelConfig
func (o ObservabilityConfig) OTelConfig() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
