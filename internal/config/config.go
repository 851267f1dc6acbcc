package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied when an option is left unset.
const (
	DefaultPort           = "8080"
	DefaultHealthURI      = "/ping"
	DefaultIntegrationURI = "/"
	DefaultMetricsURI     = "/metrics"
	DefaultMaxBodyBytes   = 1 << 20
	DefaultFetchTimeout   = 30 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	WebhookURI     string // REST webhook route; empty disables the mode
	IntegrationURI string // outgoing integration route; empty disables the mode
	HealthURI      string
	MetricsURI     string // "-" disables the scrape endpoint

	// Platform API
	Token        string
	APIURL       string
	FetchTimeout time.Duration

	// Webhook deliveries
	Secret       string // verifies X-Spark-Signature when set
	MaxBodyBytes int64

	// Rate limiting
	RateLimitRPS       float64
	RateLimitBurst     int
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting
	RedisURL           string

	CORSOrigins []string
}

// fileConfig mirrors Config for YAML decoding; pointers detect presence.
type fileConfig struct {
	Port               *string        `yaml:"port"`
	Env                *string        `yaml:"env"`
	LogLevel           *string        `yaml:"log_level"`
	WebhookURI         *string        `yaml:"webhook_uri"`
	IntegrationURI     *string        `yaml:"integration_uri"`
	HealthURI          *string        `yaml:"health_uri"`
	MetricsURI         *string        `yaml:"metrics_uri"`
	Token              *string        `yaml:"token"`
	APIURL             *string        `yaml:"api_url"`
	FetchTimeout       *time.Duration `yaml:"fetch_timeout"`
	Secret             *string        `yaml:"secret"`
	MaxBodyBytes       *int64         `yaml:"max_body_bytes"`
	RateLimitRPS       *float64       `yaml:"rate_limit_rps"`
	RateLimitBurst     *int           `yaml:"rate_limit_burst"`
	RateLimitWhitelist []string       `yaml:"rate_limit_whitelist"`
	RedisURL           *string        `yaml:"redis_url"`
	CORSOrigins        []string       `yaml:"cors_allowed_origins"`
}

// Load reads configuration from environment variables, then overlays the
// YAML file named by CONFIG_FILE if present. In development, it loads from
// .env file if present.
func Load() (*Config, error) {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               os.Getenv("SPARKBOT_PORT"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		WebhookURI:         os.Getenv("WEBHOOK_URI"),
		IntegrationURI:     os.Getenv("INTEGRATION_URI"),
		HealthURI:          os.Getenv("HEALTH_URI"),
		MetricsURI:         getEnv("METRICS_URI", DefaultMetricsURI),
		Token:              os.Getenv("SPARK_TOKEN"),
		APIURL:             os.Getenv("SPARK_API_URL"),
		Secret:             os.Getenv("WEBHOOK_SECRET"),
		RedisURL:           os.Getenv("REDIS_URL"),
		RateLimitWhitelist: splitList(os.Getenv("RATE_LIMIT_WHITELIST")),
		CORSOrigins:        splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	var err error
	if cfg.FetchTimeout, err = getDuration("FETCH_TIMEOUT", DefaultFetchTimeout); err != nil {
		return nil, err
	}
	if cfg.MaxBodyBytes, err = getInt64("MAX_BODY_BYTES", DefaultMaxBodyBytes); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = getFloat("RATE_LIMIT_RPS", 0); err != nil {
		return nil, err
	}
	burst, err := getInt64("RATE_LIMIT_BURST", 10)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitBurst = int(burst)

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the values explicitly present in the YAML file at path.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.Port, fc.Port)
	setString(&c.Env, fc.Env)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.WebhookURI, fc.WebhookURI)
	setString(&c.IntegrationURI, fc.IntegrationURI)
	setString(&c.HealthURI, fc.HealthURI)
	setString(&c.MetricsURI, fc.MetricsURI)
	setString(&c.Token, fc.Token)
	setString(&c.APIURL, fc.APIURL)
	setString(&c.Secret, fc.Secret)
	setString(&c.RedisURL, fc.RedisURL)
	if fc.FetchTimeout != nil {
		c.FetchTimeout = *fc.FetchTimeout
	}
	if fc.MaxBodyBytes != nil {
		c.MaxBodyBytes = *fc.MaxBodyBytes
	}
	if fc.RateLimitRPS != nil {
		c.RateLimitRPS = *fc.RateLimitRPS
	}
	if fc.RateLimitBurst != nil {
		c.RateLimitBurst = *fc.RateLimitBurst
	}
	if fc.RateLimitWhitelist != nil {
		c.RateLimitWhitelist = fc.RateLimitWhitelist
	}
	if fc.CORSOrigins != nil {
		c.CORSOrigins = fc.CORSOrigins
	}
	return nil
}

// ApplyDefaults fills unset options. The port falls back to the PORT
// environment variable, then DefaultPort. When neither inbound mode is
// configured, the outgoing integration mode is served at DefaultIntegrationURI.
func (c *Config) ApplyDefaults() {
	if c.Port == "" {
		c.Port = getEnv("PORT", DefaultPort)
	}
	if c.HealthURI == "" {
		c.HealthURI = DefaultHealthURI
	}
	if c.WebhookURI == "" && c.IntegrationURI == "" {
		c.IntegrationURI = DefaultIntegrationURI
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
}

// Validate reports configuration that cannot be served.
func (c *Config) Validate() error {
	if c.WebhookURI != "" && c.Token == "" {
		return errors.New("SPARK_TOKEN is required when WEBHOOK_URI is set")
	}

	routes := map[string]string{}
	check := func(name, uri string) error {
		if uri == "" {
			return nil
		}
		if !strings.HasPrefix(uri, "/") {
			return fmt.Errorf("%s must start with '/': %q", name, uri)
		}
		if other, ok := routes[uri]; ok {
			return fmt.Errorf("%s and %s share path %q", other, name, uri)
		}
		routes[uri] = name
		return nil
	}

	if err := check("health URI", c.HealthURI); err != nil {
		return err
	}
	if err := check("webhook URI", c.WebhookURI); err != nil {
		return err
	}
	if err := check("integration URI", c.IntegrationURI); err != nil {
		return err
	}
	if c.MetricsEnabled() {
		if err := check("metrics URI", c.MetricsURI); err != nil {
			return err
		}
	}

	if c.RateLimitRPS < 0 {
		return errors.New("RATE_LIMIT_RPS must not be negative")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// MetricsEnabled reports whether the Prometheus endpoint is served.
func (c *Config) MetricsEnabled() bool {
	return c.MetricsURI != "" && c.MetricsURI != "-"
}

// RateLimitEnabled reports whether webhook routes are rate limited.
func (c *Config) RateLimitEnabled() bool {
	return c.RateLimitRPS > 0
}

// RateLimitWindow is the sliding window over which RateLimitBurst requests
// average out to RateLimitRPS.
func (c *Config) RateLimitWindow() time.Duration {
	if c.RateLimitRPS <= 0 {
		return 0
	}
	return time.Duration(float64(c.RateLimitBurst) / c.RateLimitRPS * float64(time.Second))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

// splitList parses a comma-separated list, dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
