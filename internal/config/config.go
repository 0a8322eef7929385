package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the tracking service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	SES      SESConfig      `yaml:"ses"`
	Geo      GeoConfig      `yaml:"geo"`
	Tracking TrackingConfig `yaml:"tracking"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis settings for the geo lookup cache.
// Redis is optional; an empty address disables caching.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SESConfig holds AWS SES credentials for outbound email.
type SESConfig struct {
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	Region         string `yaml:"region"`
	FromName       string `yaml:"from_name"`
	FromEmail      string `yaml:"from_email"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// GeoConfig holds IP geolocation lookup settings.
type GeoConfig struct {
	Enabled        bool   `yaml:"enabled"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	CacheTTLHours  int    `yaml:"cache_ttl_hours"`
}

// TrackingConfig holds tracking and secure-link behavior settings.
type TrackingConfig struct {
	// BaseURL is the public origin used when building pixel and click URLs.
	BaseURL string `yaml:"base_url"`
	// FallbackRedirectURL receives clicks whose target is missing or invalid.
	FallbackRedirectURL string `yaml:"fallback_redirect_url"`
	LinkTTLDays         int    `yaml:"link_ttl_days"`
	OtpTTLMinutes       int    `yaml:"otp_ttl_minutes"`
	OtpMaxAttempts      int    `yaml:"otp_max_attempts"`
	OtpLockoutMinutes   int    `yaml:"otp_lockout_minutes"`
	// OtpFallbackEmail receives OTP challenges when a link has no
	// recipient address on file.
	OtpFallbackEmail string `yaml:"otp_fallback_email"`
	// OtpOverrideEmail redirects all OTP mail to one address. Refused
	// outside development so codes always reach the lead on file.
	OtpOverrideEmail string `yaml:"otp_override_email"`
	Environment      string `yaml:"environment"`
}

// LinkTTL returns the secure-link lifetime as a duration.
func (t TrackingConfig) LinkTTL() time.Duration {
	return time.Duration(t.LinkTTLDays) * 24 * time.Hour
}

// OtpTTL returns the OTP validity window as a duration.
func (t TrackingConfig) OtpTTL() time.Duration {
	return time.Duration(t.OtpTTLMinutes) * time.Minute
}

// OtpLockout returns the lockout duration after too many wrong codes.
func (t TrackingConfig) OtpLockout() time.Duration {
	return time.Duration(t.OtpLockoutMinutes) * time.Minute
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads the YAML config and overlays environment variables.
// A .env file is loaded first if present (development convenience).
func LoadFromEnv(path string) (*Config, error) {
	// Not an error if missing
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		loaded, err := Load(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if loaded != nil {
			cfg = loaded
		}
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.SES.Region = v
	}
	if v := os.Getenv("SES_FROM_EMAIL"); v != "" {
		cfg.SES.FromEmail = v
	}
	if v := os.Getenv("TRACKING_BASE_URL"); v != "" {
		cfg.Tracking.BaseURL = v
	}
	if v := os.Getenv("TRACKING_FALLBACK_URL"); v != "" {
		cfg.Tracking.FallbackRedirectURL = v
	}
	if v := os.Getenv("OTP_OVERRIDE_EMAIL"); v != "" {
		cfg.Tracking.OtpOverrideEmail = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Tracking.Environment = v
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.SES.Region == "" {
		c.SES.Region = "us-east-1"
	}
	if c.SES.TimeoutSeconds == 0 {
		c.SES.TimeoutSeconds = 10
	}
	if c.Geo.BaseURL == "" {
		c.Geo.BaseURL = "http://ip-api.com"
	}
	if c.Geo.TimeoutSeconds == 0 {
		c.Geo.TimeoutSeconds = 5
	}
	if c.Geo.CacheTTLHours == 0 {
		c.Geo.CacheTTLHours = 24
	}
	if c.Tracking.BaseURL == "" {
		c.Tracking.BaseURL = "http://localhost:8080"
	}
	if c.Tracking.LinkTTLDays == 0 {
		c.Tracking.LinkTTLDays = 7
	}
	if c.Tracking.OtpTTLMinutes == 0 {
		c.Tracking.OtpTTLMinutes = 10
	}
	if c.Tracking.OtpMaxAttempts == 0 {
		c.Tracking.OtpMaxAttempts = 5
	}
	if c.Tracking.OtpLockoutMinutes == 0 {
		c.Tracking.OtpLockoutMinutes = 15
	}
	if c.Tracking.Environment == "" {
		c.Tracking.Environment = "production"
	}
}

// Validate checks settings that would otherwise fail at request time.
func (c *Config) Validate() error {
	if c.Tracking.FallbackRedirectURL == "" {
		return fmt.Errorf("tracking.fallback_redirect_url is required")
	}
	if c.Tracking.OtpOverrideEmail != "" && c.Tracking.Environment == "production" {
		return fmt.Errorf("otp_override_email must not be set in production")
	}
	return nil
}
