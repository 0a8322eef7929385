package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
tracking:
  fallback_redirect_url: https://example.com/home
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 7, cfg.Tracking.LinkTTLDays)
	assert.Equal(t, 10, cfg.Tracking.OtpTTLMinutes)
	assert.Equal(t, 5, cfg.Tracking.OtpMaxAttempts)
	assert.Equal(t, "http://ip-api.com", cfg.Geo.BaseURL)
	assert.Equal(t, 5, cfg.Geo.TimeoutSeconds)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9001
tracking:
  fallback_redirect_url: https://example.com/home
  link_ttl_days: 14
  otp_ttl_minutes: 5
geo:
  enabled: true
  timeout_seconds: 2
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, 14, cfg.Tracking.LinkTTLDays)
	assert.Equal(t, 5, cfg.Tracking.OtpTTLMinutes)
	assert.True(t, cfg.Geo.Enabled)
	assert.Equal(t, 2, cfg.Geo.TimeoutSeconds)
}

func TestValidateRejectsMissingFallback(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fallback_redirect_url")
}

func TestValidateRejectsOverrideInProduction(t *testing.T) {
	cfg := &Config{}
	cfg.Tracking.FallbackRedirectURL = "https://example.com"
	cfg.Tracking.OtpOverrideEmail = "qa@example.com"
	cfg.applyDefaults()

	err := cfg.Validate()
	require.Error(t, err)

	cfg.Tracking.Environment = "development"
	assert.NoError(t, cfg.Validate())
}

func TestTrackingDurations(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, 7*24.0, cfg.Tracking.LinkTTL().Hours())
	assert.Equal(t, 10.0, cfg.Tracking.OtpTTL().Minutes())
	assert.Equal(t, 15.0, cfg.Tracking.OtpLockout().Minutes())
}
