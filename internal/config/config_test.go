package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/archcost/internal/resource"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 86400, cfg.Server.CORS.MaxAge)
	assert.Empty(t, cfg.Server.CORS.AllowedOrigins)
	assert.Equal(t, AWSSourceOffer, cfg.Pricing.AWSSource)
	assert.Equal(t, 1000, cfg.Pricing.MaxItems)
	assert.Equal(t, 10, cfg.Pricing.MaxPages)
	assert.Equal(t, time.Hour, cfg.Pricing.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.Pricing.HTTPTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Pricing.OfferHTTPTimeout)
	assert.Equal(t, "azure", cfg.Estimate.Provider)
	assert.Equal(t, "eastus", cfg.Estimate.Region)
	assert.InDelta(t, 730.0, cfg.Estimate.HoursPerMonth, 1e-9)
	assert.Equal(t, 4, cfg.Estimate.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Estimate.Timeout)
	assert.Equal(t, 90*time.Second, cfg.Generate.Timeout)
	assert.Equal(t, ExporterNone, cfg.Telemetry.Exporter)

	defaults := cfg.Estimate.Defaults.Map()
	assert.InDelta(t, 1.0, defaults[resource.AttrCapacityUnits], 1e-9)
	assert.InDelta(t, 5.0, defaults[resource.AttrRuleCount], 1e-9)
	assert.InDelta(t, 100.0, defaults[resource.AttrDataProcessedGB], 1e-9)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archcost.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  cors:
    allowed_origins: ["http://localhost:3000"]
pricing:
  aws_source: api
  cache_ttl: 10m
estimate:
  region: westeurope
  defaults:
    rule_count: 2
`), 0o600))

	t.Setenv("ARCHCOST_ESTIMATE_REGION", "northeurope")
	t.Setenv("ARCHCOST_SERVER_API_KEY", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "secret", cfg.Server.APIKey)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORS.AllowedOrigins)
	assert.Equal(t, AWSSourceAPI, cfg.Pricing.AWSSource)
	assert.Equal(t, 10*time.Minute, cfg.Pricing.CacheTTL)
	assert.Equal(t, "northeurope", cfg.Estimate.Region)
	assert.InDelta(t, 2.0, cfg.Estimate.Defaults.RuleCount, 1e-9)
	assert.InDelta(t, 1.0, cfg.Estimate.Defaults.CapacityUnits, 1e-9)
}

func TestLoad_EnvOrigins(t *testing.T) {
	t.Setenv("ARCHCOST_SERVER_CORS_ALLOWED_ORIGINS", "http://a.example, https://b.example")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.example", "https://b.example"}, cfg.Server.CORS.AllowedOrigins)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(c *Config)
		expectedError string
	}{
		{
			name:          "wildcard with credentials",
			mutate:        func(c *Config) { c.Server.CORS.AllowedOrigins = []string{"*"}; c.Server.CORS.AllowCredentials = true },
			expectedError: "cannot enable credentials with wildcard origin",
		},
		{
			name:          "hours per month",
			mutate:        func(c *Config) { c.Estimate.HoursPerMonth = 0 },
			expectedError: "estimate.hours_per_month",
		},
		{
			name:          "page ceiling",
			mutate:        func(c *Config) { c.Pricing.MaxPages = -1 },
			expectedError: "pricing.max_pages",
		},
		{
			name:          "cache ttl",
			mutate:        func(c *Config) { c.Pricing.CacheTTL = 0 },
			expectedError: "pricing.cache_ttl",
		},
		{
			name:          "offer http timeout",
			mutate:        func(c *Config) { c.Pricing.OfferHTTPTimeout = 0 },
			expectedError: "pricing.offer_http_timeout",
		},
		{
			name:          "provider",
			mutate:        func(c *Config) { c.Estimate.Provider = "oracle" },
			expectedError: "unknown provider",
		},
		{
			name:          "aws source",
			mutate:        func(c *Config) { c.Pricing.AWSSource = "scrape" },
			expectedError: "pricing.aws_source",
		},
		{
			name:          "exporter",
			mutate:        func(c *Config) { c.Telemetry.Exporter = "jaeger" },
			expectedError: "telemetry.exporter",
		},
		{
			name:          "negative default",
			mutate:        func(c *Config) { c.Estimate.Defaults.SizeGB = -5 },
			expectedError: "sizeGB must not be negative",
		},
		{
			name:          "log level",
			mutate:        func(c *Config) { c.Log.Level = "loud" },
			expectedError: "log.level",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(&cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestValidate_WildcardWithoutCredentials(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Server.CORS.AllowedOrigins = []string{"*"}
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.Server.CORS.AllowsAnyOrigin())
}
