// Package config loads layered service configuration: built-in defaults, an
// optional YAML file and ARCHCOST_* environment variables, in increasing
// precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/rshade/archcost/internal/resource"
)

// EnvPrefix prefixes every environment override, e.g. ARCHCOST_SERVER_ADDR.
const EnvPrefix = "ARCHCOST"

// AWS catalog sources.
const (
	AWSSourceOffer = "offer"
	AWSSourceAPI   = "api"
)

// Trace exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Estimate  EstimateConfig  `mapstructure:"estimate"`
	Generate  GenerateConfig  `mapstructure:"generate"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	APIKey          string        `mapstructure:"api_key"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

// CORSConfig configures cross-origin access.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// AllowsAnyOrigin reports whether the wildcard origin is configured.
func (c CORSConfig) AllowsAnyOrigin() bool {
	for _, o := range c.AllowedOrigins {
		if strings.TrimSpace(o) == "*" {
			return true
		}
	}
	return false
}

// PricingConfig configures the catalog clients and the shared price cache.
type PricingConfig struct {
	RetailBaseURL string        `mapstructure:"retail_base_url"`
	OfferBaseURL  string        `mapstructure:"offer_base_url"`
	AWSSource     string        `mapstructure:"aws_source"`
	MaxItems      int           `mapstructure:"max_items"`
	MaxPages      int           `mapstructure:"max_pages"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout"`
	// OfferHTTPTimeout bounds one bulk offer document download, which is far
	// larger than a catalog page.
	OfferHTTPTimeout time.Duration `mapstructure:"offer_http_timeout"`
}

// EstimateConfig configures normalization defaults and the aggregator.
type EstimateConfig struct {
	Provider      string        `mapstructure:"provider"`
	Region        string        `mapstructure:"region"`
	HoursPerMonth float64       `mapstructure:"hours_per_month"`
	Concurrency   int           `mapstructure:"concurrency"`
	Timeout       time.Duration `mapstructure:"timeout"`
	// Defaults stand in for item attributes that multi-component prices need.
	Defaults AttributeDefaults `mapstructure:"defaults"`
}

// AttributeDefaults are the assumed values of missing item attributes.
type AttributeDefaults struct {
	CapacityUnits   float64 `mapstructure:"capacity_units"`
	RuleCount       float64 `mapstructure:"rule_count"`
	DataProcessedGB float64 `mapstructure:"data_processed_gb"`
	SizeGB          float64 `mapstructure:"size_gb"`
}

// Map returns the defaults keyed by item attribute.
func (d AttributeDefaults) Map() map[resource.Attribute]float64 {
	return map[resource.Attribute]float64{
		resource.AttrCapacityUnits:   d.CapacityUnits,
		resource.AttrRuleCount:       d.RuleCount,
		resource.AttrDataProcessedGB: d.DataProcessedGB,
		resource.AttrSizeGB:          d.SizeGB,
	}
}

// GenerateConfig configures the chat-completion endpoint.
type GenerateConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	APIKey     string        `mapstructure:"api_key"`
	Deployment string        `mapstructure:"deployment"`
	APIVersion string        `mapstructure:"api_version"`
	Timeout    time.Duration `mapstructure:"timeout"`
	// ProposeItems lets the model suggest items during normalization.
	ProposeItems bool `mapstructure:"propose_items"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	Exporter    string `mapstructure:"exporter"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("server.cors.allow_credentials", false)
	v.SetDefault("server.cors.max_age", 86400)

	v.SetDefault("pricing.retail_base_url", "https://prices.azure.com/api/retail/prices")
	v.SetDefault("pricing.offer_base_url", "https://pricing.us-east-1.amazonaws.com")
	v.SetDefault("pricing.aws_source", AWSSourceOffer)
	v.SetDefault("pricing.max_items", 1000)
	v.SetDefault("pricing.max_pages", 10)
	v.SetDefault("pricing.cache_ttl", time.Hour)
	v.SetDefault("pricing.http_timeout", 30*time.Second)
	v.SetDefault("pricing.offer_http_timeout", 5*time.Minute)

	v.SetDefault("estimate.provider", string(resource.ProviderAzure))
	v.SetDefault("estimate.region", "eastus")
	v.SetDefault("estimate.hours_per_month", 730.0)
	v.SetDefault("estimate.concurrency", 4)
	v.SetDefault("estimate.timeout", 30*time.Second)
	v.SetDefault("estimate.defaults.capacity_units", 1.0)
	v.SetDefault("estimate.defaults.rule_count", 5.0)
	v.SetDefault("estimate.defaults.data_processed_gb", 100.0)
	v.SetDefault("estimate.defaults.size_gb", 100.0)

	v.SetDefault("generate.endpoint", "")
	v.SetDefault("generate.api_key", "")
	v.SetDefault("generate.deployment", "")
	v.SetDefault("generate.api_version", "2024-12-01-preview")
	v.SetDefault("generate.timeout", 90*time.Second)
	v.SetDefault("generate.propose_items", false)

	v.SetDefault("telemetry.exporter", ExporterNone)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.service_name", "archcost")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load reads the configuration. path may be empty, in which case only defaults
// and the environment apply.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Server.CORS.AllowedOrigins = splitOrigins(cfg.Server.CORS.AllowedOrigins)
	return cfg, nil
}

// splitOrigins flattens comma-separated entries, as environment values arrive
// as a single string.
func splitOrigins(in []string) []string {
	var out []string
	for _, entry := range in {
		for _, o := range strings.Split(entry, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if _, ok := resource.ParseProvider(c.Estimate.Provider); !ok {
		errs = append(errs, fmt.Errorf("estimate.provider: unknown provider %q", c.Estimate.Provider))
	}
	if c.Estimate.HoursPerMonth <= 0 {
		errs = append(errs, errors.New("estimate.hours_per_month must be positive"))
	}
	if c.Estimate.Concurrency <= 0 {
		errs = append(errs, errors.New("estimate.concurrency must be positive"))
	}
	if c.Estimate.Timeout <= 0 {
		errs = append(errs, errors.New("estimate.timeout must be positive"))
	}
	for attr, v := range c.Estimate.Defaults.Map() {
		if v < 0 {
			errs = append(errs, fmt.Errorf("estimate.defaults: %s must not be negative", attr))
		}
	}
	if c.Pricing.MaxItems <= 0 {
		errs = append(errs, errors.New("pricing.max_items must be positive"))
	}
	if c.Pricing.MaxPages <= 0 {
		errs = append(errs, errors.New("pricing.max_pages must be positive"))
	}
	if c.Pricing.CacheTTL <= 0 {
		errs = append(errs, errors.New("pricing.cache_ttl must be positive"))
	}
	if c.Pricing.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("pricing.http_timeout must be positive"))
	}
	if c.Pricing.OfferHTTPTimeout <= 0 {
		errs = append(errs, errors.New("pricing.offer_http_timeout must be positive"))
	}
	switch c.Pricing.AWSSource {
	case AWSSourceOffer, AWSSourceAPI:
	default:
		errs = append(errs, fmt.Errorf("pricing.aws_source: want %q or %q, got %q", AWSSourceOffer, AWSSourceAPI, c.Pricing.AWSSource))
	}
	switch c.Telemetry.Exporter {
	case ExporterNone, ExporterStdout, ExporterOTLP:
	default:
		errs = append(errs, fmt.Errorf("telemetry.exporter: unknown exporter %q", c.Telemetry.Exporter))
	}
	if c.Server.CORS.MaxAge < 0 {
		errs = append(errs, errors.New("server.cors.max_age must not be negative"))
	}
	if c.Server.CORS.AllowsAnyOrigin() && c.Server.CORS.AllowCredentials {
		errs = append(errs, errors.New("server.cors: cannot enable credentials with wildcard origin (*); security risk"))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}
