package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rshade/archcost/internal/config"
	"github.com/rshade/archcost/internal/estimate"
	"github.com/rshade/archcost/internal/generate"
	"github.com/rshade/archcost/internal/normalize"
	"github.com/rshade/archcost/internal/pricing"
	"github.com/rshade/archcost/internal/resolver"
	"github.com/rshade/archcost/internal/resource"
	"github.com/rshade/archcost/internal/server"
)

// app is the wired estimation pipeline.
type app struct {
	cfg        config.Config
	logger     zerolog.Logger
	catalog    *pricing.Router
	aggregator *estimate.Aggregator
	normalizer *normalize.Normalizer
	// generator is nil when no generation endpoint is configured.
	generator *generate.Generator
}

// newLogger builds the process logger from cfg, writing to w.
func newLogger(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// newApp wires catalogs, resolver, aggregator, normalizer and the optional
// generator from cfg. Only the AWS Pricing API source touches the network
// during setup, to load credentials.
func newApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	cache := pricing.NewCache(cfg.Pricing.CacheTTL)
	httpClient := &http.Client{Timeout: cfg.Pricing.HTTPTimeout}

	router := pricing.NewRouter(logger)
	router.Register(resource.ProviderAzure, pricing.NewRetailClient(pricing.RetailConfig{
		BaseURL:    cfg.Pricing.RetailBaseURL,
		MaxItems:   cfg.Pricing.MaxItems,
		MaxPages:   cfg.Pricing.MaxPages,
		HTTPClient: httpClient,
	}, cache, logger))

	switch cfg.Pricing.AWSSource {
	case config.AWSSourceAPI:
		c, err := pricing.LoadProductsAPIClient(ctx, cfg.Pricing.MaxItems, cfg.Pricing.MaxPages, cache, logger)
		if err != nil {
			return nil, err
		}
		router.Register(resource.ProviderAWS, c)
	default:
		router.Register(resource.ProviderAWS, pricing.NewOfferClient(pricing.OfferConfig{
			BaseURL:    cfg.Pricing.OfferBaseURL,
			MaxItems:   cfg.Pricing.MaxItems,
			HTTPClient: &http.Client{Timeout: cfg.Pricing.OfferHTTPTimeout},
		}, cache, logger))
	}

	res := resolver.New(router, cfg.Estimate.HoursPerMonth, logger)
	agg := estimate.NewAggregator(res, estimate.Options{
		HoursPerMonth: cfg.Estimate.HoursPerMonth,
		Concurrency:   cfg.Estimate.Concurrency,
		Timeout:       cfg.Estimate.Timeout,
		Defaults:      cfg.Estimate.Defaults.Map(),
	}, logger)

	a := &app{
		cfg:        cfg,
		logger:     logger,
		catalog:    router,
		aggregator: agg,
	}

	client := generate.NewClient(generate.Config{
		Endpoint:   cfg.Generate.Endpoint,
		APIKey:     cfg.Generate.APIKey,
		Deployment: cfg.Generate.Deployment,
		APIVersion: cfg.Generate.APIVersion,
		Timeout:    cfg.Generate.Timeout,
	}, logger)
	var proposer normalize.Proposer
	if client.Configured() {
		a.generator = generate.NewGenerator(client)
		if cfg.Generate.ProposeItems {
			proposer = a.generator
		}
	}

	provider, _ := resource.ParseProvider(cfg.Estimate.Provider)
	a.normalizer = normalize.New(normalize.Options{
		Provider: provider,
		Region:   cfg.Estimate.Region,
	}, proposer, logger)
	return a, nil
}

// serverDeps exposes the pipeline to the HTTP server.
func (a *app) serverDeps() server.Deps {
	deps := server.Deps{
		Normalizer: a.normalizer,
		Estimator:  a.aggregator,
		Catalog:    a.catalog,
	}
	if a.generator != nil {
		deps.Architect = a.generator
	}
	return deps
}

// readSource returns the contents of path, or of stdin when path is "-".
func readSource(path string, stdin io.Reader) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}
