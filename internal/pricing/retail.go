package pricing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rshade/archcost/internal/resource"
)

// DefaultRetailBaseURL is the public retail price REST endpoint.
const DefaultRetailBaseURL = "https://prices.azure.com/api/retail/prices"

// Fetch ceilings applied when a config leaves them unset.
const (
	DefaultMaxItems = 1000
	DefaultMaxPages = 10
)

// RetailConfig configures a RetailClient.
type RetailConfig struct {
	BaseURL    string
	MaxItems   int
	MaxPages   int
	HTTPClient *http.Client
}

// RetailClient queries a filter-expression retail price catalog that pages its
// results through continuation links.
type RetailClient struct {
	baseURL  string
	maxItems int
	maxPages int
	http     *http.Client
	cache    *Cache
	logger   zerolog.Logger
}

// NewRetailClient creates a RetailClient. The cache is required and may be shared
// with other clients.
func NewRetailClient(cfg RetailConfig, cache *Cache, logger zerolog.Logger) *RetailClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultRetailBaseURL
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &RetailClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		maxItems: cfg.MaxItems,
		maxPages: cfg.MaxPages,
		http:     cfg.HTTPClient,
		cache:    cache,
		logger:   logger.With().Str("component", "retail_catalog").Logger(),
	}
}

// Query implements Catalog.
func (c *RetailClient) Query(ctx context.Context, q Query) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "pricing.RetailClient.Query", trace.WithAttributes(
		attribute.String("catalog.service", q.Service),
		attribute.String("catalog.region", q.Region),
	))
	defer span.End()

	records, hit, err := c.cache.load(q.cacheKey(), func() ([]Record, bool, error) {
		return c.fetch(ctx, q)
	})
	span.SetAttributes(attribute.Bool("catalog.cache_hit", hit), attribute.Int("catalog.records", len(records)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return records, nil
}

// FilterExpression builds the OData filter expression for q.
func FilterExpression(q Query) string {
	clauses := []string{fmt.Sprintf("serviceName eq '%s'", odataQuote(q.Service))}
	if q.Region != "" {
		if q.ByLocation {
			clauses = append(clauses, fmt.Sprintf("location eq '%s'", odataQuote(q.Region)))
		} else {
			clauses = append(clauses, fmt.Sprintf("armRegionName eq '%s'", odataQuote(q.Region)))
		}
	}

	keys := make([]string, 0, len(q.Filters))
	priceType := "Consumption"
	for k, v := range q.Filters {
		if strings.EqualFold(k, "priceType") {
			priceType = v
			continue
		}
		keys = append(keys, k)
	}
	if priceType != "" {
		clauses = append(clauses, fmt.Sprintf("priceType eq '%s'", odataQuote(priceType)))
	}
	sort.Strings(keys)
	for _, k := range keys {
		clauses = append(clauses, fmt.Sprintf("%s eq '%s'", k, odataQuote(q.Filters[k])))
	}
	return strings.Join(clauses, " and ")
}

func odataQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func (c *RetailClient) requestURL(q Query) string {
	// Spaces must travel as %20; the catalog rejects '+' inside $filter.
	filter := strings.ReplaceAll(url.QueryEscape(FilterExpression(q)), "+", "%20")
	return c.baseURL + "?$filter=" + filter
}

// fetch walks the continuation links. The boolean reports whether the result is
// complete enough to cache; a non-success status on any page or a result cut
// short by the item or page ceiling makes it false.
func (c *RetailClient) fetch(ctx context.Context, q Query) ([]Record, bool, error) {
	start := time.Now()
	defer func() {
		catalogFetchSeconds.WithLabelValues(string(resource.ProviderAzure)).Observe(time.Since(start).Seconds())
	}()

	var records []Record
	complete := true
	next := c.requestURL(q)
	page := 0
	for ; next != "" && page < c.maxPages; page++ {
		body, status, err := c.get(ctx, next)
		if err != nil {
			catalogRequests.WithLabelValues(string(resource.ProviderAzure), outcomeTransport).Inc()
			return nil, false, fmt.Errorf("retail catalog request: %w", err)
		}
		if status != http.StatusOK {
			catalogRequests.WithLabelValues(string(resource.ProviderAzure), outcomeStatus).Inc()
			c.logger.Warn().
				Int("status", status).
				Int("page", page).
				Str("service", q.Service).
				Str("region", q.Region).
				Msg("retail catalog returned non-success status")
			complete = false
			next = ""
			break
		}

		var p retailPage
		if err := json.Unmarshal(body, &p); err != nil {
			catalogRequests.WithLabelValues(string(resource.ProviderAzure), outcomeDecode).Inc()
			return nil, false, fmt.Errorf("decode retail catalog page: %w", err)
		}
		catalogRequests.WithLabelValues(string(resource.ProviderAzure), outcomeOK).Inc()

		room := c.maxItems - len(records)
		if len(p.Items) > room || (len(p.Items) == room && p.NextPageLink != "") {
			for _, it := range p.Items[:room] {
				records = append(records, it.record(p.BillingCurrency))
			}
			catalogRequests.WithLabelValues(string(resource.ProviderAzure), outcomeTruncated).Inc()
			complete = false
			next = ""
			break
		}
		for _, it := range p.Items {
			records = append(records, it.record(p.BillingCurrency))
		}
		next = p.NextPageLink
	}
	if next != "" {
		catalogRequests.WithLabelValues(string(resource.ProviderAzure), outcomeTruncated).Inc()
		c.logger.Warn().
			Int("pages", page).
			Str("service", q.Service).
			Str("region", q.Region).
			Msg("retail catalog page ceiling reached")
		complete = false
	}

	c.logger.Debug().
		Str("service", q.Service).
		Str("region", q.Region).
		Int("records", len(records)).
		Dur("elapsed", time.Since(start)).
		Msg("retail catalog fetched")
	if records == nil {
		records = []Record{}
	}
	return records, complete, nil
}

func (c *RetailClient) get(ctx context.Context, u string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func (it retailItem) record(billing string) Record {
	currency := it.CurrencyCode
	if currency == "" {
		currency = billing
	}
	attrs := map[string]string{}
	for k, v := range map[string]string{
		"armSkuName":    it.ArmSkuName,
		"serviceFamily": it.ServiceFamily,
		"meterId":       it.MeterID,
		"productId":     it.ProductID,
		"skuId":         it.SkuID,
	} {
		if v != "" {
			attrs[k] = v
		}
	}
	return Record{
		Provider:         resource.ProviderAzure,
		Service:          it.ServiceName,
		MeterName:        it.MeterName,
		ProductName:      it.ProductName,
		SKUName:          it.SkuName,
		Region:           it.ArmRegionName,
		Location:         it.Location,
		UnitOfMeasure:    it.UnitOfMeasure,
		UnitPrice:        it.RetailPrice,
		Currency:         currency,
		TierMinimumUnits: it.TierMinimumUnits,
		Type:             it.Type,
		Attributes:       attrs,
	}
}
