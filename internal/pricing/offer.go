package pricing

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rshade/archcost/internal/resource"
)

// DefaultOfferBaseURL is the public host serving bulk price-offer documents.
const DefaultOfferBaseURL = "https://pricing.us-east-1.amazonaws.com"

// slowLookupThreshold flags in-memory document scans worth a warning.
const slowLookupThreshold = 50 * time.Millisecond

// OfferConfig configures an OfferClient.
type OfferConfig struct {
	BaseURL    string
	MaxItems   int
	HTTPClient *http.Client
}

// OfferClient answers queries from downloadable bulk price-offer documents, one
// document per offer code and region.
type OfferClient struct {
	baseURL  string
	maxItems int
	http     *http.Client
	// docs holds flattened documents keyed by offer and region; queries holds
	// filtered results keyed by query signature.
	docs    *Cache
	queries *Cache
	logger  zerolog.Logger
}

// NewOfferClient creates an OfferClient. Flattened documents are kept in their own
// cache with the same TTL as cache.
func NewOfferClient(cfg OfferConfig, cache *Cache, logger zerolog.Logger) *OfferClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOfferBaseURL
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &OfferClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		maxItems: cfg.MaxItems,
		http:     cfg.HTTPClient,
		docs:     NewCache(cache.TTL()),
		queries:  cache,
		logger:   logger.With().Str("component", "offer_catalog").Logger(),
	}
}

// Query implements Catalog.
func (c *OfferClient) Query(ctx context.Context, q Query) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "pricing.OfferClient.Query", trace.WithAttributes(
		attribute.String("catalog.offer", q.Service),
		attribute.String("catalog.region", q.Region),
	))
	defer span.End()

	records, hit, err := c.queries.load(q.cacheKey(), func() ([]Record, bool, error) {
		doc, ok, err := c.document(ctx, q)
		if err != nil || !ok {
			return nil, false, err
		}
		return c.match(doc, q), true, nil
	})
	span.SetAttributes(attribute.Bool("catalog.cache_hit", hit), attribute.Int("catalog.records", len(records)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// documentURL returns the regional document URL, or the global one for location
// queries.
func (c *OfferClient) documentURL(q Query) string {
	if q.ByLocation || q.Region == "" {
		return fmt.Sprintf("%s/offers/v1.0/aws/%s/current/index.json", c.baseURL, q.Service)
	}
	return fmt.Sprintf("%s/offers/v1.0/aws/%s/current/%s/index.json", c.baseURL, q.Service, q.Region)
}

// document returns the flattened records of the document that serves q. ok is false
// when the upstream answered with a non-success status.
func (c *OfferClient) document(ctx context.Context, q Query) ([]Record, bool, error) {
	u := c.documentURL(q)
	records, _, err := c.docs.load(u, func() ([]Record, bool, error) {
		start := time.Now()
		defer func() {
			catalogFetchSeconds.WithLabelValues(string(resource.ProviderAWS)).Observe(time.Since(start).Seconds())
		}()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, false, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			catalogRequests.WithLabelValues(string(resource.ProviderAWS), outcomeTransport).Inc()
			return nil, false, fmt.Errorf("offer document request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			catalogRequests.WithLabelValues(string(resource.ProviderAWS), outcomeStatus).Inc()
			c.logger.Warn().
				Int("status", resp.StatusCode).
				Str("url", u).
				Msg("offer document returned non-success status")
			return nil, false, nil
		}

		var doc offerDocument
		if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
			catalogRequests.WithLabelValues(string(resource.ProviderAWS), outcomeDecode).Inc()
			return nil, false, fmt.Errorf("failed to parse offer document: %w", err)
		}
		catalogRequests.WithLabelValues(string(resource.ProviderAWS), outcomeOK).Inc()

		flat := flattenOffer(doc)
		c.logger.Debug().
			Str("offer", doc.OfferCode).
			Str("version", doc.Version).
			Int("products", len(doc.Products)).
			Int("records", len(flat)).
			Dur("elapsed", time.Since(start)).
			Msg("offer document loaded")
		return flat, true, nil
	})
	if err != nil {
		return nil, false, err
	}
	// A stored document is never nil, so nil means a non-success answer.
	return records, records != nil, nil
}

// match keeps the records satisfying the location and attribute filters of q, up to
// the item ceiling.
func (c *OfferClient) match(doc []Record, q Query) []Record {
	start := time.Now()
	defer func() {
		if elapsed := time.Since(start); elapsed > slowLookupThreshold {
			c.logger.Warn().
				Str("offer", q.Service).
				Str("region", q.Region).
				Int("records", len(doc)).
				Dur("elapsed", elapsed).
				Msg("pricing lookup took too long")
		}
	}()

	out := []Record{}
	for _, r := range doc {
		if q.ByLocation && q.Region != "" && !strings.EqualFold(r.Location, q.Region) {
			continue
		}
		if !matchesFilters(r, q.Filters) {
			continue
		}
		out = append(out, r)
		if len(out) >= c.maxItems {
			break
		}
	}
	return out
}

func matchesFilters(r Record, filters map[string]string) bool {
	for k, v := range filters {
		if !strings.EqualFold(r.Attr(k), v) {
			return false
		}
	}
	return true
}

// flattenOffer turns a bulk document into one record per on-demand price dimension.
func flattenOffer(doc offerDocument) []Record {
	out := []Record{}
	for sku, prod := range doc.Products {
		terms, ok := doc.Terms["OnDemand"][sku]
		if !ok {
			continue
		}
		out = appendDimensions(out, doc.OfferCode, prod, terms)
	}
	return out
}

// appendDimensions emits the USD price dimensions of one product's on-demand terms.
func appendDimensions(out []Record, offerCode string, prod product, terms map[string]term) []Record {
	attrs := make(map[string]string, len(prod.Attributes)+2)
	for k, v := range prod.Attributes {
		attrs[k] = v
	}
	attrs["productFamily"] = prod.ProductFamily
	attrs["sku"] = prod.Sku

	service := attrs["servicecode"]
	if service == "" {
		service = offerCode
	}
	skuName := attrs["instanceType"]
	if skuName == "" {
		skuName = attrs["usagetype"]
	}

	for _, t := range terms {
		for _, dim := range t.PriceDimensions {
			amountStr, ok := dim.PricePerUnit["USD"]
			if !ok {
				continue
			}
			amount, err := strconv.ParseFloat(amountStr, 64)
			if err != nil {
				continue
			}
			begin, _ := strconv.ParseFloat(dim.BeginRange, 64)
			r := Record{
				Provider:         resource.ProviderAWS,
				Service:          service,
				MeterName:        dim.Description,
				ProductName:      prod.ProductFamily,
				SKUName:          skuName,
				Region:           attrs["regionCode"],
				Location:         attrs["location"],
				UnitOfMeasure:    dim.Unit,
				UnitPrice:        amount,
				Currency:         "USD",
				TierMinimumUnits: begin,
				Type:             "Consumption",
				Attributes:       attrs,
			}
			out = append(out, r.clone())
		}
	}
	return out
}
