package pricing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awspricing "github.com/aws/aws-sdk-go-v2/service/pricing"
	pricingtypes "github.com/aws/aws-sdk-go-v2/service/pricing/types"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rshade/archcost/internal/resource"
)

// productsAPIRegion is the only region serving the price list query API that every
// account can reach.
const productsAPIRegion = "us-east-1"

// ProductsAPI is the subset of the AWS Pricing API used by ProductsAPIClient.
type ProductsAPI interface {
	GetProducts(ctx context.Context, in *awspricing.GetProductsInput, optFns ...func(*awspricing.Options)) (*awspricing.GetProductsOutput, error)
}

// ProductsAPIClient answers offer-catalog queries through the credentialed
// GetProducts API instead of downloading whole documents.
type ProductsAPIClient struct {
	api      ProductsAPI
	maxItems int
	maxPages int
	cache    *Cache
	logger   zerolog.Logger
}

// NewProductsAPIClient wraps an existing API client.
func NewProductsAPIClient(api ProductsAPI, maxItems, maxPages int, cache *Cache, logger zerolog.Logger) *ProductsAPIClient {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &ProductsAPIClient{
		api:      api,
		maxItems: maxItems,
		maxPages: maxPages,
		cache:    cache,
		logger:   logger.With().Str("component", "products_api_catalog").Logger(),
	}
}

// LoadProductsAPIClient builds a ProductsAPIClient from the default AWS credential
// chain.
func LoadProductsAPIClient(ctx context.Context, maxItems, maxPages int, cache *Cache, logger zerolog.Logger) (*ProductsAPIClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(productsAPIRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewProductsAPIClient(awspricing.NewFromConfig(cfg), maxItems, maxPages, cache, logger), nil
}

// Query implements Catalog.
func (c *ProductsAPIClient) Query(ctx context.Context, q Query) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "pricing.ProductsAPIClient.Query", trace.WithAttributes(
		attribute.String("catalog.offer", q.Service),
		attribute.String("catalog.region", q.Region),
	))
	defer span.End()

	records, hit, err := c.cache.load(q.cacheKey(), func() ([]Record, bool, error) {
		recs, err := c.fetch(ctx, q)
		return recs, err == nil, err
	})
	span.SetAttributes(attribute.Bool("catalog.cache_hit", hit), attribute.Int("catalog.records", len(records)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return records, nil
}

// termMatchFilters translates q into TERM_MATCH filters.
func termMatchFilters(q Query) []pricingtypes.Filter {
	var filters []pricingtypes.Filter
	if q.Region != "" {
		field := "regionCode"
		if q.ByLocation {
			field = "location"
		}
		filters = append(filters, pricingtypes.Filter{
			Type:  pricingtypes.FilterTypeTermMatch,
			Field: aws.String(field),
			Value: aws.String(q.Region),
		})
	}
	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		filters = append(filters, pricingtypes.Filter{
			Type:  pricingtypes.FilterTypeTermMatch,
			Field: aws.String(k),
			Value: aws.String(q.Filters[k]),
		})
	}
	return filters
}

func (c *ProductsAPIClient) fetch(ctx context.Context, q Query) ([]Record, error) {
	start := time.Now()
	defer func() {
		catalogFetchSeconds.WithLabelValues(string(resource.ProviderAWS)).Observe(time.Since(start).Seconds())
	}()

	in := &awspricing.GetProductsInput{
		ServiceCode:   aws.String(q.Service),
		Filters:       termMatchFilters(q),
		FormatVersion: aws.String("aws_v1"),
		MaxResults:    aws.Int32(100),
	}

	records := []Record{}
	for page := 0; page < c.maxPages; page++ {
		out, err := c.api.GetProducts(ctx, in)
		if err != nil {
			catalogRequests.WithLabelValues(string(resource.ProviderAWS), outcomeTransport).Inc()
			return nil, fmt.Errorf("get products: %w", err)
		}
		catalogRequests.WithLabelValues(string(resource.ProviderAWS), outcomeOK).Inc()

		for _, raw := range out.PriceList {
			var entry priceListEntry
			if err := json.Unmarshal([]byte(raw), &entry); err != nil {
				catalogRequests.WithLabelValues(string(resource.ProviderAWS), outcomeDecode).Inc()
				return nil, fmt.Errorf("decode price list entry: %w", err)
			}
			records = appendDimensions(records, q.Service, entry.Product, entry.Terms["OnDemand"])
			if len(records) >= c.maxItems {
				catalogRequests.WithLabelValues(string(resource.ProviderAWS), outcomeTruncated).Inc()
				return records[:c.maxItems], nil
			}
		}

		if out.NextToken == nil || *out.NextToken == "" {
			break
		}
		in.NextToken = out.NextToken
	}

	c.logger.Debug().
		Str("service", q.Service).
		Str("region", q.Region).
		Int("records", len(records)).
		Dur("elapsed", time.Since(start)).
		Msg("price list query completed")
	return records, nil
}
