// Package pricing queries public price catalogs and caches the raw records they
// return.
package pricing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/rshade/archcost/internal/resource"
)

var tracer = otel.Tracer("github.com/rshade/archcost/internal/pricing")

// Catalog answers catalog queries for one or more providers.
//
// A non-success upstream response yields an empty result and a nil error so that
// callers can apply their "price not found" fallback. A non-nil error means the
// catalog could not be reached or its payload could not be decoded.
type Catalog interface {
	Query(ctx context.Context, q Query) ([]Record, error)
}

// Query selects catalog records for one service in one region.
type Query struct {
	Provider resource.Provider
	// Service is the catalog service name (retail serviceName, or offer code).
	Service string
	// Region is a region code, or a display location name when ByLocation is set.
	Region     string
	ByLocation bool
	// Filters are exact-match constraints on catalog fields or attributes.
	Filters map[string]string
}

// Signature returns the normalized form of the query used as its cache key.
// Field names are lower-cased and sorted; values are trimmed.
func (q Query) Signature() string {
	var b strings.Builder
	b.WriteString("service=")
	b.WriteString(strings.TrimSpace(q.Service))
	if q.ByLocation {
		b.WriteString(";location=")
	} else {
		b.WriteString(";region=")
	}
	b.WriteString(strings.TrimSpace(q.Region))

	keys := make([]string, 0, len(q.Filters))
	norm := make(map[string]string, len(q.Filters))
	for k, v := range q.Filters {
		lk := strings.ToLower(strings.TrimSpace(k))
		keys = append(keys, lk)
		norm[lk] = strings.TrimSpace(v)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, ";%s=%s", k, norm[k])
	}
	return b.String()
}

// cacheKey is the composite provider + signature key.
func (q Query) cacheKey() string {
	return string(q.Provider) + "|" + q.Signature()
}

// Router dispatches queries to the catalog registered for the query's provider.
// Providers without a catalog yield empty results.
type Router struct {
	catalogs map[resource.Provider]Catalog
	logger   zerolog.Logger
}

// NewRouter creates an empty Router.
func NewRouter(logger zerolog.Logger) *Router {
	return &Router{
		catalogs: make(map[resource.Provider]Catalog),
		logger:   logger,
	}
}

// Register binds a catalog to a provider, replacing any previous binding.
func (r *Router) Register(p resource.Provider, c Catalog) {
	r.catalogs[p] = c
}

// Providers returns the providers that have a catalog, sorted.
func (r *Router) Providers() []resource.Provider {
	out := make([]resource.Provider, 0, len(r.catalogs))
	for p := range r.catalogs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Query implements Catalog.
func (r *Router) Query(ctx context.Context, q Query) ([]Record, error) {
	c, ok := r.catalogs[q.Provider]
	if !ok {
		r.logger.Debug().
			Str("provider", string(q.Provider)).
			Str("service", q.Service).
			Msg("no price catalog for provider")
		return nil, nil
	}
	return c.Query(ctx, q)
}
