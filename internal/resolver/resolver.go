// Package resolver maps canonical resource items to catalog prices.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/rshade/archcost/internal/pricing"
	"github.com/rshade/archcost/internal/resource"
)

var tracer = otel.Tracer("github.com/rshade/archcost/internal/resolver")

// DefaultHoursPerMonth is the number of hours used to turn hourly meters into a
// monthly price.
const DefaultHoursPerMonth = 730.0

// Component is one attribute-scaled part of a multi-component price.
type Component struct {
	Attribute resource.Attribute
	// Rate is the monthly price per attribute unit.
	Rate  float64
	Meter string
	// Optional components are skipped when the item lacks the attribute.
	Optional bool
}

// Quote is the resolved monthly price of one unit of an item.
type Quote struct {
	// Base is the monthly price independent of any attribute.
	Base       float64
	Components []Component
	// Unpriced lists required components for which no rate was found.
	Unpriced []resource.Attribute
	Meter    string
	Currency string
}

// Resolver finds catalog prices for items.
type Resolver struct {
	catalog       pricing.Catalog
	hoursPerMonth float64
	plans         map[planKey]plan
	logger        zerolog.Logger
}

// New creates a Resolver over catalog. The catalog owns the shared price cache.
func New(catalog pricing.Catalog, hoursPerMonth float64, logger zerolog.Logger) *Resolver {
	if hoursPerMonth <= 0 {
		hoursPerMonth = DefaultHoursPerMonth
	}
	return &Resolver{
		catalog:       catalog,
		hoursPerMonth: hoursPerMonth,
		plans:         builtinPlans,
		logger:        logger.With().Str("component", "resolver").Logger(),
	}
}

// HoursPerMonth returns the configured hours-per-month constant.
func (r *Resolver) HoursPerMonth() float64 {
	return r.hoursPerMonth
}

// DefaultSKU returns the SKU priced for an item of kind k that names none, or ""
// when no plan exists.
func DefaultSKU(p resource.Provider, k resource.ServiceKind) string {
	return builtinPlans[planKey{p, k}].defaultSKU
}

// Supports reports whether a lookup plan exists for the provider and service kind.
func (r *Resolver) Supports(p resource.Provider, k resource.ServiceKind) bool {
	_, ok := r.plans[planKey{p, k}]
	return ok
}

// Resolve returns the monthly unit price of item. ok is false when nothing in the
// catalog matched after every region and SKU variant was tried; that is a normal
// outcome. A non-nil error means the catalog could not be reached and nothing was
// resolved.
func (r *Resolver) Resolve(ctx context.Context, item resource.Item) (Quote, bool, error) {
	ctx, span := tracer.Start(ctx, "resolver.Resolve")
	defer span.End()

	start := time.Now()
	p, ok := r.plans[planKey{item.Provider, item.Service}]
	if !ok {
		r.logger.Debug().
			Str("provider", string(item.Provider)).
			Str("service", string(item.Service)).
			Msg("no lookup plan")
		return Quote{}, false, nil
	}

	sku := strings.TrimSpace(item.SKU)
	if sku == "" && p.defaultSKU != "" {
		sku = p.defaultSKU
	}
	skus := []string{sku}
	if p.skuVariants != nil {
		skus = p.skuVariants(sku)
	}
	regions := Variants(item.Provider, item.Region)

	q := Quote{Currency: "USD"}
	found := false
	var lastErr error

	if p.base != nil {
		rec, price, hit, err := r.find(ctx, item.Provider, regions, skus, sku, *p.base)
		if err != nil {
			lastErr = err
		}
		if !hit {
			return Quote{}, false, lastErr
		}
		q.Base = price
		q.Meter = rec.MeterName
		if rec.Currency != "" {
			q.Currency = rec.Currency
		}
		found = true
	}

	for _, c := range p.components {
		rec, rate, hit, err := r.find(ctx, item.Provider, regions, skus, sku, c.lookup)
		if err != nil {
			lastErr = err
		}
		if !hit {
			if !c.optional {
				q.Unpriced = append(q.Unpriced, c.attr)
			}
			continue
		}
		q.Components = append(q.Components, Component{
			Attribute: c.attr,
			Rate:      rate,
			Meter:     rec.MeterName,
			Optional:  c.optional,
		})
		if q.Meter == "" {
			q.Meter = rec.MeterName
		}
		if !c.optional {
			found = true
		}
	}

	if !found {
		return Quote{}, false, lastErr
	}

	r.logger.Debug().
		Str("item", item.Key().String()).
		Str("meter", q.Meter).
		Float64("base", q.Base).
		Int("components", len(q.Components)).
		Dur("elapsed", time.Since(start)).
		Msg("price resolved")
	return q, true, nil
}

// find runs lk across the region variants in order and returns the cheapest match
// of the first region that yields one. Every SKU variant of a region is queried
// before selecting, so spelling variants compete on price.
func (r *Resolver) find(ctx context.Context, provider resource.Provider, regions []RegionVariant, skus []string, sku string, lk lookup) (pricing.Record, float64, bool, error) {
	variants := skus
	if lk.skuField == "" {
		variants = []string{""}
	}

	var lastErr error
	for _, rv := range regions {
		var cands []pricing.Record
		for _, s := range variants {
			if err := ctx.Err(); err != nil {
				return pricing.Record{}, 0, false, err
			}
			q := pricing.Query{
				Provider:   provider,
				Service:    lk.service,
				Region:     rv.Name,
				ByLocation: rv.ByLocation,
				Filters:    lk.filtersFor(s),
			}
			recs, err := r.catalog.Query(ctx, q)
			if err != nil {
				lastErr = fmt.Errorf("query %s: %w", q.Signature(), err)
				r.logger.Debug().Err(err).Str("query", q.Signature()).Msg("catalog query failed")
				continue
			}
			for _, rec := range recs {
				if lk.match == nil || lk.match(rec, sku) {
					cands = append(cands, rec)
				}
			}
		}
		if rec, price, ok := selectCheapest(cands, lk.computeOnly, sku, r.hoursPerMonth); ok {
			return rec, price, true, nil
		}
	}
	return pricing.Record{}, 0, false, lastErr
}
