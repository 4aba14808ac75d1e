package estimate

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/rshade/archcost/internal/resolver"
	"github.com/rshade/archcost/internal/resource"
)

var tracer = otel.Tracer("github.com/rshade/archcost/internal/estimate")

var pricedLines = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "archcost",
	Subsystem: "estimate",
	Name:      "lines_total",
	Help:      "Priced estimate lines by outcome.",
}, []string{"outcome"})

// Defaults applied when the config leaves a value unset.
const (
	DefaultConcurrency = 4
	DefaultTimeout     = 30 * time.Second
)

// DefaultAttributes are the attribute values assumed for required price components
// when an item does not carry them.
func DefaultAttributes() map[resource.Attribute]float64 {
	return map[resource.Attribute]float64{
		resource.AttrCapacityUnits:   1,
		resource.AttrRuleCount:       5,
		resource.AttrDataProcessedGB: 100,
		resource.AttrSizeGB:          100,
	}
}

// Resolver resolves the monthly unit price of an item.
type Resolver interface {
	Resolve(ctx context.Context, item resource.Item) (resolver.Quote, bool, error)
}

// Options configures an Aggregator.
type Options struct {
	HoursPerMonth float64
	Concurrency   int
	Timeout       time.Duration
	Defaults      map[resource.Attribute]float64
}

// Line is one priced item.
type Line struct {
	Item             resource.Item `json:"item" yaml:"item"`
	UnitMonthlyPrice float64       `json:"unitMonthlyPrice" yaml:"unitMonthlyPrice"`
	MonthlyPrice     float64       `json:"computedMonthlyPrice" yaml:"computedMonthlyPrice"`
	Notes            []string      `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Estimate is the itemized result of a pricing pass.
type Estimate struct {
	Currency string   `json:"currency" yaml:"currency"`
	Total    float64  `json:"totalEstimate" yaml:"totalEstimate"`
	Notes    []string `json:"notes,omitempty" yaml:"notes,omitempty"`
	Lines    []Line   `json:"lines" yaml:"lines"`
}

// Aggregator drives the resolver over a set of items.
type Aggregator struct {
	resolver Resolver
	opts     Options
	logger   zerolog.Logger
}

// NewAggregator creates an Aggregator. Zero option values take the package
// defaults; a partial Defaults map is completed from DefaultAttributes.
func NewAggregator(r Resolver, opts Options, logger zerolog.Logger) *Aggregator {
	if opts.HoursPerMonth <= 0 {
		opts.HoursPerMonth = resolver.DefaultHoursPerMonth
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	defaults := DefaultAttributes()
	for k, v := range opts.Defaults {
		defaults[k] = v
	}
	opts.Defaults = defaults
	return &Aggregator{
		resolver: r,
		opts:     opts,
		logger:   logger.With().Str("component", "aggregator").Logger(),
	}
}

// Price resolves every item and totals the result. It never fails: items that
// cannot be priced, including those still unresolved when the timeout fires, are
// zero-priced lines carrying a note. Lines keep the order of items.
func (a *Aggregator) Price(ctx context.Context, items []resource.Item) Estimate {
	ctx, span := tracer.Start(ctx, "estimate.Price")
	defer span.End()
	span.SetAttributes(attribute.Int("estimate.items", len(items)))

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	lines := make([]Line, len(items))
	currencies := make([]string, len(items))
	unresolved := make([]bool, len(items))

	var g errgroup.Group
	g.SetLimit(a.opts.Concurrency)
	for i, item := range items {
		g.Go(func() error {
			lines[i], currencies[i], unresolved[i] = a.priceLine(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	est := Estimate{Currency: "USD", Lines: lines}
	var total float64
	missing := 0
	for i, l := range lines {
		total += l.MonthlyPrice
		if unresolved[i] {
			missing++
		} else if currencies[i] != "" {
			est.Currency = currencies[i]
		}
	}
	est.Total = round2(total)
	if missing > 0 {
		est.Notes = append(est.Notes, fmt.Sprintf(UnresolvedSummaryTemplate, missing, len(items)))
	}

	a.logger.Info().
		Int("items", len(items)).
		Int("unresolved", missing).
		Float64("total", est.Total).
		Dur("elapsed", time.Since(start)).
		Msg("estimate priced")
	return est
}

// priceLine prices one item. It returns the line, the quote currency and whether
// the item went unresolved.
func (a *Aggregator) priceLine(ctx context.Context, item resource.Item) (Line, string, bool) {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	line := Line{Item: item}

	q, ok, err := a.resolver.Resolve(ctx, item)
	if err != nil {
		line.Notes = append(line.Notes, fmt.Sprintf(CatalogUnavailableTemplate, item.Provider, err))
		a.logger.Warn().
			Err(err).
			Str("item", item.Key().String()).
			Msg("catalog unavailable while pricing item")
	}
	if !ok {
		line.Notes = append(line.Notes, fmt.Sprintf(PriceNotFoundTemplate, item.Service, item.SKU, item.Region))
		outcome := "not_found"
		if err != nil {
			outcome = "unavailable"
		}
		pricedLines.WithLabelValues(outcome).Inc()
		return line, "", true
	}

	unit := q.Base
	for _, c := range q.Components {
		v, has := item.Attr(c.Attribute)
		if !has {
			if c.Optional {
				continue
			}
			v = a.opts.Defaults[c.Attribute]
			line.Notes = append(line.Notes, fmt.Sprintf(DefaultAttributeTemplate, c.Attribute, v))
		}
		unit += v * c.Rate
	}
	for _, attr := range q.Unpriced {
		line.Notes = append(line.Notes, fmt.Sprintf(ComponentNotFoundTemplate, attr))
	}

	hours := a.opts.HoursPerMonth
	if item.DutyHours != nil && *item.DutyHours != hours && unit > 0 {
		unit *= *item.DutyHours / hours
		line.Notes = append(line.Notes, fmt.Sprintf(DutyHoursTemplate, *item.DutyHours, hours))
	}

	line.UnitMonthlyPrice = round2(unit)
	line.MonthlyPrice = round2(unit * float64(item.Quantity))
	pricedLines.WithLabelValues("priced").Inc()
	return line, q.Currency, false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
