// Package normalize turns loosely structured architecture descriptions into
// canonical resource items.
package normalize

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rshade/archcost/internal/resolver"
	"github.com/rshade/archcost/internal/resource"
)

// DefaultProvider is assumed when neither the input nor the options name one.
const DefaultProvider = resource.ProviderAzure

// fallbackSKU is used for kinds that have no priced default.
const fallbackSKU = "standard"

var defaultRegions = map[resource.Provider]string{
	resource.ProviderAzure: "eastus",
	resource.ProviderAWS:   "us-east-1",
	resource.ProviderGCP:   "us-central1",
}

// Input is the raw material of one estimate.
type Input struct {
	FreeText      string            `json:"freeText"`
	DiagramSource string            `json:"diagramSource"`
	IaCSource     string            `json:"iacSource"`
	Region        string            `json:"region"`
	Provider      resource.Provider `json:"provider,omitempty"`
}

// Proposer suggests items from free text. Implementations are best effort.
type Proposer interface {
	ProposeItems(ctx context.Context, text string) ([]resource.Item, error)
}

// Options configures a Normalizer.
type Options struct {
	Provider resource.Provider
	Region   string
}

// Normalizer extracts items from an Input.
type Normalizer struct {
	opts     Options
	proposer Proposer
	logger   zerolog.Logger
}

// New creates a Normalizer. proposer may be nil.
func New(opts Options, proposer Proposer, logger zerolog.Logger) *Normalizer {
	if opts.Provider == "" {
		opts.Provider = DefaultProvider
	}
	return &Normalizer{
		opts:     opts,
		proposer: proposer,
		logger:   logger.With().Str("component", "normalizer").Logger(),
	}
}

// Normalize returns the merged items described by in. It never fails: an
// unparseable IaC source falls back to keyword detection and proposer failures
// are ignored.
func (n *Normalizer) Normalize(ctx context.Context, in Input) []resource.Item {
	provider := in.Provider
	if provider == "" {
		provider = n.opts.Provider
	}
	region := strings.TrimSpace(in.Region)
	if region == "" {
		region = n.opts.Region
	}
	region = resolver.CanonicalRegion(provider, region)

	template := func(p resource.Provider, k resource.ServiceKind) resource.Item {
		r := region
		if p != provider || r == "" {
			r = defaultRegions[p]
		}
		return resource.Item{
			Provider: p,
			Service:  k,
			SKU:      defaultSKU(p, k),
			Quantity: 1,
			Region:   r,
		}
	}

	var items []resource.Item
	scan := []string{in.FreeText, in.DiagramSource}
	if strings.TrimSpace(in.IaCSource) != "" {
		iac, err := scanIaC(in.IaCSource, template)
		if err != nil {
			n.logger.Debug().Err(err).Msg("iac source not parseable, using keyword detection")
			scan = append(scan, in.IaCSource)
		}
		items = append(items, iac...)
	}

	detected, fired := detect(strings.Join(scan, "\n"), func(k resource.ServiceKind) resource.Item {
		return template(provider, k)
	})
	items = append(detected, items...)
	for _, it := range n.propose(ctx, in.FreeText, provider, region) {
		if suppressed(it.Service, fired) {
			n.logger.Debug().Str("service", string(it.Service)).Msg("dropping suppressed proposal")
			continue
		}
		items = append(items, it)
	}

	merged := resource.Merge(items)
	n.logger.Debug().
		Int("detected", len(items)).
		Int("merged", len(merged)).
		Msg("input normalized")
	return merged
}

// propose consults the proposer and keeps only proposals that validate once
// defaults are applied.
func (n *Normalizer) propose(ctx context.Context, text string, provider resource.Provider, region string) []resource.Item {
	if n.proposer == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	proposed, err := n.proposer.ProposeItems(ctx, text)
	if err != nil {
		n.logger.Debug().Err(err).Msg("item proposer failed")
		return nil
	}

	out := make([]resource.Item, 0, len(proposed))
	for _, it := range proposed {
		if it.Provider == "" {
			it.Provider = provider
		}
		it.Provider, _ = resource.ParseProvider(string(it.Provider))
		it.Service, _ = resource.ParseServiceKind(string(it.Service))
		if strings.TrimSpace(it.Region) == "" {
			it.Region = region
			if it.Provider != provider || it.Region == "" {
				it.Region = defaultRegions[it.Provider]
			}
		} else {
			it.Region = resolver.CanonicalRegion(it.Provider, it.Region)
		}
		if it.Quantity == 0 {
			it.Quantity = 1
		}
		if strings.TrimSpace(it.SKU) == "" {
			it.SKU = defaultSKU(it.Provider, it.Service)
		}
		if err := it.Validate(); err != nil {
			n.logger.Debug().
				Err(err).
				Str("service", string(it.Service)).
				Msg("dropping proposed item")
			continue
		}
		out = append(out, it)
	}
	return out
}

func defaultSKU(p resource.Provider, k resource.ServiceKind) string {
	if sku := resolver.DefaultSKU(p, k); sku != "" {
		return sku
	}
	return fallbackSKU
}
