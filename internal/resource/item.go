// Package resource defines the canonical billable item shared by the normalizer,
// the price resolver and the aggregator.
package resource

import (
	"errors"
	"fmt"
	"strings"
)

// Provider identifies a cloud provider.
type Provider string

// Known providers. The set is open; a provider without a catalog simply resolves
// every item as "not found".
const (
	ProviderAzure Provider = "azure"
	ProviderAWS   Provider = "aws"
	ProviderGCP   Provider = "gcp"
)

// ServiceKind is the closed vocabulary of billable service kinds.
type ServiceKind string

// Service kinds recognised by the normalizer and priced by the resolver.
const (
	AppService            ServiceKind = "app_service"
	VM                    ServiceKind = "vm"
	ManagedSQL            ServiceKind = "managed_sql"
	ObjectStorage         ServiceKind = "object_storage"
	LoadBalancer          ServiceKind = "load_balancer"
	ApplicationGateway    ServiceKind = "application_gateway"
	APIGateway            ServiceKind = "api_gateway"
	Cache                 ServiceKind = "cache"
	ContainerOrchestrator ServiceKind = "container_orchestrator"
	LogIngestion          ServiceKind = "log_ingestion"
)

var knownServices = map[ServiceKind]bool{
	AppService:            true,
	VM:                    true,
	ManagedSQL:            true,
	ObjectStorage:         true,
	LoadBalancer:          true,
	ApplicationGateway:    true,
	APIGateway:            true,
	Cache:                 true,
	ContainerOrchestrator: true,
	LogIngestion:          true,
}

var knownProviders = map[Provider]bool{
	ProviderAzure: true,
	ProviderAWS:   true,
	ProviderGCP:   true,
}

// ParseProvider normalizes a provider name. Unknown names are returned lower-cased
// with ok=false.
func ParseProvider(s string) (Provider, bool) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	return p, knownProviders[p]
}

// ParseServiceKind normalizes a service kind name.
func ParseServiceKind(s string) (ServiceKind, bool) {
	k := ServiceKind(strings.ToLower(strings.TrimSpace(s)))
	return k, knownServices[k]
}

// Attribute names an optional numeric item attribute used by capacity and
// multi-component pricing.
type Attribute string

// Item attributes.
const (
	AttrSizeGB          Attribute = "sizeGB"
	AttrRuleCount       Attribute = "ruleCount"
	AttrDataProcessedGB Attribute = "dataProcessedGB"
	AttrCapacityUnits   Attribute = "capacityUnits"
)

// Item is one canonical billable unit.
type Item struct {
	Provider        Provider    `json:"provider" yaml:"provider"`
	Service         ServiceKind `json:"serviceKind" yaml:"serviceKind"`
	SKU             string      `json:"skuOrInstanceType" yaml:"skuOrInstanceType"`
	Quantity        int         `json:"quantity" yaml:"quantity"`
	Region          string      `json:"region" yaml:"region"`
	SizeGB          *float64    `json:"sizeGB,omitempty" yaml:"sizeGB,omitempty"`
	DutyHours       *float64    `json:"dutyHours,omitempty" yaml:"dutyHours,omitempty"`
	RuleCount       *float64    `json:"ruleCount,omitempty" yaml:"ruleCount,omitempty"`
	DataProcessedGB *float64    `json:"dataProcessedGB,omitempty" yaml:"dataProcessedGB,omitempty"`
	CapacityUnits   *float64    `json:"capacityUnits,omitempty" yaml:"capacityUnits,omitempty"`
}

// Key is the merge key of an item.
type Key struct {
	Provider Provider
	Service  ServiceKind
	SKU      string
	Region   string
}

// String renders the key as provider/service/sku/region.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.Provider, k.Service, k.SKU, k.Region)
}

// Key returns the item's merge key.
func (i Item) Key() Key {
	return Key{Provider: i.Provider, Service: i.Service, SKU: i.SKU, Region: i.Region}
}

// Attr returns the value of a numeric attribute, if set.
func (i Item) Attr(a Attribute) (float64, bool) {
	var p *float64
	switch a {
	case AttrSizeGB:
		p = i.SizeGB
	case AttrRuleCount:
		p = i.RuleCount
	case AttrDataProcessedGB:
		p = i.DataProcessedGB
	case AttrCapacityUnits:
		p = i.CapacityUnits
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Validation errors.
var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrUnknownService  = errors.New("unknown service kind")
	ErrMissingSKU      = errors.New("missing sku")
	ErrBadQuantity     = errors.New("quantity must be at least 1")
	ErrNegativeAttr    = errors.New("attribute must not be negative")
)

// Validate checks that the item conforms to the schema.
func (i Item) Validate() error {
	if !knownProviders[i.Provider] {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, i.Provider)
	}
	if !knownServices[i.Service] {
		return fmt.Errorf("%w: %q", ErrUnknownService, i.Service)
	}
	if strings.TrimSpace(i.SKU) == "" {
		return ErrMissingSKU
	}
	if i.Quantity < 1 {
		return ErrBadQuantity
	}
	for _, a := range []struct {
		name string
		v    *float64
	}{
		{"sizeGB", i.SizeGB},
		{"dutyHours", i.DutyHours},
		{"ruleCount", i.RuleCount},
		{"dataProcessedGB", i.DataProcessedGB},
		{"capacityUnits", i.CapacityUnits},
	} {
		if a.v != nil && *a.v < 0 {
			return fmt.Errorf("%w: %s", ErrNegativeAttr, a.name)
		}
	}
	return nil
}

// Merge combines items sharing a merge key. Quantities and capacity attributes are
// summed, the first non-empty DutyHours wins and first-seen order is preserved.
func Merge(items []Item) []Item {
	out := make([]Item, 0, len(items))
	index := make(map[Key]int, len(items))
	for _, it := range items {
		if it.Quantity < 1 {
			it.Quantity = 1
		}
		pos, seen := index[it.Key()]
		if !seen {
			index[it.Key()] = len(out)
			out = append(out, it.clone())
			continue
		}
		dst := &out[pos]
		dst.Quantity += it.Quantity
		dst.SizeGB = addOptional(dst.SizeGB, it.SizeGB)
		dst.RuleCount = addOptional(dst.RuleCount, it.RuleCount)
		dst.DataProcessedGB = addOptional(dst.DataProcessedGB, it.DataProcessedGB)
		dst.CapacityUnits = addOptional(dst.CapacityUnits, it.CapacityUnits)
		if dst.DutyHours == nil && it.DutyHours != nil {
			dst.DutyHours = Float(*it.DutyHours)
		}
	}
	return out
}

func (i Item) clone() Item {
	c := i
	c.SizeGB = copyOptional(i.SizeGB)
	c.DutyHours = copyOptional(i.DutyHours)
	c.RuleCount = copyOptional(i.RuleCount)
	c.DataProcessedGB = copyOptional(i.DataProcessedGB)
	c.CapacityUnits = copyOptional(i.CapacityUnits)
	return c
}

func copyOptional(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return Float(*p)
}

func addOptional(a, b *float64) *float64 {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		return Float(*b)
	case b == nil:
		return a
	}
	return Float(*a + *b)
}
