package pricing

import (
	"strings"

	"github.com/rshade/archcost/internal/resource"
)

// Record is one priced line-item from a provider's public price list.
// Records are treated as immutable once returned by a Catalog.
type Record struct {
	Provider         resource.Provider `json:"provider" yaml:"provider"`
	Service          string            `json:"serviceName" yaml:"serviceName"`
	MeterName        string            `json:"meterName" yaml:"meterName"`
	ProductName      string            `json:"productName" yaml:"productName"`
	SKUName          string            `json:"skuName" yaml:"skuName"`
	Region           string            `json:"region" yaml:"region"`
	Location         string            `json:"location,omitempty" yaml:"location,omitempty"`
	UnitOfMeasure    string            `json:"unitOfMeasure" yaml:"unitOfMeasure"`
	UnitPrice        float64           `json:"unitPrice" yaml:"unitPrice"`
	Currency         string            `json:"currency" yaml:"currency"`
	TierMinimumUnits float64           `json:"tierMinimumUnits,omitempty" yaml:"tierMinimumUnits,omitempty"`
	Type             string            `json:"type,omitempty" yaml:"type,omitempty"`
	Attributes       map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Attr returns a record attribute, matching the key case-insensitively.
func (r Record) Attr(key string) string {
	if v, ok := r.Attributes[key]; ok {
		return v
	}
	for k, v := range r.Attributes {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r Record) clone() Record {
	c := r
	if r.Attributes != nil {
		c.Attributes = make(map[string]string, len(r.Attributes))
		for k, v := range r.Attributes {
			c.Attributes[k] = v
		}
	}
	return c
}

func cloneRecords(in []Record) []Record {
	if in == nil {
		return nil
	}
	out := make([]Record, len(in))
	for i, r := range in {
		out[i] = r.clone()
	}
	return out
}

// retailPage is one page of the retail price REST catalog.
type retailPage struct {
	BillingCurrency string       `json:"BillingCurrency"`
	Items           []retailItem `json:"Items"`
	NextPageLink    string       `json:"NextPageLink"`
	Count           int          `json:"Count"`
}

// retailItem is a single entry of a retail price page.
type retailItem struct {
	CurrencyCode         string  `json:"currencyCode"`
	TierMinimumUnits     float64 `json:"tierMinimumUnits"`
	RetailPrice          float64 `json:"retailPrice"`
	UnitPrice            float64 `json:"unitPrice"`
	ArmRegionName        string  `json:"armRegionName"`
	Location             string  `json:"location"`
	MeterID              string  `json:"meterId"`
	MeterName            string  `json:"meterName"`
	ProductID            string  `json:"productId"`
	SkuID                string  `json:"skuId"`
	ProductName          string  `json:"productName"`
	SkuName              string  `json:"skuName"`
	ServiceName          string  `json:"serviceName"`
	ServiceFamily        string  `json:"serviceFamily"`
	UnitOfMeasure        string  `json:"unitOfMeasure"`
	Type                 string  `json:"type"`
	IsPrimaryMeterRegion bool    `json:"isPrimaryMeterRegion"`
	ArmSkuName           string  `json:"armSkuName"`
}

// offerDocument represents the structure of a bulk price-offer document.
// It contains metadata, the products catalog, and pricing terms.
type offerDocument struct {
	FormatVersion   string                                `json:"formatVersion"`
	OfferCode       string                                `json:"offerCode"`
	Version         string                                `json:"version"`
	PublicationDate string                                `json:"publicationDate"`
	Products        map[string]product                    `json:"products"`
	Terms           map[string]map[string]map[string]term `json:"terms"` // Type -> SKU -> OfferTermCode -> Term
}

// priceListEntry is one element of a GetProducts PriceList: a single product
// with its own terms.
type priceListEntry struct {
	Product product                    `json:"product"`
	Terms   map[string]map[string]term `json:"terms"` // Type -> OfferTermCode -> Term
}

// product is a product entry: SKU, family classification and attributes.
type product struct {
	Sku           string            `json:"sku"`
	ProductFamily string            `json:"productFamily"`
	Attributes    map[string]string `json:"attributes"`
}

// term is a pricing term offer (OnDemand, Reserved).
type term struct {
	OfferTermCode   string                    `json:"offerTermCode"`
	Sku             string                    `json:"sku"`
	EffectiveDate   string                    `json:"effectiveDate"`
	PriceDimensions map[string]priceDimension `json:"priceDimensions"`
}

// priceDimension is a rate within a term.
type priceDimension struct {
	RateCode     string            `json:"rateCode"`
	Description  string            `json:"description"`
	BeginRange   string            `json:"beginRange"`
	EndRange     string            `json:"endRange"`
	Unit         string            `json:"unit"`
	PricePerUnit map[string]string `json:"pricePerUnit"` // Currency -> Amount (string)
}
