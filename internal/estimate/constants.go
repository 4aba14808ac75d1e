// Package estimate prices canonical resource items and totals them into a monthly
// cost estimate.
package estimate

// PriceNotFoundTemplate is the note attached to a line whose price could not be
// resolved.
//
// Example: fmt.Sprintf(PriceNotFoundTemplate, "vm", "Standard_B2s", "eastus")
// Result: "vm \"Standard_B2s\" not found in pricing data for eastus, defaulted to 0"
const PriceNotFoundTemplate = "%s %q not found in pricing data for %s, defaulted to 0"

// CatalogUnavailableTemplate is the note attached when the catalog could not be
// reached while resolving a line.
//
// Example: fmt.Sprintf(CatalogUnavailableTemplate, "azure", "context deadline exceeded")
// Result: "azure pricing catalog unavailable: context deadline exceeded"
const CatalogUnavailableTemplate = "%s pricing catalog unavailable: %s"

// DefaultAttributeTemplate records that a configured default stood in for a missing
// item attribute.
//
// Example: fmt.Sprintf(DefaultAttributeTemplate, "capacityUnits", 1.0)
// Result: "capacityUnits not specified, assumed 1"
const DefaultAttributeTemplate = "%s not specified, assumed %g"

// ComponentNotFoundTemplate records a price component left out of a line.
const ComponentNotFoundTemplate = "%s rate not found in pricing data, component omitted"

// DutyHoursTemplate records duty-cycle scaling.
const DutyHoursTemplate = "scaled to %g of %g hours/month"

// UnresolvedSummaryTemplate is the estimate-level note counting unpriced lines.
const UnresolvedSummaryTemplate = "%d of %d items could not be priced"
