package resolver

import (
	"regexp"
	"strings"

	"github.com/rshade/archcost/internal/pricing"
	"github.com/rshade/archcost/internal/resource"
)

type planKey struct {
	provider resource.Provider
	service  resource.ServiceKind
}

// lookup is one catalog search: a service, fixed server-side filters, the field
// that receives SKU variants and a client-side record predicate.
type lookup struct {
	service     string
	filters     map[string]string
	skuField    string
	match       func(r pricing.Record, sku string) bool
	computeOnly bool
}

func (lk lookup) filtersFor(sku string) map[string]string {
	out := make(map[string]string, len(lk.filters)+1)
	for k, v := range lk.filters {
		out[k] = v
	}
	if lk.skuField != "" && sku != "" {
		out[lk.skuField] = sku
	}
	return out
}

type componentLookup struct {
	attr     resource.Attribute
	optional bool
	lookup
}

// plan describes how one (provider, service kind) pair is priced.
type plan struct {
	defaultSKU  string
	skuVariants func(sku string) []string
	base        *lookup
	components  []componentLookup
}

// builtinPlans is read-only after init and shared by every Resolver.
var builtinPlans = defaultPlans()

func defaultPlans() map[planKey]plan {
	plans := map[planKey]plan{}
	for k, p := range azurePlans() {
		plans[planKey{resource.ProviderAzure, k}] = p
	}
	for k, p := range awsPlans() {
		plans[planKey{resource.ProviderAWS, k}] = p
	}
	return plans
}

func azurePlans() map[resource.ServiceKind]plan {
	return map[resource.ServiceKind]plan{
		resource.VM: {
			defaultSKU:  "Standard_B2s",
			skuVariants: azureVMSKUs,
			base: &lookup{
				service:  "Virtual Machines",
				skuField: "armSkuName",
				match: all(
					meterExcludes("spot", "low priority"),
					productExcludes("windows"),
				),
			},
		},
		resource.AppService: {
			defaultSKU:  "P1v3",
			skuVariants: versionSpellings,
			base: &lookup{
				service:  "Azure App Service",
				skuField: "skuName",
			},
		},
		resource.ManagedSQL: {
			defaultSKU:  "S0",
			skuVariants: azureSQLSKUs,
			base: &lookup{
				service:     "SQL Database",
				skuField:    "skuName",
				computeOnly: true,
			},
			components: []componentLookup{{
				attr:     resource.AttrSizeGB,
				optional: true,
				lookup: lookup{
					service: "SQL Database",
					filters: map[string]string{"meterName": "Data Stored"},
				},
			}},
		},
		resource.ObjectStorage: {
			defaultSKU:  "Hot LRS",
			skuVariants: azureStorageSKUs,
			components: []componentLookup{{
				attr: resource.AttrSizeGB,
				lookup: lookup{
					service:  "Storage",
					skuField: "skuName",
					match: all(
						meterContains("data stored"),
						productContains("blob"),
					),
				},
			}},
		},
		resource.LoadBalancer: {
			defaultSKU: "Standard",
			components: []componentLookup{
				{
					attr: resource.AttrRuleCount,
					lookup: lookup{
						service:  "Load Balancer",
						skuField: "skuName",
						match:    meterContains("rule"),
					},
				},
				{
					attr: resource.AttrDataProcessedGB,
					lookup: lookup{
						service:  "Load Balancer",
						skuField: "skuName",
						match:    meterContains("data processed"),
					},
				},
			},
		},
		resource.ApplicationGateway: {
			defaultSKU:  "Standard_v2",
			skuVariants: versionSpellings,
			base: &lookup{
				service:  "Application Gateway",
				skuField: "skuName",
				match:    meterContains("fixed cost"),
			},
			components: []componentLookup{{
				attr: resource.AttrCapacityUnits,
				lookup: lookup{
					service:  "Application Gateway",
					skuField: "skuName",
					match:    meterContains("capacity unit"),
				},
			}},
		},
		resource.APIGateway: {
			defaultSKU:  "Developer",
			skuVariants: titleSpellings,
			base: &lookup{
				service:  "API Management",
				skuField: "skuName",
				match:    meterContains("unit"),
			},
		},
		resource.Cache: {
			defaultSKU:  "C1",
			skuVariants: lastWordSpellings,
			base: &lookup{
				service:  "Redis Cache",
				skuField: "skuName",
				match:    productHasTier,
			},
		},
		resource.ContainerOrchestrator: {
			defaultSKU: "Standard",
			base: &lookup{
				service:  "Azure Kubernetes Service",
				skuField: "skuName",
			},
		},
		resource.LogIngestion: {
			defaultSKU: "Pay-as-you-go",
			components: []componentLookup{{
				attr: resource.AttrDataProcessedGB,
				lookup: lookup{
					service: "Log Analytics",
					match: all(
						meterContains("data ingestion"),
						meterExcludes("basic", "auxiliary"),
					),
				},
			}},
		},
	}
}

func awsPlans() map[resource.ServiceKind]plan {
	elb := plan{
		defaultSKU:  "application",
		skuVariants: elbFamilies,
		base: &lookup{
			service:  "AWSELB",
			skuField: "productFamily",
			match:    attrContains("usagetype", "LoadBalancerUsage"),
		},
		components: []componentLookup{
			{
				attr: resource.AttrCapacityUnits,
				lookup: lookup{
					service:  "AWSELB",
					skuField: "productFamily",
					match:    attrContains("usagetype", "LCUUsage"),
				},
			},
			{
				attr:     resource.AttrDataProcessedGB,
				optional: true,
				lookup: lookup{
					service:  "AWSELB",
					skuField: "productFamily",
					match:    attrContains("usagetype", "DataProcessing-Bytes"),
				},
			},
		},
	}

	return map[resource.ServiceKind]plan{
		resource.VM: {
			defaultSKU: "t3.micro",
			base: &lookup{
				service:  "AmazonEC2",
				skuField: "instanceType",
				filters: map[string]string{
					"operatingSystem": "Linux",
					"tenancy":         "Shared",
					"capacitystatus":  "Used",
					"preInstalledSw":  "NA",
				},
			},
		},
		resource.ManagedSQL: {
			defaultSKU:  "db.t3.medium",
			skuVariants: withPrefix("db."),
			base: &lookup{
				service:  "AmazonRDS",
				skuField: "instanceType",
				filters: map[string]string{
					"productFamily":    "Database Instance",
					"deploymentOption": "Single-AZ",
				},
				computeOnly: true,
			},
			components: []componentLookup{{
				attr:     resource.AttrSizeGB,
				optional: true,
				lookup: lookup{
					service: "AmazonRDS",
					filters: map[string]string{
						"productFamily":    "Database Storage",
						"deploymentOption": "Single-AZ",
						"volumeType":       "General Purpose",
					},
				},
			}},
		},
		resource.ObjectStorage: {
			defaultSKU:  "Standard",
			skuVariants: s3StorageClasses,
			components: []componentLookup{{
				attr: resource.AttrSizeGB,
				lookup: lookup{
					service:  "AmazonS3",
					skuField: "storageClass",
					filters:  map[string]string{"productFamily": "Storage"},
				},
			}},
		},
		resource.LoadBalancer:       elb,
		resource.ApplicationGateway: elb,
		resource.Cache: {
			defaultSKU:  "cache.t3.micro",
			skuVariants: withPrefix("cache."),
			base: &lookup{
				service:  "AmazonElastiCache",
				skuField: "instanceType",
				filters: map[string]string{
					"productFamily": "Cache Instance",
					"cacheEngine":   "Redis",
				},
			},
		},
		resource.ContainerOrchestrator: {
			defaultSKU: "standard",
			base: &lookup{
				service: "AmazonEKS",
				match: all(
					attrContains("usagetype", "perCluster"),
					attrExcludes("usagetype", "extendedSupport"),
					attrExcludes("operation", "ExtendedSupport"),
				),
			},
		},
		resource.LogIngestion: {
			defaultSKU: "standard",
			components: []componentLookup{{
				attr: resource.AttrDataProcessedGB,
				lookup: lookup{
					service: "AmazonCloudWatch",
					match:   attrContains("usagetype", "DataProcessing-Bytes"),
				},
			}},
		},
	}
}

// Record predicates.

func all(preds ...func(pricing.Record, string) bool) func(pricing.Record, string) bool {
	return func(r pricing.Record, sku string) bool {
		for _, p := range preds {
			if !p(r, sku) {
				return false
			}
		}
		return true
	}
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func meterContains(sub string) func(pricing.Record, string) bool {
	return func(r pricing.Record, _ string) bool { return containsFold(r.MeterName, sub) }
}

func meterExcludes(subs ...string) func(pricing.Record, string) bool {
	return func(r pricing.Record, _ string) bool {
		for _, s := range subs {
			if containsFold(r.MeterName, s) {
				return false
			}
		}
		return true
	}
}

func productContains(sub string) func(pricing.Record, string) bool {
	return func(r pricing.Record, _ string) bool { return containsFold(r.ProductName, sub) }
}

func productExcludes(sub string) func(pricing.Record, string) bool {
	return func(r pricing.Record, _ string) bool { return !containsFold(r.ProductName, sub) }
}

func attrContains(key, sub string) func(pricing.Record, string) bool {
	return func(r pricing.Record, _ string) bool { return containsFold(r.Attr(key), sub) }
}

func attrExcludes(key, sub string) func(pricing.Record, string) bool {
	return func(r pricing.Record, _ string) bool { return !containsFold(r.Attr(key), sub) }
}

// productHasTier requires the product name to carry the tier word of a two-word
// SKU such as "Standard C1".
func productHasTier(r pricing.Record, sku string) bool {
	fields := strings.Fields(sku)
	if len(fields) < 2 {
		return true
	}
	return containsFold(r.ProductName, fields[0])
}

// SKU spelling variants.

func dedupe(in ...string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func azureVMSKUs(sku string) []string {
	s := strings.ReplaceAll(strings.TrimSpace(sku), " ", "_")
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "standard_") && !strings.HasPrefix(lower, "basic_") {
		return dedupe("Standard_"+s, s)
	}
	return dedupe(s)
}

var (
	versionSuffixRe = regexp.MustCompile(`(?i)^(.*?\S)[ _]?(v\d+)$`)
	vcoreSKURe      = regexp.MustCompile(`(?i)^(?:gp|bc|hs)_(?:gen\d+_)?(\d+)$`)
)

// versionSpellings yields "P1v3"/"P1 v3" and "Standard_v2"/"Standard v2" pairs.
func versionSpellings(sku string) []string {
	m := versionSuffixRe.FindStringSubmatch(strings.TrimSpace(sku))
	if m == nil {
		return dedupe(sku, strings.ReplaceAll(sku, "_", " "))
	}
	head, ver := m[1], m[2]
	joined := head + "_" + ver
	if last := head[len(head)-1]; last >= '0' && last <= '9' {
		joined = head + ver
	}
	return dedupe(sku, head+" "+ver, joined)
}

func azureSQLSKUs(sku string) []string {
	if m := vcoreSKURe.FindStringSubmatch(strings.TrimSpace(sku)); m != nil {
		return dedupe(sku, m[1]+" vCore")
	}
	return dedupe(sku, strings.ToUpper(sku))
}

func azureStorageSKUs(sku string) []string {
	s := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(sku), "_", " "))
	s = strings.TrimPrefix(s, "standard ")
	switch s {
	case "lrs", "hot", "":
		return []string{"Hot LRS"}
	case "grs":
		return []string{"Hot GRS"}
	case "zrs":
		return []string{"Hot ZRS"}
	}
	return dedupe(sku, titleRegion(s))
}

func titleSpellings(sku string) []string {
	s := strings.TrimSpace(sku)
	if s == "" {
		return nil
	}
	return dedupe(s, strings.ToUpper(s[:1])+strings.ToLower(s[1:]))
}

func lastWordSpellings(sku string) []string {
	fields := strings.Fields(sku)
	if len(fields) == 0 {
		return nil
	}
	return dedupe(fields[len(fields)-1], sku)
}

func withPrefix(prefix string) func(string) []string {
	return func(sku string) []string {
		s := strings.TrimSpace(sku)
		if strings.HasPrefix(strings.ToLower(s), prefix) {
			return dedupe(s)
		}
		return dedupe(prefix+s, s)
	}
}

func s3StorageClasses(sku string) []string {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(sku), "_", " ")) {
	case "", "standard", "general purpose":
		return []string{"General Purpose"}
	case "standard ia", "infrequent access":
		return []string{"Infrequent Access"}
	case "onezone ia", "one zone ia", "one zone - infrequent access":
		return []string{"One Zone - Infrequent Access"}
	case "intelligent tiering":
		return []string{"Intelligent-Tiering"}
	case "glacier":
		return []string{"Archive"}
	}
	return dedupe(sku)
}

func elbFamilies(sku string) []string {
	switch strings.ToLower(strings.TrimSpace(sku)) {
	case "network", "nlb":
		return []string{"Load Balancer-Network"}
	case "classic", "clb", "elb":
		return []string{"Load Balancer"}
	case "gateway", "gwlb":
		return []string{"Load Balancer-Gateway"}
	}
	return []string{"Load Balancer-Application"}
}
