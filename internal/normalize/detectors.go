package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rshade/archcost/internal/resource"
)

// detector recognises one service kind in the lower-cased scan buffer.
type detector struct {
	name    string
	service resource.ServiceKind
	pattern *regexp.Regexp
	// suppressedBy names a detector that, when it fires, silences this one.
	suppressedBy string
	// build turns the pattern hits into items. tmpl carries provider, service,
	// sku, region and a quantity of 1.
	build func(buf string, hits [][]int, tmpl resource.Item) []resource.Item
}

var (
	frontTierRe = regexp.MustCompile(`\bfront[- ]?end\b`)
	backTierRe  = regexp.MustCompile(`\b(back[- ]?end|api tier)\b`)
	sizeRe      = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\s*(gb|tb)\b`)
)

// detectors is evaluated in order. Only the gateway / load balancer pair depends
// on it: a load balancer is never produced when an application gateway was named.
var detectors = []detector{
	{
		name:    "app_service",
		service: resource.AppService,
		pattern: regexp.MustCompile(`\b(app services?|web ?apps?)\b`),
		build:   tiered,
	},
	{
		name:    "managed_sql",
		service: resource.ManagedSQL,
		pattern: regexp.MustCompile(`\b(sql databases?|azure sql|mssql|sql server|postgres(?:ql)?|mysql)\b`),
		build:   sizedAfter(resource.AttrSizeGB),
	},
	{
		name:    "vm",
		service: resource.VM,
		pattern: regexp.MustCompile(`\b(vms?|virtual machines?)\b`),
		build:   counted,
	},
	{
		name:    "application_gateway",
		service: resource.ApplicationGateway,
		pattern: regexp.MustCompile(`\b(application|app) gateways?\b`),
		build:   single,
	},
	{
		name:         "load_balancer",
		service:      resource.LoadBalancer,
		pattern:      regexp.MustCompile(`\bload[- ]?balanc(er|ers|ing)\b`),
		suppressedBy: "application_gateway",
		build:        single,
	},
	{
		name:    "object_storage",
		service: resource.ObjectStorage,
		pattern: regexp.MustCompile(`\b(blob storage|storage accounts?|object storage|s3 buckets?|s3|cloud storage)\b`),
		build:   sizedAfter(resource.AttrSizeGB),
	},
	{
		name:    "cache",
		service: resource.Cache,
		pattern: regexp.MustCompile(`\b(redis|elasticache|memcached|memorystore)\b`),
		build:   single,
	},
	{
		name:    "container_orchestrator",
		service: resource.ContainerOrchestrator,
		pattern: regexp.MustCompile(`\b(aks|eks|gke|kubernetes)\b`),
		build:   single,
	},
	{
		name:    "api_gateway",
		service: resource.APIGateway,
		pattern: regexp.MustCompile(`\b(api management|apim|api gateway)\b`),
		build:   single,
	},
	{
		name:    "log_ingestion",
		service: resource.LogIngestion,
		pattern: regexp.MustCompile(`\b(log analytics|log ingestion|cloudwatch logs?|cloud logging)\b`),
		build:   sizedAfter(resource.AttrDataProcessedGB),
	},
}

func single(_ string, _ [][]int, tmpl resource.Item) []resource.Item {
	return []resource.Item{tmpl}
}

// tiered doubles the quantity when both a front and a back tier are described.
func tiered(buf string, _ [][]int, tmpl resource.Item) []resource.Item {
	if frontTierRe.MatchString(buf) && backTierRe.MatchString(buf) {
		tmpl.Quantity = 2
	}
	return []resource.Item{tmpl}
}

func counted(_ string, hits [][]int, tmpl resource.Item) []resource.Item {
	tmpl.Quantity = len(hits)
	return []resource.Item{tmpl}
}

// sizedAfter sets attr from the first "N GB" (or TB) following the first keyword
// hit.
func sizedAfter(attr resource.Attribute) func(string, [][]int, resource.Item) []resource.Item {
	return func(buf string, hits [][]int, tmpl resource.Item) []resource.Item {
		if gb, ok := firstSize(buf[hits[0][1]:]); ok {
			setAttr(&tmpl, attr, gb)
		}
		return []resource.Item{tmpl}
	}
}

func firstSize(s string) (float64, bool) {
	m := sizeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if m[2] == "tb" {
		v *= 1024
	}
	return v, true
}

func setAttr(it *resource.Item, attr resource.Attribute, v float64) {
	switch attr {
	case resource.AttrSizeGB:
		it.SizeGB = resource.Float(v)
	case resource.AttrRuleCount:
		it.RuleCount = resource.Float(v)
	case resource.AttrDataProcessedGB:
		it.DataProcessedGB = resource.Float(v)
	case resource.AttrCapacityUnits:
		it.CapacityUnits = resource.Float(v)
	}
}

// detect runs the detector table over buf. fired reports the detectors whose
// pattern matched, including suppressed ones.
func detect(buf string, template func(resource.ServiceKind) resource.Item) (items []resource.Item, fired map[string]bool) {
	buf = strings.ToLower(buf)
	fired = make(map[string]bool, len(detectors))
	for _, d := range detectors {
		hits := d.pattern.FindAllStringIndex(buf, -1)
		if len(hits) == 0 {
			continue
		}
		fired[d.name] = true
		if d.suppressedBy != "" && fired[d.suppressedBy] {
			continue
		}
		items = append(items, d.build(buf, hits, template(d.service))...)
	}
	return items, fired
}

// suppressed reports whether an item of kind k must be withheld given the
// detectors that fired.
func suppressed(k resource.ServiceKind, fired map[string]bool) bool {
	for _, d := range detectors {
		if d.service == k && d.suppressedBy != "" && fired[d.suppressedBy] {
			return true
		}
	}
	return false
}
