package normalize

import (
	"fmt"
	"math"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/rshade/archcost/internal/resolver"
	"github.com/rshade/archcost/internal/resource"
)

// resourceType maps a Terraform resource type to a billable item.
type resourceType struct {
	provider resource.Provider
	service  resource.ServiceKind
	// skuAttrs are tried in order; "block.attr" reads a nested block.
	skuAttrs  []string
	sizeAttrs []string
	// capacityAttr, when set, fills CapacityUnits.
	capacityAttr string
	sku          func(body *hclsyntax.Body) string
}

var resourceTypes = map[string]resourceType{
	"azurerm_linux_virtual_machine":   {provider: resource.ProviderAzure, service: resource.VM, skuAttrs: []string{"size"}},
	"azurerm_windows_virtual_machine": {provider: resource.ProviderAzure, service: resource.VM, skuAttrs: []string{"size"}},
	"azurerm_virtual_machine":         {provider: resource.ProviderAzure, service: resource.VM, skuAttrs: []string{"vm_size"}},
	"azurerm_service_plan":            {provider: resource.ProviderAzure, service: resource.AppService, skuAttrs: []string{"sku_name"}},
	"azurerm_app_service_plan":        {provider: resource.ProviderAzure, service: resource.AppService, skuAttrs: []string{"sku.size"}},
	"azurerm_mssql_database":          {provider: resource.ProviderAzure, service: resource.ManagedSQL, skuAttrs: []string{"sku_name"}, sizeAttrs: []string{"max_size_gb"}},
	"azurerm_storage_account":         {provider: resource.ProviderAzure, service: resource.ObjectStorage, skuAttrs: []string{"account_replication_type"}},
	"azurerm_lb":                      {provider: resource.ProviderAzure, service: resource.LoadBalancer, skuAttrs: []string{"sku"}},
	"azurerm_application_gateway":     {provider: resource.ProviderAzure, service: resource.ApplicationGateway, skuAttrs: []string{"sku.tier"}, capacityAttr: "sku.capacity"},
	"azurerm_api_management":          {provider: resource.ProviderAzure, service: resource.APIGateway, sku: apimSKU},
	"azurerm_redis_cache":             {provider: resource.ProviderAzure, service: resource.Cache, sku: redisSKU},
	"azurerm_kubernetes_cluster":      {provider: resource.ProviderAzure, service: resource.ContainerOrchestrator, skuAttrs: []string{"sku_tier"}},
	"azurerm_log_analytics_workspace": {provider: resource.ProviderAzure, service: resource.LogIngestion},

	"aws_instance":                      {provider: resource.ProviderAWS, service: resource.VM, skuAttrs: []string{"instance_type"}},
	"aws_db_instance":                   {provider: resource.ProviderAWS, service: resource.ManagedSQL, skuAttrs: []string{"instance_class"}, sizeAttrs: []string{"allocated_storage"}},
	"aws_s3_bucket":                     {provider: resource.ProviderAWS, service: resource.ObjectStorage},
	"aws_lb":                            {provider: resource.ProviderAWS, service: resource.LoadBalancer, skuAttrs: []string{"load_balancer_type"}},
	"aws_alb":                           {provider: resource.ProviderAWS, service: resource.LoadBalancer, skuAttrs: []string{"load_balancer_type"}},
	"aws_elasticache_cluster":           {provider: resource.ProviderAWS, service: resource.Cache, skuAttrs: []string{"node_type"}},
	"aws_elasticache_replication_group": {provider: resource.ProviderAWS, service: resource.Cache, skuAttrs: []string{"node_type"}},
	"aws_eks_cluster":                   {provider: resource.ProviderAWS, service: resource.ContainerOrchestrator},
	"aws_cloudwatch_log_group":          {provider: resource.ProviderAWS, service: resource.LogIngestion},
	"aws_api_gateway_rest_api":          {provider: resource.ProviderAWS, service: resource.APIGateway},
	"aws_apigatewayv2_api":              {provider: resource.ProviderAWS, service: resource.APIGateway},

	"google_compute_instance":        {provider: resource.ProviderGCP, service: resource.VM, skuAttrs: []string{"machine_type"}},
	"google_sql_database_instance":   {provider: resource.ProviderGCP, service: resource.ManagedSQL, skuAttrs: []string{"settings.tier"}, sizeAttrs: []string{"settings.disk_size"}},
	"google_storage_bucket":          {provider: resource.ProviderGCP, service: resource.ObjectStorage, skuAttrs: []string{"storage_class"}},
	"google_container_cluster":       {provider: resource.ProviderGCP, service: resource.ContainerOrchestrator},
	"google_redis_instance":          {provider: resource.ProviderGCP, service: resource.Cache, skuAttrs: []string{"tier"}, sizeAttrs: []string{"memory_size_gb"}},
	"google_compute_forwarding_rule": {provider: resource.ProviderGCP, service: resource.LoadBalancer},
}

// scanIaC extracts items from Terraform source. The returned error reports a
// parse failure; a nil error with no items means the source had no known
// resources.
func scanIaC(src string, template func(resource.Provider, resource.ServiceKind) resource.Item) ([]resource.Item, error) {
	f, diags := hclsyntax.ParseConfig([]byte(src), "main.tf", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse iac: %w", diags)
	}
	body, ok := f.Body.(*hclsyntax.Body)
	if !ok {
		return nil, nil
	}

	var out []resource.Item
	for _, block := range body.Blocks {
		if block.Type != "resource" || len(block.Labels) != 2 {
			continue
		}
		rt, known := resourceTypes[block.Labels[0]]
		if !known {
			continue
		}
		it := template(rt.provider, rt.service)
		if sku := rt.skuOf(block.Body); sku != "" {
			it.SKU = sku
		}
		if region := regionOf(block.Body); region != "" {
			it.Region = resolver.CanonicalRegion(rt.provider, region)
		}
		for _, name := range rt.sizeAttrs {
			if v, ok := numberAttr(block.Body, name); ok {
				it.SizeGB = resource.Float(v)
				break
			}
		}
		if rt.capacityAttr != "" {
			if v, ok := numberAttr(block.Body, rt.capacityAttr); ok {
				it.CapacityUnits = resource.Float(v)
			}
		}
		if n, ok := numberAttr(block.Body, "count"); ok && n >= 1 {
			it.Quantity = int(n)
		}
		out = append(out, it)
	}
	return out, nil
}

func (rt resourceType) skuOf(body *hclsyntax.Body) string {
	if rt.sku != nil {
		return rt.sku(body)
	}
	for _, name := range rt.skuAttrs {
		if s, ok := stringAttr(body, name); ok && s != "" {
			return s
		}
	}
	return ""
}

// regionOf reads a literal location. Zones are trimmed to their region.
func regionOf(body *hclsyntax.Body) string {
	for _, name := range []string{"location", "region"} {
		if s, ok := stringAttr(body, name); ok && s != "" {
			return s
		}
	}
	if zone, ok := stringAttr(body, "zone"); ok {
		if i := strings.LastIndex(zone, "-"); i > 0 {
			return zone[:i]
		}
	}
	return ""
}

// apimSKU drops the unit count from names such as "Developer_1".
func apimSKU(body *hclsyntax.Body) string {
	s, _ := stringAttr(body, "sku_name")
	if i := strings.IndexByte(s, '_'); i > 0 {
		return s[:i]
	}
	return s
}

// redisSKU composes family and capacity ("C" + 1 = "C1").
func redisSKU(body *hclsyntax.Body) string {
	family, ok := stringAttr(body, "family")
	if !ok {
		return ""
	}
	capacity, ok := numberAttr(body, "capacity")
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s%d", strings.ToUpper(family), int(capacity))
}

// attrValue evaluates a literal attribute. Expressions that reference variables or
// other resources do not evaluate without a context and are reported missing.
func attrValue(body *hclsyntax.Body, path string) (cty.Value, bool) {
	parts := strings.Split(path, ".")
	for _, blockType := range parts[:len(parts)-1] {
		var next *hclsyntax.Body
		for _, b := range body.Blocks {
			if b.Type == blockType {
				next = b.Body
				break
			}
		}
		if next == nil {
			return cty.NilVal, false
		}
		body = next
	}
	attr, ok := body.Attributes[parts[len(parts)-1]]
	if !ok {
		return cty.NilVal, false
	}
	v, diags := attr.Expr.Value(nil)
	if diags.HasErrors() || !v.IsKnown() || v.IsNull() {
		return cty.NilVal, false
	}
	return v, true
}

func stringAttr(body *hclsyntax.Body, path string) (string, bool) {
	v, ok := attrValue(body, path)
	if !ok || v.Type() != cty.String {
		return "", false
	}
	return strings.TrimSpace(v.AsString()), true
}

func numberAttr(body *hclsyntax.Body, path string) (float64, bool) {
	v, ok := attrValue(body, path)
	if !ok || v.Type() != cty.Number {
		return 0, false
	}
	f, _ := v.AsBigFloat().Float64()
	if f < 0 || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
