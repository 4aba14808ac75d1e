package resolver

import (
	"sort"
	"strings"
	"unicode"

	"github.com/rshade/archcost/internal/resource"
)

// RegionVariant is one spelling of a region tried against a catalog.
type RegionVariant struct {
	Name       string
	ByLocation bool
}

// azureLocations maps region codes to the display names the retail catalog uses
// in its location field.
var azureLocations = map[string]string{
	"eastus":             "US East",
	"eastus2":            "US East 2",
	"westus":             "US West",
	"westus2":            "US West 2",
	"westus3":            "US West 3",
	"centralus":          "US Central",
	"northcentralus":     "US North Central",
	"southcentralus":     "US South Central",
	"westcentralus":      "US West Central",
	"canadacentral":      "CA Central",
	"canadaeast":         "CA East",
	"brazilsouth":        "BR South",
	"northeurope":        "EU North",
	"westeurope":         "EU West",
	"uksouth":            "UK South",
	"ukwest":             "UK West",
	"francecentral":      "FR Central",
	"germanywestcentral": "DE West Central",
	"swedencentral":      "SE Central",
	"switzerlandnorth":   "CH North",
	"norwayeast":         "NO East",
	"eastasia":           "AP East",
	"southeastasia":      "AP Southeast",
	"japaneast":          "JA East",
	"japanwest":          "JA West",
	"koreacentral":       "KR Central",
	"australiaeast":      "AU East",
	"australiasoutheast": "AU Southeast",
	"centralindia":       "IN Central",
	"southindia":         "IN South",
	"uaenorth":           "AE North",
	"southafricanorth":   "ZA North",
}

// awsLocations maps region codes to price-list location names.
var awsLocations = map[string]string{
	"us-east-1":      "US East (N. Virginia)",
	"us-east-2":      "US East (Ohio)",
	"us-west-1":      "US West (N. California)",
	"us-west-2":      "US West (Oregon)",
	"ca-central-1":   "Canada (Central)",
	"sa-east-1":      "South America (Sao Paulo)",
	"eu-west-1":      "EU (Ireland)",
	"eu-west-2":      "EU (London)",
	"eu-west-3":      "EU (Paris)",
	"eu-central-1":   "EU (Frankfurt)",
	"eu-north-1":     "EU (Stockholm)",
	"ap-southeast-1": "Asia Pacific (Singapore)",
	"ap-southeast-2": "Asia Pacific (Sydney)",
	"ap-northeast-1": "Asia Pacific (Tokyo)",
	"ap-northeast-2": "Asia Pacific (Seoul)",
	"ap-south-1":     "Asia Pacific (Mumbai)",
	"us-gov-west-1":  "AWS GovCloud (US-West)",
	"us-gov-east-1":  "AWS GovCloud (US-East)",
}

// regionWords are the vocabulary used to split run-together region codes such as
// "southcentralus". Longer words are tried first.
var regionWords = func() []string {
	w := []string{
		"north", "south", "east", "west", "central", "southeast", "northeast",
		"us", "uk", "uae", "europe", "asia", "pacific", "australia", "brazil",
		"canada", "france", "germany", "india", "japan", "korea", "norway",
		"sweden", "switzerland", "africa", "mexico", "poland", "italy", "qatar",
		"israel", "spain",
	}
	sort.Slice(w, func(i, j int) bool { return len(w[i]) > len(w[j]) })
	return w
}()

var upperWords = map[string]bool{"us": true, "uk": true, "uae": true}

// Variants returns the ordered region spellings to try for provider. The exact
// region code comes first, then the static display-name table, then generic
// transforms of the code.
func Variants(p resource.Provider, region string) []RegionVariant {
	region = strings.TrimSpace(region)
	if region == "" {
		return []RegionVariant{{}}
	}

	var out []RegionVariant
	seen := map[string]bool{}
	add := func(name string, byLocation bool) {
		key := strings.ToLower(name)
		if byLocation {
			key = "loc:" + key
		}
		if name == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, RegionVariant{Name: name, ByLocation: byLocation})
	}

	switch p {
	case resource.ProviderAWS:
		// A known code and its location name select the same regional
		// document, so the location spelling is only tried for unknown regions.
		code := CanonicalRegion(p, region)
		add(code, false)
		if _, ok := awsLocations[code]; !ok && strings.ContainsAny(region, " (") {
			add(region, true)
		}
	default:
		code := strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(region, "-", " ")), ""))
		add(code, false)
		if loc, ok := azureLocations[code]; ok {
			add(loc, true)
		}
		if strings.ContainsAny(region, "- ") {
			add(titleRegion(strings.ReplaceAll(strings.ToLower(region), "-", " ")), true)
		}
		if words, ok := splitRegionCode(code); ok {
			add(titleRegion(strings.Join(words, " ")), true)
		}
	}
	return out
}

// CanonicalRegion returns the region code for region. Display names from the
// location tables map back to their code; other Azure spellings such as
// "East US 2" or "east-us-2" collapse to "eastus2". GCP regions are returned
// trimmed.
func CanonicalRegion(p resource.Provider, region string) string {
	region = strings.TrimSpace(region)
	switch p {
	case resource.ProviderAWS:
		for code, loc := range awsLocations {
			if strings.EqualFold(loc, region) {
				return code
			}
		}
		return strings.ToLower(region)
	case resource.ProviderAzure:
		for code, loc := range azureLocations {
			if strings.EqualFold(loc, region) {
				return code
			}
		}
		return strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(region, "-", " ")), ""))
	default:
		return region
	}
}

// splitRegionCode splits a run-together code into known words and digit runs.
func splitRegionCode(code string) ([]string, bool) {
	var words []string
	rest := code
	for rest != "" {
		if unicode.IsDigit(rune(rest[0])) {
			i := 0
			for i < len(rest) && unicode.IsDigit(rune(rest[i])) {
				i++
			}
			words = append(words, rest[:i])
			rest = rest[i:]
			continue
		}
		matched := false
		for _, w := range regionWords {
			if strings.HasPrefix(rest, w) {
				words = append(words, w)
				rest = rest[len(w):]
				matched = true
				break
			}
		}
		if !matched {
			return nil, false
		}
	}
	return words, len(words) > 1
}

func titleRegion(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		if upperWords[f] {
			fields[i] = strings.ToUpper(f)
			continue
		}
		fields[i] = strings.ToUpper(f[:1]) + f[1:]
	}
	return strings.Join(fields, " ")
}
