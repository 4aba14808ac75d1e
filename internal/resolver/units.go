package resolver

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rshade/archcost/internal/pricing"
)

type unitClass int

const (
	unitOther unitClass = iota
	unitHourly
	unitDaily
)

var (
	unitCountRe  = regexp.MustCompile(`(?i)^\s*(\d+(?:\.\d+)?)\s*(k|m)?\b`)
	hourlyUnitRe = regexp.MustCompile(`(?i)\b(hours?|hrs?)\b`)
	dailyUnitRe  = regexp.MustCompile(`(?i)\bdays?\b`)

	// Meter vocabulary for compute-only lookups.
	nonComputeMeterRe = regexp.MustCompile(`(?i)\b(storage|stored|backup|backups|ltr|pitr|retention|iops?|io|transfer|egress)\b`)
	computeMeterRe    = regexp.MustCompile(`(?i)\b(dtus?|vcores?|compute)\b`)
)

// classifyUnit reports the billing period of a unit of measure and how many
// units one quoted price covers (e.g. "100 Hours" covers 100).
func classifyUnit(unit string) (unitClass, float64) {
	count := 1.0
	if m := unitCountRe.FindStringSubmatch(unit); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
			count = v
		}
		switch strings.ToLower(m[2]) {
		case "k":
			count *= 1000
		case "m":
			count *= 1000000
		}
	}
	switch {
	case hourlyUnitRe.MatchString(unit):
		return unitHourly, count
	case dailyUnitRe.MatchString(unit):
		return unitDaily, count
	}
	return unitOther, 1
}

// monthly converts a record's unit price to a monthly figure. Hourly meters are
// multiplied by hoursPerMonth and daily meters by hoursPerMonth/24; any other
// unit is taken as-is.
func monthly(r pricing.Record, hoursPerMonth float64) float64 {
	class, count := classifyUnit(r.UnitOfMeasure)
	switch class {
	case unitHourly:
		return r.UnitPrice / count * hoursPerMonth
	case unitDaily:
		return r.UnitPrice / count * hoursPerMonth / 24
	}
	return r.UnitPrice
}

// selectCheapest narrows the candidates and returns the one with the lowest monthly
// price.
//
// Zero-priced records are ignored, base-tier records win over higher tiers, and
// hourly meters win over flat ones when both exist. In compute-only mode storage,
// backup and IO meters are dropped and DTU/vCore/compute meters (or meters naming
// the SKU) are preferred.
func selectCheapest(cands []pricing.Record, computeOnly bool, sku string, hoursPerMonth float64) (pricing.Record, float64, bool) {
	cands = filterRecords(cands, func(r pricing.Record) bool { return r.UnitPrice > 0 })
	if len(cands) == 0 {
		return pricing.Record{}, 0, false
	}

	if base := filterRecords(cands, func(r pricing.Record) bool { return r.TierMinimumUnits == 0 }); len(base) > 0 {
		cands = base
	}

	if computeOnly {
		cands = filterRecords(cands, func(r pricing.Record) bool {
			return !nonComputeMeterRe.MatchString(r.MeterName)
		})
		if len(cands) == 0 {
			return pricing.Record{}, 0, false
		}
		token := strings.ToLower(strings.TrimSpace(sku))
		preferred := filterRecords(cands, func(r pricing.Record) bool {
			return computeMeterRe.MatchString(r.MeterName) ||
				(token != "" && strings.Contains(strings.ToLower(r.MeterName), token))
		})
		if len(preferred) > 0 {
			cands = preferred
		}
	}

	if hourly := filterRecords(cands, func(r pricing.Record) bool {
		class, _ := classifyUnit(r.UnitOfMeasure)
		return class == unitHourly
	}); len(hourly) > 0 {
		cands = hourly
	}

	// Order deterministically before taking the minimum; catalogs backed by maps
	// return records in no particular order.
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].MeterName != cands[j].MeterName {
			return cands[i].MeterName < cands[j].MeterName
		}
		return cands[i].SKUName < cands[j].SKUName
	})

	best, bestMonthly := pricing.Record{}, math.Inf(1)
	for _, r := range cands {
		if m := monthly(r, hoursPerMonth); m < bestMonthly {
			best, bestMonthly = r, m
		}
	}
	return best, bestMonthly, true
}

func filterRecords(in []pricing.Record, keep func(pricing.Record) bool) []pricing.Record {
	out := make([]pricing.Record, 0, len(in))
	for _, r := range in {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
