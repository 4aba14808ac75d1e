package pricing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	catalogRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "archcost",
		Subsystem: "catalog",
		Name:      "requests_total",
		Help:      "Upstream price catalog requests by provider and outcome.",
	}, []string{"provider", "outcome"})

	catalogFetchSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "archcost",
		Subsystem: "catalog",
		Name:      "fetch_duration_seconds",
		Help:      "Time spent fetching one catalog query from upstream, all pages included.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"provider"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "archcost",
		Subsystem: "catalog",
		Name:      "cache_lookups_total",
		Help:      "Price cache lookups by result (hit or miss).",
	}, []string{"result"})
)

// Request outcomes recorded in catalogRequests.
const (
	outcomeOK        = "ok"
	outcomeStatus    = "status"
	outcomeTransport = "transport"
	outcomeDecode    = "decode"
	outcomeTruncated = "truncated"
)
