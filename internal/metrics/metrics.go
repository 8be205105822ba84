package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "magnetlab"
)

var (
	subscribeDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

	// Lead Sync Metrics
	LeadSyncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lead_sync_runs_total",
		Help:      "Count of lead sync fan-outs by outcome.",
	}, []string{"outcome"})

	SubscribeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "subscribe_total",
		Help:      "Count of provider subscribe attempts.",
	}, []string{"provider", "outcome"})

	SubscribeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "subscribe_duration_seconds",
		Help:      "Time taken for one provider subscribe attempt.",
		Buckets:   subscribeDurationBuckets,
	}, []string{"provider"})

	// Provider API Metrics
	ProviderPaginationCapTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_pagination_cap_total",
		Help:      "Count of listing calls truncated at the pagination safety cap.",
	}, []string{"provider", "resource"})

	// Capture Metrics
	LeadsCapturedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "leads_captured_total",
		Help:      "Count of leads accepted by the capture endpoint.",
	}, []string{"funnel_page"})
)
