package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Trade submission metrics
	SubmissionsSettled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foresight_submissions_settled_total",
			Help: "Total number of trade submissions settled",
		},
		[]string{"result"}, // success or the failure kind
	)

	SubmissionsIgnored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foresight_submissions_ignored_total",
			Help: "Submit requests ignored because a submission was already in flight",
		},
	)

	SubmissionsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foresight_submissions_discarded_total",
			Help: "Collaborator results discarded because the dialog closed first",
		},
	)

	// Collaborator latency
	BalanceFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "foresight_balance_fetch_duration_seconds",
			Help:    "Duration of balance fetches",
			Buckets: prometheus.DefBuckets,
		},
	)

	SinkSubmitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "foresight_sink_submit_duration_seconds",
			Help:    "Duration of submission sink calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Catalog metrics
	CatalogMarkets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "foresight_catalog_markets",
			Help: "Number of markets in the current catalog snapshot",
		},
	)

	CatalogRefreshErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foresight_catalog_refresh_errors_total",
			Help: "Total number of failed catalog refreshes",
		},
	)

	// Dialogs
	OpenDialogs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "foresight_open_dialogs",
			Help: "Number of open trade dialogs",
		},
	)
)
