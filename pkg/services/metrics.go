package services

import "github.com/prometheus/client_golang/prometheus"

const (
	MetricCounterAdjustments = "counter_adjustments_total"
	MetricReindexDecisions   = "reindex_decisions_total"
	MetricCascadedSchemas    = "cascaded_schemas_total"
	MetricIndexUpdates       = "index_updates_total"
)

var counterAdjustments = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      MetricCounterAdjustments,
		Help:      "Active tables and views counter adjustments by direction.",
	},
	[]string{
		"direction",
	},
)

var reindexDecisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      MetricReindexDecisions,
		Help:      "Reindex gate decisions for dataset writes.",
	},
	[]string{
		"decision",
	},
)

var cascadedSchemas = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      MetricCascadedSchemas,
		Help:      "Schemas marked stale by a database staleness cascade.",
	},
)

var indexUpdates = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      MetricIndexUpdates,
		Help:      "Post-commit search index updates by action and result.",
	},
	[]string{
		"action",
		"result",
	},
)

func init() {
	prometheus.MustRegister(counterAdjustments)
	prometheus.MustRegister(reindexDecisions)
	prometheus.MustRegister(cascadedSchemas)
	prometheus.MustRegister(indexUpdates)
}
