package search

import "github.com/prometheus/client_golang/prometheus"

const (
	MetricDocumentsPushed = "documents_pushed_total"
	MetricPushFailures    = "push_failures_total"
	MetricDocumentsRemove = "documents_removed_total"
	MetricCommits         = "commits_total"
)

var documentsPushed = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "search",
		Name:      MetricDocumentsPushed,
		Help:      "Documents successfully pushed to the search index.",
	},
)

var pushFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "search",
		Name:      MetricPushFailures,
		Help:      "Document pushes rejected by the search index.",
	},
)

var documentsRemoved = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "search",
		Name:      MetricDocumentsRemove,
		Help:      "Documents removed from the search index.",
	},
)

var commits = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "search",
		Name:      MetricCommits,
		Help:      "Successful search index commits.",
	},
)

func init() {
	prometheus.MustRegister(documentsPushed)
	prometheus.MustRegister(pushFailures)
	prometheus.MustRegister(documentsRemoved)
	prometheus.MustRegister(commits)
}
