package sql

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricStatements = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "openjpa",
		Name:      "statements_executed_total",
		Help:      "Number of SQL statements executed, by kind.",
	}, []string{"kind"})

	metricStatementErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "openjpa",
		Name:      "statement_errors_total",
		Help:      "Number of SQL statements that failed to execute, by kind.",
	}, []string{"kind"})

	metricStatementDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "openjpa",
		Name:      "statement_duration_seconds",
		Help:      "Time spent preparing and executing SQL statements.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	metricRowsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "openjpa",
		Name:      "rows_fetched_total",
		Help:      "Number of rows read through results.",
	})

	metricCloseErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "openjpa",
		Name:      "close_errors_total",
		Help:      "Number of failures closing result resources, by resource.",
	}, []string{"resource"})
)

// Statement kinds used as metric labels.
const (
	kindSelect = "select"
	kindCount  = "count"
	kindUnion  = "union"
)

// CloseErrors returns the counter of close failures for a resource
// ("rowset", "statement" or "connection").
func CloseErrors(resource string) prometheus.Counter {
	return metricCloseErrors.WithLabelValues(resource)
}

// StatementsExecuted returns the counter of executed statements of a kind
// ("select", "count" or "union").
func StatementsExecuted(kind string) prometheus.Counter {
	return metricStatements.WithLabelValues(kind)
}
