// Package metrics provides Prometheus metrics for partsbin.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partsbin_operations_total",
			Help: "Total number of inventory operations",
		},
		[]string{"operation", "status"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "partsbin_operation_duration_seconds",
			Help:    "Time taken by inventory operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	ComponentsImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "partsbin_components_imported_total",
			Help: "Total number of components loaded from spreadsheets",
		},
	)

	IdeasRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partsbin_ideas_requests_total",
			Help: "Total number of project idea requests",
		},
		[]string{"provider", "status"},
	)

	IdeasDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "partsbin_ideas_duration_seconds",
			Help:    "Latency of project idea requests",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider"},
	)

	ActiveInventory = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "partsbin_active_inventory",
			Help: "Set to 1 for the currently active inventory",
		},
		[]string{"inventory"},
	)
)

// RecordOperation records the outcome and latency of an inventory operation.
func RecordOperation(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordIdeas records the outcome and latency of a project idea request.
func RecordIdeas(provider string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	IdeasRequests.WithLabelValues(provider, status).Inc()
	IdeasDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

// SetActiveInventory marks name as the active inventory.
func SetActiveInventory(name string) {
	ActiveInventory.Reset()
	ActiveInventory.WithLabelValues(name).Set(1)
}
