package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Store operation metrics
	StoreOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mnemosyne_store_operations_total",
			Help: "Total number of store operations",
		},
		[]string{"store", "operation", "status"}, // status: success|error
	)

	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mnemosyne_store_operation_seconds",
			Help:    "Store operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"store", "operation"},
	)

	// Event ledger metrics
	EventsAppended = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mnemosyne_events_appended_total",
			Help: "Total number of events committed to session ledgers",
		},
		[]string{"store"},
	)

	// Artifact metrics
	ArtifactBytesWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mnemosyne_artifact_bytes_written_total",
			Help: "Total artifact payload bytes written",
		},
		[]string{"store"},
	)
)

// Register registers all metrics with the default prometheus registry.
// Call once at startup.
func Register() {
	prometheus.MustRegister(
		StoreOperations,
		StoreOperationDuration,
		EventsAppended,
		ArtifactBytesWritten,
	)
}

// ObserveStoreOperation records one store operation outcome and latency.
func ObserveStoreOperation(store, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	StoreOperations.WithLabelValues(store, operation, status).Inc()
	StoreOperationDuration.WithLabelValues(store, operation).Observe(time.Since(start).Seconds())
}

// RecordEventAppended counts a committed ledger event.
func RecordEventAppended(store string) {
	EventsAppended.WithLabelValues(store).Inc()
}

// RecordArtifactWrite counts artifact payload bytes going to a backend.
func RecordArtifactWrite(store string, size int) {
	ArtifactBytesWritten.WithLabelValues(store).Add(float64(size))
}
