// Package metrics exposes Prometheus instruments for meeting lifecycle and object storage calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultSuccess  = "success"
	ResultNotFound = "not_found"
	ResultInvalid  = "invalid"
	ResultFailure  = "failure"
)

var (
	// operationsTotal counts lifecycle operations by outcome.
	// Labels:
	//   - operation: create, get, list, update, delete, delete_all, download
	//   - result: success, not_found, invalid, failure
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetingvault_operations_total",
			Help: "Total number of meeting lifecycle operations",
		},
		[]string{"operation", "result"},
	)

	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meetingvault_operation_duration_seconds",
			Help:    "Duration of meeting lifecycle operations in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"operation"},
	)

	// objectStoreRequestsTotal counts calls to the object store.
	// Labels:
	//   - method: put, get, head, delete, presign
	//   - result: success, failure
	objectStoreRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetingvault_object_store_requests_total",
			Help: "Total number of object store requests",
		},
		[]string{"method", "result"},
	)

	// orphanedObjectsTotal counts objects left in the bucket without a record
	// (create failed after upload) or left behind after their record was removed.
	orphanedObjectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetingvault_orphaned_objects_total",
			Help: "Total number of objects orphaned by partially failed operations",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(operationsTotal)
	prometheus.MustRegister(operationDuration)
	prometheus.MustRegister(objectStoreRequestsTotal)
	prometheus.MustRegister(orphanedObjectsTotal)
}

// ObserveOperation records one lifecycle operation that started at begin.
func ObserveOperation(operation, result string, begin time.Time) {
	operationsTotal.WithLabelValues(operation, result).Inc()
	operationDuration.WithLabelValues(operation).Observe(time.Since(begin).Seconds())
}

func RecordObjectStoreRequest(method string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	objectStoreRequestsTotal.WithLabelValues(method, result).Inc()
}

func RecordOrphanedObjects(operation string, n int) {
	if n <= 0 {
		return
	}
	orphanedObjectsTotal.WithLabelValues(operation).Add(float64(n))
}
