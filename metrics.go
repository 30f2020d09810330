package ddbload

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	batchRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ddbload",
			Subsystem: "batch",
			Name:      "requests_total",
			Help:      "Total number of batch calls issued.",
		}, []string{"op", "result"})

	retryRoundCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ddbload",
			Subsystem: "batch",
			Name:      "retry_rounds_total",
			Help:      "Total number of rounds spent on unprocessed requests.",
		}, []string{"op"})

	superBatchCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ddbload",
			Subsystem: "batch",
			Name:      "super_batches_total",
			Help:      "Total number of super-batches processed.",
		}, []string{"op"})

	consumedCapacityCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ddbload",
			Subsystem: "batch",
			Name:      "consumed_capacity_units_total",
			Help:      "Total capacity units reported as consumed.",
		}, []string{"op", "table"})
)

func init() {
	prometheus.MustRegister(batchRequestCounter)
	prometheus.MustRegister(retryRoundCounter)
	prometheus.MustRegister(superBatchCounter)
	prometheus.MustRegister(consumedCapacityCounter)
}

const (
	opWrite = "write"
	opRead  = "read"
	opQuery = "query"
	opScan  = "scan"
)

const (
	resultOK          = "ok"
	resultUnprocessed = "unprocessed"
	resultThrottled   = "throttled"
	resultError       = "error"
)

func incBatchRequest(op, result string) {
	batchRequestCounter.WithLabelValues(op, result).Inc()
}

func incRetryRound(op string) {
	retryRoundCounter.WithLabelValues(op).Inc()
}

func incSuperBatch(op string) {
	superBatchCounter.WithLabelValues(op).Inc()
}

func addConsumedCapacity(op, table string, units float64) {
	if units <= 0 {
		return
	}
	consumedCapacityCounter.WithLabelValues(op, table).Add(units)
}
