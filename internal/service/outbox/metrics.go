package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы попыток публикации.
const (
	resultSent      = "sent"
	resultRetry     = "retry_error"
	resultFailed    = "failed"
	resultDLQFailed = "dlq_failed"
)

var (
	publishAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restaurant_outbox_publish_attempts_total",
		Help: "Total number of outbox publish attempts grouped by aggregate and result.",
	}, []string{"aggregate", "result"})
	pendingRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "restaurant_outbox_pending_records",
		Help: "Current number of pending records in transactional outbox.",
	})
	oldestPendingAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "restaurant_outbox_oldest_pending_age_seconds",
		Help: "Age in seconds of the oldest pending outbox record.",
	})
	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "restaurant_outbox_batch_duration_seconds",
		Help:    "Time spent delivering one outbox batch.",
		Buckets: prometheus.DefBuckets,
	})
)
