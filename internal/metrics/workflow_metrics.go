package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Виды workflow для метки kind.
const (
	KindCheckout    = "checkout"
	KindReservation = "reservation"
)

// WorkflowMetrics содержит метрики корзины, оформления заказа и бронирования.
type WorkflowMetrics struct {
	cartOperations *prometheus.CounterVec

	checkoutSubmitted prometheus.Counter
	checkoutCompleted prometheus.Counter
	checkoutFailed    *prometheus.CounterVec
	placementRetries  prometheus.Counter
	placementDuration prometheus.Histogram

	reservationTransitions *prometheus.CounterVec
	reservationsConfirmed  prometheus.Counter

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	activeWorkflows *prometheus.GaugeVec
}

// NewWorkflowMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewWorkflowMetrics() *WorkflowMetrics {
	return NewWorkflowMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWorkflowMetricsWithRegisterer регистрирует метрики в переданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewWorkflowMetricsWithRegisterer(registerer prometheus.Registerer) *WorkflowMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	r := registerer
	return &WorkflowMetrics{
		cartOperations: counterVec(r, "restaurant_cart_operations_total",
			"Total number of cart mutations grouped by operation and result.", "operation", "result"),
		checkoutSubmitted: counter(r, "restaurant_checkout_submitted_total",
			"Total number of checkout submissions that reached the placement service."),
		checkoutCompleted: counter(r, "restaurant_checkout_completed_total",
			"Total number of checkouts completed successfully."),
		checkoutFailed: counterVec(r, "restaurant_checkout_failed_total",
			"Total number of failed checkout submissions grouped by reason.", "reason"),
		placementRetries: counter(r, "restaurant_order_placement_retries_total",
			"Total number of retried order placement calls."),
		placementDuration: histogram(r, "restaurant_order_placement_duration_seconds",
			"Duration of order placement calls in seconds.",
			[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10}),
		reservationTransitions: counterVec(r, "restaurant_reservation_transitions_total",
			"Total number of reservation wizard actions grouped by action and result.", "action", "result"),
		reservationsConfirmed: counter(r, "restaurant_reservations_confirmed_total",
			"Total number of confirmed reservations."),
		timelineEvents: counter(r, "restaurant_timeline_events_total",
			"Total number of workflow timeline events recorded."),
		outboxEvents: counter(r, "restaurant_outbox_events_total",
			"Total number of events enqueued into the outbox."),
		activeWorkflows: gaugeVec(r, "restaurant_active_workflows",
			"Number of workflow instances held in memory grouped by kind.", "kind"),
	}
}

// RecordCartOperation учитывает мутацию корзины. changed=false означает no-op.
func (m *WorkflowMetrics) RecordCartOperation(operation string, changed bool) {
	result := "changed"
	if !changed {
		result = "noop"
	}
	m.cartOperations.WithLabelValues(operation, result).Inc()
}

// RecordCartError учитывает мутацию корзины, завершившуюся ошибкой.
func (m *WorkflowMetrics) RecordCartError(operation string) {
	m.cartOperations.WithLabelValues(operation, "error").Inc()
}

// RecordCheckoutSubmitted увеличивает счётчик отправок заказа.
func (m *WorkflowMetrics) RecordCheckoutSubmitted() {
	m.checkoutSubmitted.Inc()
}

// RecordCheckoutCompleted увеличивает счётчик успешных заказов.
func (m *WorkflowMetrics) RecordCheckoutCompleted() {
	m.checkoutCompleted.Inc()
}

// RecordCheckoutFailed увеличивает счётчик неудачных отправок.
func (m *WorkflowMetrics) RecordCheckoutFailed(reason string) {
	m.checkoutFailed.WithLabelValues(reason).Inc()
}

// RecordPlacementRetry учитывает повторный вызов сервиса размещения.
func (m *WorkflowMetrics) RecordPlacementRetry() {
	m.placementRetries.Inc()
}

// RecordPlacementDuration записывает длительность размещения заказа.
func (m *WorkflowMetrics) RecordPlacementDuration(duration time.Duration) {
	m.placementDuration.Observe(duration.Seconds())
}

// RecordReservationAction учитывает действие мастера бронирования.
func (m *WorkflowMetrics) RecordReservationAction(action string, err error) {
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	m.reservationTransitions.WithLabelValues(action, result).Inc()
}

// RecordReservationConfirmed увеличивает счётчик подтверждённых броней.
func (m *WorkflowMetrics) RecordReservationConfirmed() {
	m.reservationsConfirmed.Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *WorkflowMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *WorkflowMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}

// SetActiveWorkflows выставляет число workflow в реестре.
func (m *WorkflowMetrics) SetActiveWorkflows(kind string, count int) {
	m.activeWorkflows.WithLabelValues(kind).Set(float64(count))
}
