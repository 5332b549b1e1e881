package domain

import "time"

// TimelineEvent описывает событие в жизни checkout или reservation workflow.
type TimelineEvent struct {
	WorkflowID string
	Type       string
	Reason     string
	Occurred   time.Time
}

// Типы событий timeline.
const (
	TimelineCheckoutStarted      = "CheckoutStarted"
	TimelineCheckoutSubmitted    = "CheckoutSubmitted"
	TimelineCheckoutCompleted    = "CheckoutCompleted"
	TimelineCheckoutFailed       = "CheckoutFailed"
	TimelineReservationStarted   = "ReservationStarted"
	TimelineReservationStep      = "ReservationStepChanged"
	TimelineReservationConfirmed = "ReservationConfirmed"
)
