package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateTaskRequest  OutboxAggregateType = "task_request"
	AggregateOpenTask     OutboxAggregateType = "open_task"
	AggregateOffer        OutboxAggregateType = "offer"
	AggregatePayment      OutboxAggregateType = "payment"
	AggregatePayout       OutboxAggregateType = "payout"
	AggregateMessage      OutboxAggregateType = "message"
	AggregateReview       OutboxAggregateType = "review"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateTaskRequest,
	AggregateOpenTask,
	AggregateOffer,
	AggregatePayment,
	AggregatePayout,
	AggregateMessage,
	AggregateReview,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventTaskRequestCreated       OutboxEventType = "task_request_created"
	EventTaskRequestStatusChanged OutboxEventType = "task_request_status_changed"
	EventTaskRequestExpired       OutboxEventType = "task_request_expired"
	EventOfferCreated             OutboxEventType = "offer_created"
	EventOfferAccepted            OutboxEventType = "offer_accepted"
	EventOfferRejected            OutboxEventType = "offer_rejected"
	EventPaymentCompleted         OutboxEventType = "payment_completed"
	EventPaymentRefunded          OutboxEventType = "payment_refunded"
	EventPayoutRequested          OutboxEventType = "payout_requested"
	EventPayoutPaid               OutboxEventType = "payout_paid"
	EventMessageSent              OutboxEventType = "message_sent"
	EventReviewCreated            OutboxEventType = "review_created"
	EventNotificationRequested    OutboxEventType = "notification_requested"
)

var validOutboxEventTypes = []OutboxEventType{
	EventTaskRequestCreated,
	EventTaskRequestStatusChanged,
	EventTaskRequestExpired,
	EventOfferCreated,
	EventOfferAccepted,
	EventOfferRejected,
	EventPaymentCompleted,
	EventPaymentRefunded,
	EventPayoutRequested,
	EventPayoutPaid,
	EventMessageSent,
	EventReviewCreated,
	EventNotificationRequested,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
