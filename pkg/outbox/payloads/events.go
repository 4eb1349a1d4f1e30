package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
)

// TaskRequestCreatedEvent signals a new direct booking sent to a tasker.
type TaskRequestCreatedEvent struct {
	TaskRequestID uuid.UUID `json:"task_request_id"`
	SenderID      uuid.UUID `json:"sender_id"`
	TaskerID      uuid.UUID `json:"tasker_id"`
}

// TaskRequestStatusChangedEvent is emitted for every request transition.
type TaskRequestStatusChangedEvent struct {
	TaskRequestID uuid.UUID               `json:"task_request_id"`
	SenderID      uuid.UUID               `json:"sender_id"`
	TaskerID      uuid.UUID               `json:"tasker_id"`
	OldStatus     enums.TaskRequestStatus `json:"old_status"`
	NewStatus     enums.TaskRequestStatus `json:"new_status"`
}

// TaskRequestExpiredEvent reports a stale unpaid request swept by cron.
type TaskRequestExpiredEvent struct {
	TaskRequestID uuid.UUID `json:"task_request_id"`
	SenderID      uuid.UUID `json:"sender_id"`
	TaskerID      uuid.UUID `json:"tasker_id"`
	ExpiredAt     time.Time `json:"expired_at"`
}

// OfferCreatedEvent signals a tasker bid on an open task.
type OfferCreatedEvent struct {
	OfferID    uuid.UUID `json:"offer_id"`
	OpenTaskID uuid.UUID `json:"open_task_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	TaskerID   uuid.UUID `json:"tasker_id"`
}

// OfferAcceptedEvent carries the synthesized request produced by acceptance.
type OfferAcceptedEvent struct {
	OfferID       uuid.UUID `json:"offer_id"`
	OpenTaskID    uuid.UUID `json:"open_task_id"`
	TaskRequestID uuid.UUID `json:"task_request_id"`
	SenderID      uuid.UUID `json:"sender_id"`
	TaskerID      uuid.UUID `json:"tasker_id"`
}

// OfferRejectedEvent tells the tasker their bid was declined.
type OfferRejectedEvent struct {
	OfferID    uuid.UUID `json:"offer_id"`
	OpenTaskID uuid.UUID `json:"open_task_id"`
	TaskerID   uuid.UUID `json:"tasker_id"`
}

// PaymentCompletedEvent is emitted when a request is paid.
type PaymentCompletedEvent struct {
	TaskRequestID uuid.UUID           `json:"task_request_id"`
	SenderID      uuid.UUID           `json:"sender_id"`
	TaskerID      uuid.UUID           `json:"tasker_id"`
	AmountCents   int64               `json:"amount_cents"`
	Method        enums.PaymentMethod `json:"method"`
}

// PaymentRefundedEvent is emitted when a paid request is reversed.
type PaymentRefundedEvent struct {
	TaskRequestID uuid.UUID `json:"task_request_id"`
	SenderID      uuid.UUID `json:"sender_id"`
	TaskerID      uuid.UUID `json:"tasker_id"`
	AmountCents   int64     `json:"amount_cents"`
}

// PayoutRequestedEvent signals a new withdrawal request.
type PayoutRequestedEvent struct {
	PayoutID    uuid.UUID `json:"payout_id"`
	UserID      uuid.UUID `json:"user_id"`
	AmountCents int64     `json:"amount_cents"`
}

// PayoutPaidEvent is emitted when an admin marks a payout as transferred.
type PayoutPaidEvent struct {
	PayoutID    uuid.UUID `json:"payout_id"`
	UserID      uuid.UUID `json:"user_id"`
	AmountCents int64     `json:"amount_cents"`
	PaidAt      time.Time `json:"paid_at"`
}

// MessageSentEvent triggers a push to the recipient of a chat message.
type MessageSentEvent struct {
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	RecipientID    uuid.UUID `json:"recipient_id"`
	Preview        string    `json:"preview"`
}

// ReviewCreatedEvent notifies the tasker of a new rating.
type ReviewCreatedEvent struct {
	ReviewID      uuid.UUID `json:"review_id"`
	TaskRequestID uuid.UUID `json:"task_request_id"`
	TaskerID      uuid.UUID `json:"tasker_id"`
	Rating        int       `json:"rating"`
}
