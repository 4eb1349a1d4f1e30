package payments

import (
	"time"

	"github.com/google/uuid"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	"github.com/tasklinkhq/tasklink-backend/pkg/pagination"
)

// CheckoutInput captures a sender paying for an accepted task request.
type CheckoutInput struct {
	TaskRequestID uuid.UUID
	Method        enums.PaymentMethod
	ActorUserID   uuid.UUID
	ActorRole     enums.UserRole
}

// CheckoutResult reports the outcome of a checkout call. CheckoutURL is set
// only for the card method; wallet checkouts settle the request in-line.
type CheckoutResult struct {
	TaskRequestID uuid.UUID               `json:"task_request_id"`
	Status        enums.TaskRequestStatus `json:"status"`
	AmountCents   int64                   `json:"amount_cents"`
	CheckoutURL   *string                 `json:"checkout_url,omitempty"`
}

// PaymentDTO is one ledger row as shown to its owner.
type PaymentDTO struct {
	ID             uuid.UUID           `json:"id"`
	TaskRequestID  uuid.UUID           `json:"task_request_id"`
	CounterpartyID uuid.UUID           `json:"counterparty_id"`
	AmountCents    int64               `json:"amount_cents"`
	IsPayment      bool                `json:"is_payment"`
	Method         enums.PaymentMethod `json:"method"`
	Status         enums.PaymentStatus `json:"status"`
	CreatedAt      time.Time           `json:"created_at"`
}

// HistoryResult is one page of a user's ledger.
type HistoryResult struct {
	Payments   []PaymentDTO `json:"payments"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// HistoryInput paginates a user's payment history.
type HistoryInput struct {
	UserID     uuid.UUID
	Pagination pagination.Params
}

func paymentFromModel(p models.Payment) PaymentDTO {
	return PaymentDTO{
		ID:             p.ID,
		TaskRequestID:  p.TaskRequestID,
		CounterpartyID: p.CounterpartyID,
		AmountCents:    p.AmountCents,
		IsPayment:      p.IsPayment,
		Method:         p.Method,
		Status:         p.Status,
		CreatedAt:      p.CreatedAt,
	}
}
