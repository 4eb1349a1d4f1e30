package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
)

// Payment is an append-only ledger row. The amount sign encodes direction
// relative to UserID (negative debits the sender, positive credits the
// tasker) and IsPayment marks the debit half of a pair. A successful
// payment writes exactly one debit and one credit sharing TaskRequestID;
// a refund appends two reversal rows instead of mutating the originals.
type Payment struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TaskRequestID  uuid.UUID           `gorm:"column:task_request_id;type:uuid;not null;index"`
	UserID         uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	CounterpartyID uuid.UUID           `gorm:"column:counterparty_id;type:uuid;not null"`
	AmountCents    int64               `gorm:"column:amount_cents;not null"`
	IsPayment      bool                `gorm:"column:is_payment;not null"`
	Method         enums.PaymentMethod `gorm:"column:method;type:payment_method;not null"`
	Status         enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'waiting'"`
	ExternalRef    *string             `gorm:"column:external_ref"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
