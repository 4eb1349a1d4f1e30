package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
)

// PayoutRequest is a tasker withdrawal from the wallet balance.
type PayoutRequest struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index"`
	AmountCents int64              `gorm:"column:amount_cents;not null"`
	IBAN        string             `gorm:"column:iban;type:text;not null"`
	Status      enums.PayoutStatus `gorm:"column:status;type:payout_status;not null;default:'waiting'"`
	ProcessedAt *time.Time         `gorm:"column:processed_at"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
