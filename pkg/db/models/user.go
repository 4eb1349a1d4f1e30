package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
)

// User represents the canonical identity entity. WalletAmountCents is
// mutated only inside the same transaction that writes the matching
// payment ledger rows.
type User struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email             string         `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash      string         `gorm:"column:password_hash;not null"`
	FirstName         string         `gorm:"column:first_name;not null"`
	LastName          string         `gorm:"column:last_name;not null"`
	Phone             *string        `gorm:"column:phone"`
	Role              enums.UserRole `gorm:"column:role;type:user_role;not null;default:'customer'"`
	WalletAmountCents int64          `gorm:"column:wallet_amount_cents;not null;default:0"`
	IsActive          bool           `gorm:"column:is_active;not null;default:true"`
	LastLoginAt       *time.Time     `gorm:"column:last_login_at"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
