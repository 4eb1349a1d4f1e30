package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
)

// UserDevice is a registered FCM push token. Tokens rejected by FCM as
// unregistered are pruned by the notification consumer.
type UserDevice struct {
	ID         uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID     uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index"`
	Token      string               `gorm:"type:text;not null;uniqueIndex"`
	Platform   enums.DevicePlatform `gorm:"column:platform;type:device_platform;not null"`
	LastSeenAt time.Time            `gorm:"column:last_seen_at;not null"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
}
