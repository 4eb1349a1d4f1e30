package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
)

// SupportTicket is a user-filed support case handled by admins.
type SupportTicket struct {
	ID        uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index"`
	Subject   string             `gorm:"type:text;not null"`
	Body      string             `gorm:"type:text;not null"`
	Status    enums.TicketStatus `gorm:"column:status;type:ticket_status;not null;default:'open'"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
