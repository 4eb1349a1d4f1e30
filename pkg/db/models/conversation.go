package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the single chat thread between a customer and a tasker.
type Conversation struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null;index:idx_conversations_pair,unique"`
	TaskerID   uuid.UUID `gorm:"column:tasker_id;type:uuid;not null;index:idx_conversations_pair,unique"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Message is a single chat message inside a conversation.
type Message struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ConversationID uuid.UUID  `gorm:"column:conversation_id;type:uuid;not null;index"`
	SenderID       uuid.UUID  `gorm:"column:sender_id;type:uuid;not null"`
	Body           string     `gorm:"type:text;not null"`
	ReadAt         *time.Time `gorm:"column:read_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}
