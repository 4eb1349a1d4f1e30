package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookEvent records a processed payment-processor event. The unique
// EventID makes replayed deliveries a no-op inside the settlement
// transaction.
type WebhookEvent struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	EventID     string          `gorm:"column:event_id;type:text;not null;uniqueIndex"`
	Type        string          `gorm:"column:type;type:text;not null"`
	Payload     json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	ProcessedAt time.Time       `gorm:"column:processed_at;autoCreateTime"`
}
