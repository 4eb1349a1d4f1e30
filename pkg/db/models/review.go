package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is the sender's rating of a completed task request. One review
// per request, enforced by the unique index.
type Review struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TaskRequestID uuid.UUID `gorm:"column:task_request_id;type:uuid;not null;uniqueIndex"`
	SenderID      uuid.UUID `gorm:"column:sender_id;type:uuid;not null"`
	TaskerID      uuid.UUID `gorm:"column:tasker_id;type:uuid;not null;index"`
	Rating        int       `gorm:"column:rating;not null"`
	Comment       *string   `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
