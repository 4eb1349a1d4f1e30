package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
)

// TaskRequest is a direct booking between a sender and a tasker. Requests
// converted from an open task carry IsOpenTask=true and the source
// OpenTaskID; field values are copied at conversion time, later edits to
// the open task do not propagate.
type TaskRequest struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SenderID        uuid.UUID               `gorm:"column:sender_id;type:uuid;not null;index"`
	TaskerID        uuid.UUID               `gorm:"column:tasker_id;type:uuid;not null;index"`
	CategoryID      uuid.UUID               `gorm:"column:category_id;type:uuid;not null"`
	Description     string                  `gorm:"type:text;not null"`
	Location        string                  `gorm:"type:text;not null"`
	DurationMinutes int                     `gorm:"column:duration_minutes;not null"`
	HourlyRateCents int64                   `gorm:"column:hourly_rate_cents;not null"`
	SlotStart       *time.Time              `gorm:"column:slot_start"`
	SlotEnd         *time.Time              `gorm:"column:slot_end"`
	Status          enums.TaskRequestStatus `gorm:"column:status;type:task_request_status;not null;default:'pending'"`
	IsOpenTask      bool                    `gorm:"column:is_open_task;not null;default:false"`
	OpenTaskID      *uuid.UUID              `gorm:"column:open_task_id;type:uuid"`
	Photos          []TaskRequestPhoto      `gorm:"foreignKey:TaskRequestID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// TaskRequestPhoto stores a relative path to a photo attached to a request.
// Photos migrate between open_task_photos and task_request_photos when an
// open task converts or a derived request is canceled.
type TaskRequestPhoto struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TaskRequestID uuid.UUID `gorm:"column:task_request_id;type:uuid;not null;index"`
	Path          string    `gorm:"type:text;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
