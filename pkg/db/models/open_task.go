package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
)

// OpenTask is a publicly posted task that taskers can send offers on.
type OpenTask struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SenderID        uuid.UUID            `gorm:"column:sender_id;type:uuid;not null;index"`
	CategoryID      uuid.UUID            `gorm:"column:category_id;type:uuid;not null"`
	CityID          uuid.UUID            `gorm:"column:city_id;type:uuid;not null"`
	Title           string               `gorm:"type:text;not null"`
	Description     string               `gorm:"type:text;not null"`
	Location        string               `gorm:"type:text;not null"`
	DurationMinutes int                  `gorm:"column:duration_minutes;not null"`
	BudgetCents     *int64               `gorm:"column:budget_cents"`
	Status          enums.OpenTaskStatus `gorm:"column:status;type:open_task_status;not null;default:'open'"`
	Photos          []OpenTaskPhoto      `gorm:"foreignKey:OpenTaskID;constraint:OnDelete:CASCADE"`
	Dates           []OpenTaskDate       `gorm:"foreignKey:OpenTaskID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// OpenTaskPhoto stores a relative path to an uploaded task photo.
type OpenTaskPhoto struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OpenTaskID uuid.UUID `gorm:"column:open_task_id;type:uuid;not null;index"`
	Path       string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// OpenTaskDate is a candidate time window proposed by the task sender.
type OpenTaskDate struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OpenTaskID uuid.UUID `gorm:"column:open_task_id;type:uuid;not null;index"`
	StartAt    time.Time `gorm:"column:start_at;not null"`
	EndAt      time.Time `gorm:"column:end_at;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// OpenTaskOffer is a tasker bid on an open task.
type OpenTaskOffer struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OpenTaskID      uuid.UUID         `gorm:"column:open_task_id;type:uuid;not null;index"`
	TaskerID        uuid.UUID         `gorm:"column:tasker_id;type:uuid;not null;index"`
	Message         string            `gorm:"type:text;not null"`
	HourlyRateCents int64             `gorm:"column:hourly_rate_cents;not null"`
	Status          enums.OfferStatus `gorm:"column:status;type:offer_status;not null;default:'pending'"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
