package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/tasklinkhq/tasklink-backend/pkg/db/types"
)

// TaskerProfile is the public service listing attached to a tasker user.
type TaskerProfile struct {
	ID              uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Description     string            `gorm:"type:text;not null"`
	HourlyRateCents int64             `gorm:"column:hourly_rate_cents;not null"`
	CityID          uuid.UUID         `gorm:"column:city_id;type:uuid;not null"`
	CategoryIDs     dbtypes.UUIDArray `gorm:"type:uuid[];column:category_ids;not null;default:ARRAY[]::uuid[]"`
	RatingAvg       float64           `gorm:"column:rating_avg;not null;default:0"`
	RatingCount     int               `gorm:"column:rating_count;not null;default:0"`
	IsVisible       bool              `gorm:"column:is_visible;not null;default:true"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// TaskerAvailability is a bookable time slot published by a tasker.
type TaskerAvailability struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TaskerID  uuid.UUID `gorm:"column:tasker_id;type:uuid;not null;index"`
	StartAt   time.Time `gorm:"column:start_at;not null"`
	EndAt     time.Time `gorm:"column:end_at;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TaskerGalleryImage stores a relative path to an uploaded work sample.
type TaskerGalleryImage struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TaskerID  uuid.UUID `gorm:"column:tasker_id;type:uuid;not null;index"`
	Path      string    `gorm:"type:text;not null"`
	Position  int       `gorm:"column:position;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
