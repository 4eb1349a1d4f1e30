package models

import (
	"time"

	"github.com/google/uuid"
)

// Category is a seeded service category.
type Category struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"type:text;not null"`
	Slug      string    `gorm:"type:text;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// City is a seeded service area.
type City struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"type:text;not null"`
	Region    *string   `gorm:"type:text"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
