package catalog

import (
	"context"

	"gorm.io/gorm"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
)

// Repository exposes read access to the shared category and city reference data.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a catalog repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListCategories returns all categories ordered by name.
func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := r.db.WithContext(ctx).
		Order("name ASC").
		Find(&categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// ListCities returns all cities ordered by name.
func (r *Repository) ListCities(ctx context.Context) ([]models.City, error) {
	var cities []models.City
	err := r.db.WithContext(ctx).
		Order("name ASC").
		Find(&cities).Error
	if err != nil {
		return nil, err
	}
	return cities, nil
}

// CategoryExists reports whether the category id is known.
func (r *Repository) CategoryExists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
