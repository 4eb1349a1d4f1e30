package reviews

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
)

// Repository defines persistence operations for reviews.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, review *models.Review) error
	FindByTaskRequest(ctx context.Context, taskRequestID uuid.UUID) (*models.Review, error)
	ListByTasker(ctx context.Context, taskerID uuid.UUID, limit int) ([]models.Review, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a review repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *repository) FindByTaskRequest(ctx context.Context, taskRequestID uuid.UUID) (*models.Review, error) {
	var review models.Review
	err := r.db.WithContext(ctx).Where("task_request_id = ?", taskRequestID).First(&review).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *repository) ListByTasker(ctx context.Context, taskerID uuid.UUID, limit int) ([]models.Review, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var rows []models.Review
	err := r.db.WithContext(ctx).
		Where("tasker_id = ?", taskerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
