package devices

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
)

// Repository exposes persistence operations for push device tokens.
type Repository interface {
	Upsert(ctx context.Context, device *models.UserDevice) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserDevice, error)
	DeleteToken(ctx context.Context, userID uuid.UUID, token string) (bool, error)
	DeleteByToken(ctx context.Context, token string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a device repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Upsert re-binds an already known token to the registering user. A token
// moving between accounts on a shared device must only push to the latest one.
func (r *repository) Upsert(ctx context.Context, device *models.UserDevice) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform", "last_seen_at"}),
		}).
		Create(device).Error
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserDevice, error) {
	var rows []models.UserDevice
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_seen_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) DeleteToken(ctx context.Context, userID uuid.UUID, token string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&models.UserDevice{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) DeleteByToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).
		Where("token = ?", token).
		Delete(&models.UserDevice{}).Error
}
