package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
)

// Repository defines persistence operations for payout requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payout *models.PayoutRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PayoutRequest, error)
	ListByStatus(ctx context.Context, status enums.PayoutStatus) ([]models.PayoutRequest, error)
	MarkPaidGuarded(ctx context.Context, id uuid.UUID, processedAt time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payout repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payout *models.PayoutRequest) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	var payout models.PayoutRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PayoutRequest, error) {
	var rows []models.PayoutRequest
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByStatus(ctx context.Context, status enums.PayoutStatus) ([]models.PayoutRequest, error) {
	var rows []models.PayoutRequest
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkPaidGuarded flips a waiting payout to paid; a concurrent admin loses
// the race and sees false.
func (r *repository) MarkPaidGuarded(ctx context.Context, id uuid.UUID, processedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PayoutRequest{}).
		Where("id = ? AND status = ?", id, enums.PayoutStatusWaiting).
		Updates(map[string]any{
			"status":       enums.PayoutStatusPaid,
			"processed_at": processedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
