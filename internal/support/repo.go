package support

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
)

// Repository defines persistence operations for support tickets.
type Repository interface {
	Create(ctx context.Context, ticket *models.SupportTicket) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.SupportTicket, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.SupportTicket, error)
	ListByStatus(ctx context.Context, status *enums.TicketStatus) ([]models.SupportTicket, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TicketStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a support ticket repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, ticket *models.SupportTicket) error {
	return r.db.WithContext(ctx).Create(ticket).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.SupportTicket, error) {
	var ticket models.SupportTicket
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&ticket).Error
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.SupportTicket, error) {
	var rows []models.SupportTicket
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByStatus(ctx context.Context, status *enums.TicketStatus) ([]models.SupportTicket, error) {
	qb := r.db.WithContext(ctx).Model(&models.SupportTicket{})
	if status != nil {
		qb = qb.Where("status = ?", *status)
	}
	var rows []models.SupportTicket
	if err := qb.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TicketStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.SupportTicket{}).
		Where("id = ?", id).
		Update("status", status).Error
}
