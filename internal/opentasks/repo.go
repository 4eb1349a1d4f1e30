package opentasks

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	"github.com/tasklinkhq/tasklink-backend/pkg/pagination"
)

// Repository defines persistence operations for the open task board.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, task *models.OpenTask) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.OpenTask, error)
	Browse(ctx context.Context, input BrowseInput) ([]models.OpenTask, string, error)
	ListBySender(ctx context.Context, senderID uuid.UUID) ([]models.OpenTask, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to enums.OpenTaskStatus) (bool, error)
	DeleteWithChildren(ctx context.Context, id uuid.UUID) error

	CreateOffer(ctx context.Context, offer *models.OpenTaskOffer) error
	FindOfferByID(ctx context.Context, id uuid.UUID) (*models.OpenTaskOffer, error)
	ListOffers(ctx context.Context, openTaskID uuid.UUID) ([]models.OpenTaskOffer, error)
	UpdateOfferStatusGuarded(ctx context.Context, id uuid.UUID, from, to enums.OfferStatus) (bool, error)
	RejectPendingOffersExcept(ctx context.Context, openTaskID, keepOfferID uuid.UUID) error
	ResetAcceptedOffer(ctx context.Context, openTaskID uuid.UUID) error

	FindDate(ctx context.Context, openTaskID, dateID uuid.UUID) (*models.OpenTaskDate, error)
	CreateTaskRequest(ctx context.Context, request *models.TaskRequest) error
	MovePhotosToTaskRequest(ctx context.Context, openTaskID, taskRequestID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an open task repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, task *models.OpenTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.OpenTask, error) {
	var task models.OpenTask
	err := r.db.WithContext(ctx).
		Preload("Photos").
		Preload("Dates").
		Where("id = ?", id).
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *repository) Browse(ctx context.Context, input BrowseInput) ([]models.OpenTask, string, error) {
	pageSize := pagination.NormalizeLimit(input.Pagination.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(input.Pagination.Limit)

	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, "", err
	}

	qb := r.db.WithContext(ctx).
		Model(&models.OpenTask{}).
		Preload("Photos").
		Preload("Dates").
		Where("status = ?", enums.OpenTaskStatusOpen)
	if input.CityID != nil {
		qb = qb.Where("city_id = ?", *input.CityID)
	}
	if input.CategoryID != nil {
		qb = qb.Where("category_id = ?", *input.CategoryID)
	}
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.OpenTask
	if err := qb.Order("created_at DESC").Order("id DESC").Limit(limitWithBuffer).Find(&rows).Error; err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, nextCursor, nil
}

func (r *repository) ListBySender(ctx context.Context, senderID uuid.UUID) ([]models.OpenTask, error) {
	var rows []models.OpenTask
	err := r.db.WithContext(ctx).
		Preload("Photos").
		Preload("Dates").
		Where("sender_id = ?", senderID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.OpenTask{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// UpdateStatusGuarded flips the status only when the stored value still
// matches; concurrent accepts lose the race and see false.
func (r *repository) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to enums.OpenTaskStatus) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE open_tasks
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, to, id, from)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) DeleteWithChildren(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("open_task_id = ?", id).Delete(&models.OpenTaskPhoto{}).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Where("open_task_id = ?", id).Delete(&models.OpenTaskDate{}).Error; err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Where("open_task_id = ?", id).Delete(&models.OpenTaskOffer{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.OpenTask{}).Error
}

func (r *repository) CreateOffer(ctx context.Context, offer *models.OpenTaskOffer) error {
	return r.db.WithContext(ctx).Create(offer).Error
}

func (r *repository) FindOfferByID(ctx context.Context, id uuid.UUID) (*models.OpenTaskOffer, error) {
	var offer models.OpenTaskOffer
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&offer).Error
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *repository) ListOffers(ctx context.Context, openTaskID uuid.UUID) ([]models.OpenTaskOffer, error) {
	var rows []models.OpenTaskOffer
	err := r.db.WithContext(ctx).
		Where("open_task_id = ?", openTaskID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateOfferStatusGuarded(ctx context.Context, id uuid.UUID, from, to enums.OfferStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.OpenTaskOffer{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) RejectPendingOffersExcept(ctx context.Context, openTaskID, keepOfferID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.OpenTaskOffer{}).
		Where("open_task_id = ? AND id <> ? AND status = ?", openTaskID, keepOfferID, enums.OfferStatusPending).
		Update("status", enums.OfferStatusRejected).Error
}

// ResetAcceptedOffer returns the winning offer to pending when a derived
// request is canceled and the task goes back to the board.
func (r *repository) ResetAcceptedOffer(ctx context.Context, openTaskID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.OpenTaskOffer{}).
		Where("open_task_id = ? AND status = ?", openTaskID, enums.OfferStatusAccepted).
		Update("status", enums.OfferStatusPending).Error
}

func (r *repository) FindDate(ctx context.Context, openTaskID, dateID uuid.UUID) (*models.OpenTaskDate, error) {
	var date models.OpenTaskDate
	err := r.db.WithContext(ctx).
		Where("id = ? AND open_task_id = ?", dateID, openTaskID).
		First(&date).Error
	if err != nil {
		return nil, err
	}
	return &date, nil
}

func (r *repository) CreateTaskRequest(ctx context.Context, request *models.TaskRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

// MovePhotosToTaskRequest carries board photos over to the synthesized
// request, then clears the open task's photo rows.
func (r *repository) MovePhotosToTaskRequest(ctx context.Context, openTaskID, taskRequestID uuid.UUID) error {
	err := r.db.WithContext(ctx).Exec(`
		INSERT INTO task_request_photos (task_request_id, path)
		SELECT ?, path FROM open_task_photos WHERE open_task_id = ?
	`, taskRequestID, openTaskID).Error
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("open_task_id = ?", openTaskID).
		Delete(&models.OpenTaskPhoto{}).Error
}
