package taskrequests

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	"github.com/tasklinkhq/tasklink-backend/pkg/pagination"
)

// Repository defines persistence operations for task requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.TaskRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.TaskRequest, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.TaskRequest, error)
	List(ctx context.Context, input ListInput) ([]models.TaskRequest, string, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TaskRequestStatus) error
	MovePhotosToOpenTask(ctx context.Context, taskRequestID, openTaskID uuid.UUID) error
	DeleteWithChildren(ctx context.Context, id uuid.UUID) error
	FindStaleWaitingForPayment(ctx context.Context, cutoff time.Time, limit int) ([]models.TaskRequest, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a task request repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.TaskRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.TaskRequest, error) {
	var request models.TaskRequest
	err := r.db.WithContext(ctx).
		Preload("Photos").
		Where("id = ?", id).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.TaskRequest, error) {
	var request models.TaskRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) List(ctx context.Context, input ListInput) ([]models.TaskRequest, string, error) {
	pageSize := pagination.NormalizeLimit(input.Pagination.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(input.Pagination.Limit)

	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, "", err
	}

	qb := r.db.WithContext(ctx).Model(&models.TaskRequest{}).Preload("Photos")
	if input.Direction == ListReceived {
		qb = qb.Where("tasker_id = ?", input.UserID)
	} else {
		qb = qb.Where("sender_id = ?", input.UserID)
	}
	if input.Status != nil {
		qb = qb.Where("status = ?", *input.Status)
	}
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.TaskRequest
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

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TaskRequestStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.TaskRequest{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// MovePhotosToOpenTask returns a canceled conversion's photos to the source
// open task, then clears the request's photo rows.
func (r *repository) MovePhotosToOpenTask(ctx context.Context, taskRequestID, openTaskID uuid.UUID) error {
	err := r.db.WithContext(ctx).Exec(`
		INSERT INTO open_task_photos (open_task_id, path)
		SELECT ?, path FROM task_request_photos WHERE task_request_id = ?
	`, openTaskID, taskRequestID).Error
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("task_request_id = ?", taskRequestID).
		Delete(&models.TaskRequestPhoto{}).Error
}

func (r *repository) DeleteWithChildren(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("task_request_id = ?", id).
		Delete(&models.TaskRequestPhoto{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.TaskRequest{}).Error
}

func (r *repository) FindStaleWaitingForPayment(ctx context.Context, cutoff time.Time, limit int) ([]models.TaskRequest, error) {
	var rows []models.TaskRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", enums.TaskRequestStatusWaitingForPayment, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
