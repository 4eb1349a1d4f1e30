package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	"github.com/tasklinkhq/tasklink-backend/pkg/pagination"
)

// Repository defines persistence operations for the payment ledger and the
// task request rows the checkout flow touches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreatePayments(ctx context.Context, rows []models.Payment) error
	FindPairByTaskRequest(ctx context.Context, taskRequestID uuid.UUID) ([]models.Payment, error)
	UpdateStatusForTask(ctx context.Context, taskRequestID uuid.UUID, from, to enums.PaymentStatus) (int64, error)
	ListByUser(ctx context.Context, input HistoryInput) (*HistoryResult, error)
	FindTaskRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.TaskRequest, error)
	UpdateTaskRequestStatus(ctx context.Context, id uuid.UUID, status enums.TaskRequestStatus) error
	SumLedgerForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePayments(ctx context.Context, rows []models.Payment) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// FindPairByTaskRequest returns the non-reversal ledger rows for a request,
// debit row first. Reversal rows and reversed originals carry the refunded
// status and fall outside the filter.
func (r *repository) FindPairByTaskRequest(ctx context.Context, taskRequestID uuid.UUID) ([]models.Payment, error) {
	var rows []models.Payment
	err := r.db.WithContext(ctx).
		Where("task_request_id = ? AND status = ?", taskRequestID, enums.PaymentStatusCompleted).
		Order("is_payment DESC").
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateStatusForTask(ctx context.Context, taskRequestID uuid.UUID, from, to enums.PaymentStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("task_request_id = ? AND status = ?", taskRequestID, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}

func (r *repository) ListByUser(ctx context.Context, input HistoryInput) (*HistoryResult, error) {
	pageSize := pagination.NormalizeLimit(input.Pagination.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(input.Pagination.Limit)

	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, err
	}

	qb := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("user_id = ?", input.UserID)

	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Payment
	if err := qb.Order("created_at DESC").Order("id DESC").Limit(limitWithBuffer).Find(&rows).Error; err != nil {
		return nil, err
	}

	resultRows := rows
	nextCursor := ""
	if len(rows) > pageSize {
		resultRows = rows[:pageSize]
		last := resultRows[len(resultRows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	payments := make([]PaymentDTO, 0, len(resultRows))
	for _, row := range resultRows {
		payments = append(payments, paymentFromModel(row))
	}

	return &HistoryResult{
		Payments:   payments,
		NextCursor: nextCursor,
	}, nil
}

func (r *repository) FindTaskRequestForUpdate(ctx context.Context, id uuid.UUID) (*models.TaskRequest, error) {
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

func (r *repository) UpdateTaskRequestStatus(ctx context.Context, id uuid.UUID, status enums.TaskRequestStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.TaskRequest{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// SumLedgerForUser reconciles a wallet by summing the user's applied rows.
// Every ledger row moves wallet balance when written except original card
// charges, which settle on the card; their refunds do come back as wallet
// balance, so reversal rows always count.
func (r *repository) SumLedgerForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Where("user_id = ?", userID).
		Where("status <> ?", enums.PaymentStatusCanceled).
		Where("NOT (is_payment = TRUE AND method = ? AND (external_ref IS NULL OR external_ref NOT LIKE 'reversal:%'))", enums.PaymentMethodCard).
		Scan(&total).Error
	return total, err
}
