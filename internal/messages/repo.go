package messages

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/pagination"
)

// Repository defines persistence operations for conversations and messages.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrCreateConversation(ctx context.Context, customerID, taskerID uuid.UUID) (*models.Conversation, error)
	FindConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
	CreateMessage(ctx context.Context, message *models.Message) error
	ListMessages(ctx context.Context, conversationID uuid.UUID, params pagination.Params) ([]models.Message, string, error)
	CountUnread(ctx context.Context, conversationID, readerID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, conversationID, readerID uuid.UUID) error
	TouchConversation(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a messaging repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindOrCreateConversation returns the single thread for a customer/tasker
// pair, creating it on first contact. The pair unique index resolves
// concurrent first messages.
func (r *repository) FindOrCreateConversation(ctx context.Context, customerID, taskerID uuid.UUID) (*models.Conversation, error) {
	conversation := models.Conversation{CustomerID: customerID, TaskerID: taskerID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "customer_id"}, {Name: "tasker_id"}},
			DoNothing: true,
		}).
		Create(&conversation).Error
	if err != nil {
		return nil, err
	}
	if conversation.ID != uuid.Nil {
		return &conversation, nil
	}
	var existing models.Conversation
	err = r.db.WithContext(ctx).
		Where("customer_id = ? AND tasker_id = ?", customerID, taskerID).
		First(&existing).Error
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

func (r *repository) FindConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&conversation).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *repository) ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	var rows []models.Conversation
	err := r.db.WithContext(ctx).
		Where("customer_id = ? OR tasker_id = ?", userID, userID).
		Order("updated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CreateMessage(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *repository) ListMessages(ctx context.Context, conversationID uuid.UUID, params pagination.Params) ([]models.Message, string, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	qb := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ?", conversationID)
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Message
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

func (r *repository) CountUnread(ctx context.Context, conversationID, readerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND read_at IS NULL", conversationID, readerID).
		Count(&count).Error
	return count, err
}

func (r *repository) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND read_at IS NULL", conversationID, readerID).
		Update("read_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

func (r *repository) TouchConversation(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}
