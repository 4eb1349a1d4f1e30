package stripewebhook

import (
	"context"

	"gorm.io/gorm"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
)

// Repository persists processed webhook events.
type Repository struct{}

// NewRepository builds a webhook event repository.
func NewRepository() *Repository {
	return &Repository{}
}

// InsertEvent writes the event row inside the caller's transaction. A
// duplicate event_id surfaces as a unique violation.
func (r *Repository) InsertEvent(ctx context.Context, tx *gorm.DB, event *models.WebhookEvent) error {
	return tx.WithContext(ctx).Create(event).Error
}
