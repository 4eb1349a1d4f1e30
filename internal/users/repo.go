package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail retrieves the user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// UpdateProfile applies the provided non-nil profile fields.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, dto UpdateProfileDTO) error {
	updates := map[string]any{}
	if dto.FirstName != nil {
		updates["first_name"] = *dto.FirstName
	}
	if dto.LastName != nil {
		updates["last_name"] = *dto.LastName
	}
	if dto.Phone != nil {
		updates["phone"] = *dto.Phone
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateRole promotes or demotes the user's role.
func (r *Repository) UpdateRole(ctx context.Context, id uuid.UUID, role string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("role", role).Error
}

// AdjustWallet applies a signed delta to wallet_amount_cents. The guard keeps
// the balance from going negative under concurrent spends.
func (r *Repository) AdjustWallet(ctx context.Context, id uuid.UUID, deltaCents int64) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE users
		SET wallet_amount_cents = wallet_amount_cents + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND wallet_amount_cents + ? >= 0
	`, deltaCents, id, deltaCents)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
