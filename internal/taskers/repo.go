package taskers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/pagination"
)

// Repository defines persistence operations for tasker listings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.TaskerProfile, error)
	Upsert(ctx context.Context, profile *models.TaskerProfile) error
	Browse(ctx context.Context, input BrowseInput) (*BrowseResult, error)
	AdjustRating(ctx context.Context, userID uuid.UUID, rating int) error
	ReplaceAvailability(ctx context.Context, taskerID uuid.UUID, slots []models.TaskerAvailability) error
	ListAvailability(ctx context.Context, taskerID uuid.UUID, from time.Time) ([]models.TaskerAvailability, error)
	DeleteAvailabilityEndedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	AddGalleryImage(ctx context.Context, image *models.TaskerGalleryImage) error
	RemoveGalleryImage(ctx context.Context, taskerID, imageID uuid.UUID) (bool, error)
	ListGallery(ctx context.Context, taskerID uuid.UUID) ([]models.TaskerGalleryImage, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a taskers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.TaskerProfile, error) {
	var profile models.TaskerProfile
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) Upsert(ctx context.Context, profile *models.TaskerProfile) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", profile.UserID).
		Assign(map[string]any{
			"description":       profile.Description,
			"hourly_rate_cents": profile.HourlyRateCents,
			"city_id":           profile.CityID,
			"category_ids":      profile.CategoryIDs,
			"is_visible":        profile.IsVisible,
		}).
		FirstOrCreate(profile).Error
}

type browseRecord struct {
	models.TaskerProfile
	FirstName string
	LastName  string
}

func (r *repository) Browse(ctx context.Context, input BrowseInput) (*BrowseResult, error) {
	pageSize := pagination.NormalizeLimit(input.Pagination.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(input.Pagination.Limit)

	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, err
	}

	qb := r.db.WithContext(ctx).
		Table("tasker_profiles tp").
		Select("tp.*, u.first_name, u.last_name").
		Joins("JOIN users u ON u.id = tp.user_id").
		Where("tp.is_visible = TRUE").
		Where("u.is_active = TRUE")

	filters := input.Filters
	if filters.CityID != nil {
		qb = qb.Where("tp.city_id = ?", *filters.CityID)
	}
	if filters.CategoryID != nil {
		qb = qb.Where("? = ANY(tp.category_ids)", *filters.CategoryID)
	}
	if filters.RateMinCents != nil {
		qb = qb.Where("tp.hourly_rate_cents >= ?", *filters.RateMinCents)
	}
	if filters.RateMaxCents != nil {
		qb = qb.Where("tp.hourly_rate_cents <= ?", *filters.RateMaxCents)
	}
	if filters.RatingMin != nil {
		qb = qb.Where("tp.rating_avg >= ?", *filters.RatingMin)
	}
	if filters.Query != "" {
		pattern := "%" + filters.Query + "%"
		qb = qb.Where("tp.description ILIKE ? OR u.first_name ILIKE ? OR u.last_name ILIKE ?", pattern, pattern, pattern)
	}

	if cursor != nil {
		qb = qb.Where("(tp.created_at < ?) OR (tp.created_at = ? AND tp.id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	qb = qb.Order("tp.created_at DESC").Order("tp.id DESC").Limit(limitWithBuffer)

	var records []browseRecord
	if err := qb.Scan(&records).Error; err != nil {
		return nil, err
	}

	resultRows := records
	nextCursor := ""
	if len(records) > pageSize {
		resultRows = records[:pageSize]
		last := resultRows[len(resultRows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	profiles := make([]ProfileDTO, 0, len(resultRows))
	for i := range resultRows {
		record := resultRows[i]
		profiles = append(profiles, *profileFromModel(&record.TaskerProfile, record.FirstName, record.LastName))
	}

	return &BrowseResult{
		Taskers:    profiles,
		NextCursor: nextCursor,
	}, nil
}

// AdjustRating folds one new review score into the running average.
func (r *repository) AdjustRating(ctx context.Context, userID uuid.UUID, rating int) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE tasker_profiles
		SET rating_avg = (rating_avg * rating_count + ?) / (rating_count + 1),
			rating_count = rating_count + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?
	`, rating, userID).Error
}

func (r *repository) ReplaceAvailability(ctx context.Context, taskerID uuid.UUID, slots []models.TaskerAvailability) error {
	if err := r.db.WithContext(ctx).
		Where("tasker_id = ?", taskerID).
		Delete(&models.TaskerAvailability{}).Error; err != nil {
		return err
	}
	if len(slots) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&slots).Error
}

func (r *repository) ListAvailability(ctx context.Context, taskerID uuid.UUID, from time.Time) ([]models.TaskerAvailability, error) {
	var slots []models.TaskerAvailability
	err := r.db.WithContext(ctx).
		Where("tasker_id = ? AND end_at > ?", taskerID, from).
		Order("start_at ASC").
		Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *repository) DeleteAvailabilityEndedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	db := r.db
	if tx != nil {
		db = tx
	}
	result := db.WithContext(ctx).
		Where("end_at < ?", cutoff).
		Delete(&models.TaskerAvailability{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repository) AddGalleryImage(ctx context.Context, image *models.TaskerGalleryImage) error {
	return r.db.WithContext(ctx).Create(image).Error
}

func (r *repository) RemoveGalleryImage(ctx context.Context, taskerID, imageID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND tasker_id = ?", imageID, taskerID).
		Delete(&models.TaskerGalleryImage{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ListGallery(ctx context.Context, taskerID uuid.UUID) ([]models.TaskerGalleryImage, error) {
	var images []models.TaskerGalleryImage
	err := r.db.WithContext(ctx).
		Where("tasker_id = ?", taskerID).
		Order("position ASC, created_at ASC").
		Find(&images).Error
	if err != nil {
		return nil, err
	}
	return images, nil
}
