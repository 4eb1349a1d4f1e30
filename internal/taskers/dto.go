package taskers

import (
	"time"

	"github.com/google/uuid"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/pagination"
)

// UpsertProfileInput carries the fields a tasker can publish on their listing.
type UpsertProfileInput struct {
	Description     string      `json:"description" validate:"required"`
	HourlyRateCents int64       `json:"hourly_rate_cents" validate:"required,gt=0"`
	CityID          uuid.UUID   `json:"city_id" validate:"required"`
	CategoryIDs     []uuid.UUID `json:"category_ids" validate:"required,min=1"`
	IsVisible       *bool       `json:"is_visible,omitempty"`
}

// ProfileDTO is the public listing shape returned to browsers.
type ProfileDTO struct {
	ID              uuid.UUID     `json:"id"`
	UserID          uuid.UUID     `json:"user_id"`
	FirstName       string        `json:"first_name"`
	LastName        string        `json:"last_name"`
	Description     string        `json:"description"`
	HourlyRateCents int64         `json:"hourly_rate_cents"`
	CityID          uuid.UUID     `json:"city_id"`
	CategoryIDs     []uuid.UUID   `json:"category_ids"`
	RatingAvg       float64       `json:"rating_avg"`
	RatingCount     int           `json:"rating_count"`
	IsVisible       bool          `json:"is_visible"`
	Gallery         []GalleryItem `json:"gallery,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// GalleryItem exposes one work sample image.
type GalleryItem struct {
	ID       uuid.UUID `json:"id"`
	Path     string    `json:"path"`
	Position int       `json:"position"`
}

// AvailabilitySlot is one bookable window.
type AvailabilitySlot struct {
	ID      uuid.UUID `json:"id,omitempty"`
	StartAt time.Time `json:"start_at" validate:"required"`
	EndAt   time.Time `json:"end_at" validate:"required"`
}

// BrowseFilters describe the supported filter knobs for the tasker browse endpoint.
type BrowseFilters struct {
	CityID       *uuid.UUID `json:"city_id,omitempty"`
	CategoryID   *uuid.UUID `json:"category_id,omitempty"`
	RateMinCents *int64     `json:"rate_min_cents,omitempty"`
	RateMaxCents *int64     `json:"rate_max_cents,omitempty"`
	RatingMin    *float64   `json:"rating_min,omitempty"`
	Query        string     `json:"q,omitempty"`
}

// BrowseInput captures the inputs needed to paginate/filter tasker listings.
type BrowseInput struct {
	Filters    BrowseFilters
	Pagination pagination.Params
}

// BrowseResult is one page of tasker listings plus the next cursor.
type BrowseResult struct {
	Taskers    []ProfileDTO `json:"taskers"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func profileFromModel(p *models.TaskerProfile, firstName, lastName string) *ProfileDTO {
	if p == nil {
		return nil
	}
	return &ProfileDTO{
		ID:              p.ID,
		UserID:          p.UserID,
		FirstName:       firstName,
		LastName:        lastName,
		Description:     p.Description,
		HourlyRateCents: p.HourlyRateCents,
		CityID:          p.CityID,
		CategoryIDs:     append([]uuid.UUID(nil), []uuid.UUID(p.CategoryIDs)...),
		RatingAvg:       p.RatingAvg,
		RatingCount:     p.RatingCount,
		IsVisible:       p.IsVisible,
		CreatedAt:       p.CreatedAt,
	}
}
