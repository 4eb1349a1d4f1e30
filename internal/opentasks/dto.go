package opentasks

import (
	"time"

	"github.com/google/uuid"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	"github.com/tasklinkhq/tasklink-backend/pkg/pagination"
)

// CreateInput captures a customer posting a task to the public board.
type CreateInput struct {
	SenderID        uuid.UUID
	CategoryID      uuid.UUID  `validate:"required"`
	CityID          uuid.UUID  `validate:"required"`
	Title           string     `validate:"required,max=200"`
	Description     string     `validate:"required,max=4000"`
	Location        string     `validate:"required,max=500"`
	DurationMinutes int        `validate:"required,gt=0"`
	BudgetCents     *int64     `validate:"omitempty,gt=0"`
	PhotoPaths      []string   `validate:"omitempty,dive,required"`
	Dates           []DateSlot `validate:"omitempty,dive"`
}

// UpdateInput carries editable fields; nil means keep the stored value.
type UpdateInput struct {
	OpenTaskID      uuid.UUID
	ActorUserID     uuid.UUID
	Title           *string `validate:"omitempty,max=200"`
	Description     *string `validate:"omitempty,max=4000"`
	Location        *string `validate:"omitempty,max=500"`
	DurationMinutes *int    `validate:"omitempty,gt=0"`
	BudgetCents     *int64  `validate:"omitempty,gt=0"`
}

// DateSlot is a candidate time window proposed by the sender.
type DateSlot struct {
	ID      uuid.UUID `json:"id,omitempty"`
	StartAt time.Time `json:"start_at" validate:"required"`
	EndAt   time.Time `json:"end_at" validate:"required"`
}

// BrowseInput filters the public board.
type BrowseInput struct {
	CityID     *uuid.UUID
	CategoryID *uuid.UUID
	Pagination pagination.Params
}

// OpenTaskDTO is a board task with its photos and candidate dates.
type OpenTaskDTO struct {
	ID              uuid.UUID            `json:"id"`
	SenderID        uuid.UUID            `json:"sender_id"`
	CategoryID      uuid.UUID            `json:"category_id"`
	CityID          uuid.UUID            `json:"city_id"`
	Title           string               `json:"title"`
	Description     string               `json:"description"`
	Location        string               `json:"location"`
	DurationMinutes int                  `json:"duration_minutes"`
	BudgetCents     *int64               `json:"budget_cents,omitempty"`
	Status          enums.OpenTaskStatus `json:"status"`
	PhotoPaths      []string             `json:"photo_paths"`
	Dates           []DateSlot           `json:"dates"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// BrowseResult is one page of board tasks.
type BrowseResult struct {
	Tasks      []OpenTaskDTO `json:"tasks"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// OfferInput is a tasker bid on a board task.
type OfferInput struct {
	OpenTaskID      uuid.UUID
	TaskerID        uuid.UUID
	Message         string `validate:"required,max=2000"`
	HourlyRateCents int64  `validate:"required,gt=0"`
}

// OfferDTO is a bid as shown to the task owner or its author.
type OfferDTO struct {
	ID              uuid.UUID         `json:"id"`
	OpenTaskID      uuid.UUID         `json:"open_task_id"`
	TaskerID        uuid.UUID         `json:"tasker_id"`
	Message         string            `json:"message"`
	HourlyRateCents int64             `json:"hourly_rate_cents"`
	Status          enums.OfferStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
}

// AcceptOfferInput names the offer and, optionally, which proposed date
// becomes the booked slot.
type AcceptOfferInput struct {
	OfferID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
	DateID      *uuid.UUID
}

// AcceptOfferResult reports the task request synthesized from the offer.
type AcceptOfferResult struct {
	OfferID       uuid.UUID `json:"offer_id"`
	OpenTaskID    uuid.UUID `json:"open_task_id"`
	TaskRequestID uuid.UUID `json:"task_request_id"`
	TaskerID      uuid.UUID `json:"tasker_id"`
	AmountCents   int64     `json:"amount_cents"`
}

func taskFromModel(task models.OpenTask) OpenTaskDTO {
	paths := make([]string, 0, len(task.Photos))
	for _, photo := range task.Photos {
		paths = append(paths, photo.Path)
	}
	dates := make([]DateSlot, 0, len(task.Dates))
	for _, date := range task.Dates {
		dates = append(dates, DateSlot{ID: date.ID, StartAt: date.StartAt, EndAt: date.EndAt})
	}
	return OpenTaskDTO{
		ID:              task.ID,
		SenderID:        task.SenderID,
		CategoryID:      task.CategoryID,
		CityID:          task.CityID,
		Title:           task.Title,
		Description:     task.Description,
		Location:        task.Location,
		DurationMinutes: task.DurationMinutes,
		BudgetCents:     task.BudgetCents,
		Status:          task.Status,
		PhotoPaths:      paths,
		Dates:           dates,
		CreatedAt:       task.CreatedAt,
		UpdatedAt:       task.UpdatedAt,
	}
}

func offerFromModel(offer models.OpenTaskOffer) OfferDTO {
	return OfferDTO{
		ID:              offer.ID,
		OpenTaskID:      offer.OpenTaskID,
		TaskerID:        offer.TaskerID,
		Message:         offer.Message,
		HourlyRateCents: offer.HourlyRateCents,
		Status:          offer.Status,
		CreatedAt:       offer.CreatedAt,
	}
}
