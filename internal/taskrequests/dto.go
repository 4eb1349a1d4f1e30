package taskrequests

import (
	"time"

	"github.com/google/uuid"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	"github.com/tasklinkhq/tasklink-backend/pkg/pagination"
)

// CreateInput captures a sender booking a specific tasker directly.
type CreateInput struct {
	SenderID        uuid.UUID
	TaskerID        uuid.UUID  `validate:"required"`
	CategoryID      uuid.UUID  `validate:"required"`
	Description     string     `validate:"required,max=4000"`
	Location        string     `validate:"required,max=500"`
	DurationMinutes int        `validate:"required,gt=0"`
	HourlyRateCents int64      `validate:"required,gt=0"`
	SlotStart       *time.Time `validate:"omitempty"`
	SlotEnd         *time.Time `validate:"omitempty"`
	PhotoPaths      []string   `validate:"omitempty,dive,required"`
}

// UpdateStatusInput carries a requested transition. RequestedStatus is the
// raw client value; legacy spellings such as "accepted" are mapped during
// parsing.
type UpdateStatusInput struct {
	TaskRequestID   uuid.UUID
	RequestedStatus string
	ActorUserID     uuid.UUID
	ActorRole       enums.UserRole
}

// ListDirection selects which side of the request the caller is on.
type ListDirection string

const (
	ListSent     ListDirection = "sent"
	ListReceived ListDirection = "received"
)

// ListInput filters a user's request listing.
type ListInput struct {
	UserID     uuid.UUID
	Direction  ListDirection
	Status     *enums.TaskRequestStatus
	Pagination pagination.Params
}

// TaskRequestDTO is a request as shown to one of its parties.
type TaskRequestDTO struct {
	ID              uuid.UUID               `json:"id"`
	SenderID        uuid.UUID               `json:"sender_id"`
	TaskerID        uuid.UUID               `json:"tasker_id"`
	CategoryID      uuid.UUID               `json:"category_id"`
	Description     string                  `json:"description"`
	Location        string                  `json:"location"`
	DurationMinutes int                     `json:"duration_minutes"`
	HourlyRateCents int64                   `json:"hourly_rate_cents"`
	AmountCents     int64                   `json:"amount_cents"`
	SlotStart       *time.Time              `json:"slot_start,omitempty"`
	SlotEnd         *time.Time              `json:"slot_end,omitempty"`
	Status          enums.TaskRequestStatus `json:"status"`
	IsOpenTask      bool                    `json:"is_open_task"`
	OpenTaskID      *uuid.UUID              `json:"open_task_id,omitempty"`
	PhotoPaths      []string                `json:"photo_paths"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// ListResult is one page of requests.
type ListResult struct {
	Requests   []TaskRequestDTO `json:"requests"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// UpdateStatusResult reports the applied transition. Deleted is true when
// canceling an unpaid open-task request removed the row entirely.
type UpdateStatusResult struct {
	TaskRequestID uuid.UUID               `json:"task_request_id"`
	Status        enums.TaskRequestStatus `json:"status"`
	Deleted       bool                    `json:"deleted,omitempty"`
}

func requestFromModel(r models.TaskRequest, amountCents int64) TaskRequestDTO {
	paths := make([]string, 0, len(r.Photos))
	for _, photo := range r.Photos {
		paths = append(paths, photo.Path)
	}
	return TaskRequestDTO{
		ID:              r.ID,
		SenderID:        r.SenderID,
		TaskerID:        r.TaskerID,
		CategoryID:      r.CategoryID,
		Description:     r.Description,
		Location:        r.Location,
		DurationMinutes: r.DurationMinutes,
		HourlyRateCents: r.HourlyRateCents,
		AmountCents:     amountCents,
		SlotStart:       r.SlotStart,
		SlotEnd:         r.SlotEnd,
		Status:          r.Status,
		IsOpenTask:      r.IsOpenTask,
		OpenTaskID:      r.OpenTaskID,
		PhotoPaths:      paths,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}
