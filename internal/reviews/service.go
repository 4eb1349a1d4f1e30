package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tasklinkhq/tasklink-backend/internal/taskers"
	dbpkg "github.com/tasklinkhq/tasklink-backend/pkg/db"
	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	pkgerrors "github.com/tasklinkhq/tasklink-backend/pkg/errors"
	"github.com/tasklinkhq/tasklink-backend/pkg/outbox"
	"github.com/tasklinkhq/tasklink-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type requestReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.TaskRequest, error)
}

type ratingAdjuster interface {
	AdjustRating(ctx context.Context, userID uuid.UUID, rating int) error
}

// CreateInput is the sender's rating of a completed request.
type CreateInput struct {
	TaskRequestID uuid.UUID
	ActorUserID   uuid.UUID
	Rating        int    `validate:"required,min=1,max=5"`
	Comment       string `validate:"omitempty,max=2000"`
}

// ReviewDTO is a review as shown on a tasker's public profile.
type ReviewDTO struct {
	ID            uuid.UUID `json:"id"`
	TaskRequestID uuid.UUID `json:"task_request_id"`
	TaskerID      uuid.UUID `json:"tasker_id"`
	Rating        int       `json:"rating"`
	Comment       *string   `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Service handles reviews of completed requests.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*ReviewDTO, error)
	ListForTasker(ctx context.Context, taskerID uuid.UUID, limit int) ([]ReviewDTO, error)
}

// ServiceParams bundles the dependencies required to build the service.
type ServiceParams struct {
	Repo          Repository
	Tx            txRunner
	Outbox        outboxPublisher
	Requests      requestReader
	RatingFactory func(tx *gorm.DB) ratingAdjuster
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	requests requestReader
	ratings  func(tx *gorm.DB) ratingAdjuster
}

// NewService builds a review service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("review repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Requests == nil {
		return nil, fmt.Errorf("request reader required")
	}
	ratings := params.RatingFactory
	if ratings == nil {
		ratings = func(tx *gorm.DB) ratingAdjuster {
			return taskers.NewRepository(tx)
		}
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		outbox:   params.Outbox,
		requests: params.Requests,
		ratings:  ratings,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*ReviewDTO, error) {
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}

	request, err := s.requests.FindByID(ctx, input.TaskRequestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "task request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load task request")
	}
	if request.SenderID != input.ActorUserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the sender can review a request")
	}
	if request.Status != enums.TaskRequestStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only completed requests can be reviewed")
	}

	review := &models.Review{
		TaskRequestID: request.ID,
		SenderID:      request.SenderID,
		TaskerID:      request.TaskerID,
		Rating:        input.Rating,
	}
	if comment := strings.TrimSpace(input.Comment); comment != "" {
		review.Comment = &comment
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, review); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "request already reviewed")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
		}
		if err := s.ratings(tx).AdjustRating(ctx, request.TaskerID, input.Rating); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update tasker rating")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReviewCreated,
			AggregateType: enums.AggregateReview,
			AggregateID:   review.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID},
			Data: payloads.ReviewCreatedEvent{
				ReviewID:      review.ID,
				TaskRequestID: request.ID,
				TaskerID:      request.TaskerID,
				Rating:        input.Rating,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	dto := fromModel(*review)
	return &dto, nil
}

func (s *service) ListForTasker(ctx context.Context, taskerID uuid.UUID, limit int) ([]ReviewDTO, error) {
	rows, err := s.repo.ListByTasker(ctx, taskerID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	out := make([]ReviewDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromModel(row))
	}
	return out, nil
}

func fromModel(r models.Review) ReviewDTO {
	return ReviewDTO{
		ID:            r.ID,
		TaskRequestID: r.TaskRequestID,
		TaskerID:      r.TaskerID,
		Rating:        r.Rating,
		Comment:       r.Comment,
		CreatedAt:     r.CreatedAt,
	}
}
