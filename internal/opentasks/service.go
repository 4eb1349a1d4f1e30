package opentasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tasklinkhq/tasklink-backend/internal/payments"
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

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Service drives the open task board and its offers.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*OpenTaskDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*OpenTaskDTO, error)
	Browse(ctx context.Context, input BrowseInput) (*BrowseResult, error)
	ListMine(ctx context.Context, senderID uuid.UUID) ([]OpenTaskDTO, error)
	Update(ctx context.Context, input UpdateInput) (*OpenTaskDTO, error)
	Cancel(ctx context.Context, id, actorUserID uuid.UUID) error

	CreateOffer(ctx context.Context, input OfferInput) (*OfferDTO, error)
	ListOffers(ctx context.Context, openTaskID, actorUserID uuid.UUID) ([]OfferDTO, error)
	RejectOffer(ctx context.Context, offerID, actorUserID uuid.UUID) error
	AcceptOffer(ctx context.Context, input AcceptOfferInput) (*AcceptOfferResult, error)

	RevertToOpen(ctx context.Context, tx *gorm.DB, openTaskID uuid.UUID) error
}

// ServiceParams bundles the dependencies required to build the service.
type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Outbox outboxPublisher
	Users  userReader
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	users  userReader
}

// NewService builds an open task service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("open task repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user reader required")
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		outbox: params.Outbox,
		users:  params.Users,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*OpenTaskDTO, error) {
	if input.SenderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Description) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title and description are required")
	}
	if input.DurationMinutes <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "duration must be positive")
	}
	for _, slot := range input.Dates {
		if !slot.EndAt.After(slot.StartAt) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "date end must be after its start")
		}
	}

	task := &models.OpenTask{
		SenderID:        input.SenderID,
		CategoryID:      input.CategoryID,
		CityID:          input.CityID,
		Title:           strings.TrimSpace(input.Title),
		Description:     strings.TrimSpace(input.Description),
		Location:        strings.TrimSpace(input.Location),
		DurationMinutes: input.DurationMinutes,
		BudgetCents:     input.BudgetCents,
		Status:          enums.OpenTaskStatusOpen,
	}
	for _, path := range input.PhotoPaths {
		task.Photos = append(task.Photos, models.OpenTaskPhoto{Path: path})
	}
	for _, slot := range input.Dates {
		task.Dates = append(task.Dates, models.OpenTaskDate{StartAt: slot.StartAt, EndAt: slot.EndAt})
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create open task")
	}
	dto := taskFromModel(*task)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*OpenTaskDTO, error) {
	task, err := s.findTask(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := taskFromModel(*task)
	return &dto, nil
}

func (s *service) Browse(ctx context.Context, input BrowseInput) (*BrowseResult, error) {
	rows, nextCursor, err := s.repo.Browse(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "browse open tasks")
	}
	tasks := make([]OpenTaskDTO, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, taskFromModel(row))
	}
	return &BrowseResult{Tasks: tasks, NextCursor: nextCursor}, nil
}

func (s *service) ListMine(ctx context.Context, senderID uuid.UUID) ([]OpenTaskDTO, error) {
	if senderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.ListBySender(ctx, senderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list open tasks")
	}
	tasks := make([]OpenTaskDTO, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, taskFromModel(row))
	}
	return tasks, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*OpenTaskDTO, error) {
	task, err := s.findTask(ctx, input.OpenTaskID)
	if err != nil {
		return nil, err
	}
	if task.SenderID != input.ActorUserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the task owner can edit it")
	}
	if task.Status != enums.OpenTaskStatusOpen {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only open tasks can be edited")
	}

	fields := map[string]any{}
	if input.Title != nil {
		fields["title"] = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		fields["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Location != nil {
		fields["location"] = strings.TrimSpace(*input.Location)
	}
	if input.DurationMinutes != nil {
		if *input.DurationMinutes <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duration must be positive")
		}
		fields["duration_minutes"] = *input.DurationMinutes
	}
	if input.BudgetCents != nil {
		fields["budget_cents"] = *input.BudgetCents
	}
	if err := s.repo.UpdateFields(ctx, task.ID, fields); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update open task")
	}
	return s.Get(ctx, task.ID)
}

func (s *service) Cancel(ctx context.Context, id, actorUserID uuid.UUID) error {
	task, err := s.findTask(ctx, id)
	if err != nil {
		return err
	}
	if task.SenderID != actorUserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the task owner can cancel it")
	}
	ok, err := s.repo.UpdateStatusGuarded(ctx, id, enums.OpenTaskStatusOpen, enums.OpenTaskStatusCancelled)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel open task")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only open tasks can be canceled")
	}
	return nil
}

func (s *service) CreateOffer(ctx context.Context, input OfferInput) (*OfferDTO, error) {
	if input.TaskerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.HourlyRateCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hourly rate must be positive")
	}
	user, err := s.users.FindByID(ctx, input.TaskerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if user.Role != enums.UserRoleTasker {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only taskers can send offers")
	}

	task, err := s.findTask(ctx, input.OpenTaskID)
	if err != nil {
		return nil, err
	}
	if task.SenderID == input.TaskerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot bid on your own task")
	}
	if task.Status != enums.OpenTaskStatusOpen {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "task is no longer open")
	}

	offer := &models.OpenTaskOffer{
		OpenTaskID:      task.ID,
		TaskerID:        input.TaskerID,
		Message:         strings.TrimSpace(input.Message),
		HourlyRateCents: input.HourlyRateCents,
		Status:          enums.OfferStatusPending,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOffer(ctx, offer); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "create offer")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOfferCreated,
			AggregateType: enums.AggregateOpenTask,
			AggregateID:   task.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.TaskerID, Role: string(enums.UserRoleTasker)},
			Data: payloads.OfferCreatedEvent{
				OfferID:    offer.ID,
				OpenTaskID: task.ID,
				SenderID:   task.SenderID,
				TaskerID:   input.TaskerID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	dto := offerFromModel(*offer)
	return &dto, nil
}

func (s *service) ListOffers(ctx context.Context, openTaskID, actorUserID uuid.UUID) ([]OfferDTO, error) {
	task, err := s.findTask(ctx, openTaskID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListOffers(ctx, openTaskID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list offers")
	}
	offers := make([]OfferDTO, 0, len(rows))
	for _, row := range rows {
		// The owner sees every offer; a tasker sees only their own.
		if task.SenderID != actorUserID && row.TaskerID != actorUserID {
			continue
		}
		offers = append(offers, offerFromModel(row))
	}
	return offers, nil
}

func (s *service) RejectOffer(ctx context.Context, offerID, actorUserID uuid.UUID) error {
	offer, err := s.findOffer(ctx, offerID)
	if err != nil {
		return err
	}
	task, err := s.findTask(ctx, offer.OpenTaskID)
	if err != nil {
		return err
	}
	if task.SenderID != actorUserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the task owner can reject offers")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.UpdateOfferStatusGuarded(ctx, offerID, enums.OfferStatusPending, enums.OfferStatusRejected)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject offer")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "offer is no longer pending")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOfferRejected,
			AggregateType: enums.AggregateOpenTask,
			AggregateID:   task.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actorUserID},
			Data: payloads.OfferRejectedEvent{
				OfferID:    offerID,
				OpenTaskID: task.ID,
				TaskerID:   offer.TaskerID,
			},
		})
	})
}

// AcceptOffer converts a board task into a direct request in one
// transaction. The request copies the offer's terms at acceptance time;
// later edits to the open task do not propagate.
func (s *service) AcceptOffer(ctx context.Context, input AcceptOfferInput) (*AcceptOfferResult, error) {
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var result *AcceptOfferResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		offer, err := repo.FindOfferByID(ctx, input.OfferID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
		}
		task, err := repo.FindByID(ctx, offer.OpenTaskID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open task")
		}
		if task.SenderID != input.ActorUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the task owner can accept offers")
		}

		assigned, err := repo.UpdateStatusGuarded(ctx, task.ID, enums.OpenTaskStatusOpen, enums.OpenTaskStatusAssigned)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign open task")
		}
		if !assigned {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "task is no longer open")
		}
		accepted, err := repo.UpdateOfferStatusGuarded(ctx, offer.ID, enums.OfferStatusPending, enums.OfferStatusAccepted)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept offer")
		}
		if !accepted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "offer is no longer pending")
		}
		if err := repo.RejectPendingOffersExcept(ctx, task.ID, offer.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject competing offers")
		}

		openTaskID := task.ID
		request := &models.TaskRequest{
			SenderID:        task.SenderID,
			TaskerID:        offer.TaskerID,
			CategoryID:      task.CategoryID,
			Description:     task.Description,
			Location:        task.Location,
			DurationMinutes: task.DurationMinutes,
			HourlyRateCents: offer.HourlyRateCents,
			Status:          enums.TaskRequestStatusWaitingForPayment,
			IsOpenTask:      true,
			OpenTaskID:      &openTaskID,
		}
		if input.DateID != nil {
			date, err := repo.FindDate(ctx, task.ID, *input.DateID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeValidation, "chosen date does not belong to the task")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load date")
			}
			request.SlotStart = &date.StartAt
			request.SlotEnd = &date.EndAt
		}
		if err := repo.CreateTaskRequest(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create task request")
		}
		if err := repo.MovePhotosToTaskRequest(ctx, task.ID, request.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "carry photos over")
		}

		result = &AcceptOfferResult{
			OfferID:       offer.ID,
			OpenTaskID:    task.ID,
			TaskRequestID: request.ID,
			TaskerID:      offer.TaskerID,
			AmountCents:   payments.TaskAmountCents(request.HourlyRateCents, request.DurationMinutes),
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOfferAccepted,
			AggregateType: enums.AggregateOpenTask,
			AggregateID:   task.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: string(input.ActorRole)},
			Data: payloads.OfferAcceptedEvent{
				OfferID:       offer.ID,
				OpenTaskID:    task.ID,
				TaskRequestID: request.ID,
				SenderID:      task.SenderID,
				TaskerID:      offer.TaskerID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RevertToOpen returns an assigned task to the board inside the caller's
// transaction and reopens the winning offer.
func (s *service) RevertToOpen(ctx context.Context, tx *gorm.DB, openTaskID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)
	ok, err := repo.UpdateStatusGuarded(ctx, openTaskID, enums.OpenTaskStatusAssigned, enums.OpenTaskStatusOpen)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reopen task")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "task is not assigned")
	}
	if err := repo.ResetAcceptedOffer(ctx, openTaskID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reopen offer")
	}
	return nil
}

func (s *service) findTask(ctx context.Context, id uuid.UUID) (*models.OpenTask, error) {
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "open task not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open task")
	}
	return task, nil
}

func (s *service) findOffer(ctx context.Context, id uuid.UUID) (*models.OpenTaskOffer, error) {
	offer, err := s.repo.FindOfferByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offer")
	}
	return offer, nil
}
