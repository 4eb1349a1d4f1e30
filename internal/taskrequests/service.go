package taskrequests

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

// paymentLedger is the slice of the payments service the lifecycle needs:
// reversing a payment on a paid cancel, inside the transition's transaction.
// Completion moves no money; the tasker was credited when the payment landed.
type paymentLedger interface {
	ReverseForTask(ctx context.Context, tx *gorm.DB, taskRequestID uuid.UUID, actor *outbox.ActorRef) error
}

// openTaskReverter returns a converted open task to the board when its
// derived request is canceled.
type openTaskReverter interface {
	RevertToOpen(ctx context.Context, tx *gorm.DB, openTaskID uuid.UUID) error
}

// Service drives the task request lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*TaskRequestDTO, error)
	Get(ctx context.Context, id, actorUserID uuid.UUID) (*TaskRequestDTO, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*UpdateStatusResult, error)
}

// ServiceParams bundles the dependencies required to build the service.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Outbox    outboxPublisher
	Payments  paymentLedger
	OpenTasks openTaskReverter
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	payments  paymentLedger
	openTasks openTaskReverter
}

// NewService builds a task request service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("task request repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment ledger required")
	}
	if params.OpenTasks == nil {
		return nil, fmt.Errorf("open task reverter required")
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		outbox:    params.Outbox,
		payments:  params.Payments,
		openTasks: params.OpenTasks,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*TaskRequestDTO, error) {
	if input.SenderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.TaskerID == uuid.Nil || input.TaskerID == input.SenderID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a request must target another user")
	}
	if strings.TrimSpace(input.Description) == "" || strings.TrimSpace(input.Location) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description and location are required")
	}
	if input.DurationMinutes <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "duration must be positive")
	}
	if input.HourlyRateCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hourly rate must be positive")
	}
	if input.SlotStart != nil && input.SlotEnd != nil && !input.SlotEnd.After(*input.SlotStart) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slot end must be after slot start")
	}

	request := &models.TaskRequest{
		SenderID:        input.SenderID,
		TaskerID:        input.TaskerID,
		CategoryID:      input.CategoryID,
		Description:     strings.TrimSpace(input.Description),
		Location:        strings.TrimSpace(input.Location),
		DurationMinutes: input.DurationMinutes,
		HourlyRateCents: input.HourlyRateCents,
		SlotStart:       input.SlotStart,
		SlotEnd:         input.SlotEnd,
		Status:          enums.TaskRequestStatusPending,
	}
	for _, path := range input.PhotoPaths {
		request.Photos = append(request.Photos, models.TaskRequestPhoto{Path: path})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create task request")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventTaskRequestCreated,
			AggregateType: enums.AggregateTaskRequest,
			AggregateID:   request.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.SenderID},
			Data: payloads.TaskRequestCreatedEvent{
				TaskRequestID: request.ID,
				SenderID:      request.SenderID,
				TaskerID:      request.TaskerID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	dto := requestFromModel(*request, payments.TaskAmountCents(request.HourlyRateCents, request.DurationMinutes))
	return &dto, nil
}

func (s *service) Get(ctx context.Context, id, actorUserID uuid.UUID) (*TaskRequestDTO, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "task request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load task request")
	}
	if request.SenderID != actorUserID && request.TaskerID != actorUserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only request parties can view it")
	}
	dto := requestFromModel(*request, payments.TaskAmountCents(request.HourlyRateCents, request.DurationMinutes))
	return &dto, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown status filter")
	}
	rows, nextCursor, err := s.repo.List(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list task requests")
	}
	requests := make([]TaskRequestDTO, 0, len(rows))
	for _, row := range rows {
		requests = append(requests, requestFromModel(row, payments.TaskAmountCents(row.HourlyRateCents, row.DurationMinutes)))
	}
	return &ListResult{Requests: requests, NextCursor: nextCursor}, nil
}

// UpdateStatus applies one lifecycle transition. The whole transition,
// including any ledger reversal and the open task revert, commits as a
// single transaction with the outbox event.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*UpdateStatusResult, error) {
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	target, err := enums.ParseTaskRequestStatus(input.RequestedStatus)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse status")
	}

	var result *UpdateStatusResult
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := repo.FindForUpdate(ctx, input.TaskRequestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "task request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load task request")
		}

		if err := authorizeTransition(request, target, input); err != nil {
			return err
		}

		applied, err := s.applyTransition(ctx, tx, repo, request, target, input)
		if err != nil {
			return err
		}
		result = applied
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return result, nil
}

// authorizeTransition enforces who may request each target status.
func authorizeTransition(request *models.TaskRequest, target enums.TaskRequestStatus, input UpdateStatusInput) error {
	isSender := request.SenderID == input.ActorUserID
	isTasker := request.TaskerID == input.ActorUserID
	if !isSender && !isTasker {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only request parties can change it")
	}

	switch target {
	case enums.TaskRequestStatusWaitingForPayment, enums.TaskRequestStatusDeclined, enums.TaskRequestStatusCanceled:
		if !isTasker {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the tasker can apply this status")
		}
	case enums.TaskRequestStatusCanceledBySender, enums.TaskRequestStatusCompleted:
		if !isSender {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the sender can apply this status")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("status %s cannot be set directly", target))
	}
	return nil
}

// transitionTable lists the legal current → target pairs reachable through
// UpdateStatus. paid and refunded are entered only by the payment flow.
var transitionTable = map[enums.TaskRequestStatus][]enums.TaskRequestStatus{
	enums.TaskRequestStatusPending: {
		enums.TaskRequestStatusWaitingForPayment,
		enums.TaskRequestStatusDeclined,
		enums.TaskRequestStatusCanceledBySender,
	},
	enums.TaskRequestStatusWaitingForPayment: {
		enums.TaskRequestStatusCanceled,
		enums.TaskRequestStatusCanceledBySender,
	},
	enums.TaskRequestStatusPaid: {
		enums.TaskRequestStatusCompleted,
		enums.TaskRequestStatusCanceled,
		enums.TaskRequestStatusCanceledBySender,
	},
}

func transitionAllowed(from, to enums.TaskRequestStatus) bool {
	for _, candidate := range transitionTable[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func (s *service) applyTransition(ctx context.Context, tx *gorm.DB, repo Repository, request *models.TaskRequest, target enums.TaskRequestStatus, input UpdateStatusInput) (*UpdateStatusResult, error) {
	if !transitionAllowed(request.Status, target) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move request from %s to %s", request.Status, target))
	}

	actor := &outbox.ActorRef{UserID: input.ActorUserID, Role: string(input.ActorRole)}
	oldStatus := request.Status
	finalStatus := target
	deleted := false

	switch {
	case request.Status == enums.TaskRequestStatusWaitingForPayment && isCancel(target):
		// Unpaid cancel. A converted open task returns to the board and the
		// request row disappears with it.
		if request.IsOpenTask && request.OpenTaskID != nil {
			if err := s.openTasks.RevertToOpen(ctx, tx, *request.OpenTaskID); err != nil {
				return nil, err
			}
			if err := repo.MovePhotosToOpenTask(ctx, request.ID, *request.OpenTaskID); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "return photos to open task")
			}
			if err := repo.DeleteWithChildren(ctx, request.ID); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete canceled request")
			}
			deleted = true
		} else if err := repo.UpdateStatus(ctx, request.ID, target); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update status")
		}

	case request.Status == enums.TaskRequestStatusPaid && isCancel(target):
		// Paid cancel. Money goes back to the sender and the request is kept
		// as a refunded record.
		if err := s.payments.ReverseForTask(ctx, tx, request.ID, actor); err != nil {
			return nil, err
		}
		if request.IsOpenTask && request.OpenTaskID != nil {
			if err := s.openTasks.RevertToOpen(ctx, tx, *request.OpenTaskID); err != nil {
				return nil, err
			}
			if err := repo.MovePhotosToOpenTask(ctx, request.ID, *request.OpenTaskID); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "return photos to open task")
			}
		}
		finalStatus = enums.TaskRequestStatusRefunded
		if err := repo.UpdateStatus(ctx, request.ID, finalStatus); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update status")
		}

	default:
		if err := repo.UpdateStatus(ctx, request.ID, target); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update status")
		}
	}

	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventTaskRequestStatusChanged,
		AggregateType: enums.AggregateTaskRequest,
		AggregateID:   request.ID,
		Version:       1,
		Actor:         actor,
		Data: payloads.TaskRequestStatusChangedEvent{
			TaskRequestID: request.ID,
			SenderID:      request.SenderID,
			TaskerID:      request.TaskerID,
			OldStatus:     oldStatus,
			NewStatus:     finalStatus,
		},
	})
	if err != nil {
		return nil, err
	}

	return &UpdateStatusResult{
		TaskRequestID: request.ID,
		Status:        finalStatus,
		Deleted:       deleted,
	}, nil
}

func isCancel(status enums.TaskRequestStatus) bool {
	return status == enums.TaskRequestStatusCanceled || status == enums.TaskRequestStatusCanceledBySender
}
