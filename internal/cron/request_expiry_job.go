package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tasklinkhq/tasklink-backend/internal/taskrequests"
	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	"github.com/tasklinkhq/tasklink-backend/pkg/logger"
	"github.com/tasklinkhq/tasklink-backend/pkg/outbox"
	"github.com/tasklinkhq/tasklink-backend/pkg/outbox/payloads"
)

const (
	defaultPaymentWindow = 72 * time.Hour
	expirySweepBatchSize = 200
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type outboxExistenceChecker interface {
	Exists(ctx context.Context, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID) (bool, error)
}

type staleRequestReader interface {
	FindStaleWaitingForPayment(ctx context.Context, cutoff time.Time, limit int) ([]models.TaskRequest, error)
}

type transactionalRequestRepo interface {
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.TaskRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TaskRequestStatus) error
}

type requestRepoFactory func(tx *gorm.DB) transactionalRequestRepo

func defaultRequestRepo(tx *gorm.DB) transactionalRequestRepo {
	return taskrequests.NewRepository(tx)
}

type boardReverter interface {
	RevertToOpen(ctx context.Context, tx *gorm.DB, openTaskID uuid.UUID) error
}

// RequestExpiryJobParams configure the stale payment sweep.
type RequestExpiryJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	StaleReader   staleRequestReader
	Board         boardReverter
	Outbox        outboxEmitter
	OutboxRepo    outboxExistenceChecker
	PaymentWindow time.Duration
	RepoFactory   requestRepoFactory
}

// NewRequestExpiryJob builds the cron job that cancels task requests left
// unpaid past the payment window.
func NewRequestExpiryJob(params RequestExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.StaleReader == nil {
		return nil, fmt.Errorf("stale request reader required")
	}
	if params.Board == nil {
		return nil, fmt.Errorf("board reverter required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.OutboxRepo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	window := params.PaymentWindow
	if window <= 0 {
		window = defaultPaymentWindow
	}
	repoFactory := params.RepoFactory
	if repoFactory == nil {
		repoFactory = defaultRequestRepo
	}
	return &requestExpiryJob{
		logg:        params.Logger,
		db:          params.DB,
		staleReader: params.StaleReader,
		board:       params.Board,
		outbox:      params.Outbox,
		outboxRepo:  params.OutboxRepo,
		window:      window,
		repoFactory: repoFactory,
		now:         time.Now,
	}, nil
}

type requestExpiryJob struct {
	logg        *logger.Logger
	db          txRunner
	staleReader staleRequestReader
	board       boardReverter
	outbox      outboxEmitter
	outboxRepo  outboxExistenceChecker
	window      time.Duration
	repoFactory requestRepoFactory
	now         func() time.Time
}

func (j *requestExpiryJob) Name() string { return "request-expiry" }

func (j *requestExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	stale, err := j.staleReader.FindStaleWaitingForPayment(ctx, cutoff, expirySweepBatchSize)
	if err != nil {
		return fmt.Errorf("query stale requests: %w", err)
	}
	count := 0
	for _, request := range stale {
		expired, err := j.expireRequest(ctx, request)
		if err != nil {
			return err
		}
		if expired {
			count++
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff": cutoff,
		"count":  count,
	})
	j.logg.Info(logCtx, "request expiry sweep complete")
	return nil
}

func (j *requestExpiryJob) expireRequest(ctx context.Context, request models.TaskRequest) (bool, error) {
	exists, err := j.outboxRepo.Exists(ctx, enums.EventTaskRequestExpired, enums.AggregateTaskRequest, request.ID)
	if err != nil {
		return false, fmt.Errorf("check expiry event existence: %w", err)
	}
	if exists {
		return false, nil
	}

	expired := false
	err = j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repoFactory(tx)
		current, err := repo.FindForUpdate(ctx, request.ID)
		if err != nil {
			return err
		}
		if current.Status != enums.TaskRequestStatusWaitingForPayment {
			return nil
		}
		if err := repo.UpdateStatus(ctx, current.ID, enums.TaskRequestStatusCanceled); err != nil {
			return err
		}
		if current.IsOpenTask && current.OpenTaskID != nil {
			if err := j.board.RevertToOpen(ctx, tx, *current.OpenTaskID); err != nil {
				return err
			}
		}
		now := j.now().UTC()
		event := outbox.DomainEvent{
			EventType:     enums.EventTaskRequestExpired,
			AggregateType: enums.AggregateTaskRequest,
			AggregateID:   current.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.TaskRequestExpiredEvent{
				TaskRequestID: current.ID,
				SenderID:      current.SenderID,
				TaskerID:      current.TaskerID,
				ExpiredAt:     now,
			},
		}
		if err := j.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
		expired = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("expire request %s: %w", request.ID, err)
	}
	return expired, nil
}
