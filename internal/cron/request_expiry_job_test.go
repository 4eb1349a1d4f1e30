package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	"github.com/tasklinkhq/tasklink-backend/pkg/logger"
	"github.com/tasklinkhq/tasklink-backend/pkg/outbox"
	"github.com/tasklinkhq/tasklink-backend/pkg/outbox/payloads"
)

type expiryFakeTxRunner struct{}

func (expiryFakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeStaleReader struct {
	requests []models.TaskRequest
}

func (f *fakeStaleReader) FindStaleWaitingForPayment(ctx context.Context, cutoff time.Time, limit int) ([]models.TaskRequest, error) {
	return f.requests, nil
}

type fakeRequestStore struct {
	requests map[uuid.UUID]*models.TaskRequest
}

func (f *fakeRequestStore) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.TaskRequest, error) {
	return f.requests[id], nil
}

func (f *fakeRequestStore) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TaskRequestStatus) error {
	f.requests[id].Status = status
	return nil
}

type fakeBoardReverter struct {
	reverted []uuid.UUID
}

func (f *fakeBoardReverter) RevertToOpen(ctx context.Context, tx *gorm.DB, openTaskID uuid.UUID) error {
	f.reverted = append(f.reverted, openTaskID)
	return nil
}

type fakeExpiryOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeExpiryOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeExistenceChecker struct {
	existing map[uuid.UUID]bool
}

func (f *fakeExistenceChecker) Exists(ctx context.Context, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, aggregateID uuid.UUID) (bool, error) {
	return f.existing[aggregateID], nil
}

type expiryFixture struct {
	job     Job
	store   *fakeRequestStore
	board   *fakeBoardReverter
	outbox  *fakeExpiryOutbox
	checker *fakeExistenceChecker
}

func newExpiryFixture(t *testing.T, stale ...models.TaskRequest) *expiryFixture {
	t.Helper()
	store := &fakeRequestStore{requests: make(map[uuid.UUID]*models.TaskRequest)}
	for i := range stale {
		request := stale[i]
		store.requests[request.ID] = &request
	}
	board := &fakeBoardReverter{}
	events := &fakeExpiryOutbox{}
	checker := &fakeExistenceChecker{existing: make(map[uuid.UUID]bool)}
	job, err := NewRequestExpiryJob(RequestExpiryJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "test"}),
		DB:          expiryFakeTxRunner{},
		StaleReader: &fakeStaleReader{requests: stale},
		Board:       board,
		Outbox:      events,
		OutboxRepo:  checker,
		RepoFactory: func(tx *gorm.DB) transactionalRequestRepo { return store },
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	return &expiryFixture{job: job, store: store, board: board, outbox: events, checker: checker}
}

func staleRequest(open bool) models.TaskRequest {
	request := models.TaskRequest{
		ID:       uuid.New(),
		SenderID: uuid.New(),
		TaskerID: uuid.New(),
		Status:   enums.TaskRequestStatusWaitingForPayment,
	}
	if open {
		openTaskID := uuid.New()
		request.IsOpenTask = true
		request.OpenTaskID = &openTaskID
	}
	return request
}

func TestRequestExpiryCancelsStaleRequest(t *testing.T) {
	request := staleRequest(false)
	fx := newExpiryFixture(t, request)

	if err := fx.job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if fx.store.requests[request.ID].Status != enums.TaskRequestStatusCanceled {
		t.Fatalf("expected canceled, got %s", fx.store.requests[request.ID].Status)
	}
	if len(fx.outbox.events) != 1 || fx.outbox.events[0].EventType != enums.EventTaskRequestExpired {
		t.Fatalf("expected expiry event, got %+v", fx.outbox.events)
	}
	payload := fx.outbox.events[0].Data.(payloads.TaskRequestExpiredEvent)
	if payload.TaskRequestID != request.ID || payload.SenderID != request.SenderID {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if len(fx.board.reverted) != 0 {
		t.Fatal("direct request should not touch the board")
	}
}

func TestRequestExpiryRevertsOpenTask(t *testing.T) {
	request := staleRequest(true)
	fx := newExpiryFixture(t, request)

	if err := fx.job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fx.board.reverted) != 1 || fx.board.reverted[0] != *request.OpenTaskID {
		t.Fatalf("expected board task reverted, got %v", fx.board.reverted)
	}
}

func TestRequestExpirySkipsAlreadyEmitted(t *testing.T) {
	request := staleRequest(false)
	fx := newExpiryFixture(t, request)
	fx.checker.existing[request.ID] = true

	if err := fx.job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fx.outbox.events) != 0 {
		t.Fatalf("expected no events, got %d", len(fx.outbox.events))
	}
	if fx.store.requests[request.ID].Status != enums.TaskRequestStatusWaitingForPayment {
		t.Fatal("expected request untouched when event already exists")
	}
}

func TestRequestExpirySkipsRequestsPaidMeanwhile(t *testing.T) {
	request := staleRequest(false)
	fx := newExpiryFixture(t, request)
	fx.store.requests[request.ID].Status = enums.TaskRequestStatusPaid

	if err := fx.job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if fx.store.requests[request.ID].Status != enums.TaskRequestStatusPaid {
		t.Fatal("expected paid request untouched")
	}
	if len(fx.outbox.events) != 0 {
		t.Fatal("expected no events for requests no longer waiting")
	}
}
