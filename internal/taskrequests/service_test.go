package taskrequests

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	pkgerrors "github.com/tasklinkhq/tasklink-backend/pkg/errors"
	"github.com/tasklinkhq/tasklink-backend/pkg/outbox"
	"github.com/tasklinkhq/tasklink-backend/pkg/outbox/payloads"
)

type fakeRequestRepo struct {
	Repository
	requests    map[uuid.UUID]*models.TaskRequest
	movedPhotos []uuid.UUID
	deleted     []uuid.UUID
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{requests: make(map[uuid.UUID]*models.TaskRequest)}
}

func (f *fakeRequestRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRequestRepo) Create(ctx context.Context, request *models.TaskRequest) error {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	f.requests[request.ID] = request
	return nil
}

func (f *fakeRequestRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.TaskRequest, error) {
	request, ok := f.requests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return request, nil
}

func (f *fakeRequestRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.TaskRequest, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeRequestRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TaskRequestStatus) error {
	request, ok := f.requests[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	request.Status = status
	return nil
}

func (f *fakeRequestRepo) MovePhotosToOpenTask(ctx context.Context, taskRequestID, openTaskID uuid.UUID) error {
	f.movedPhotos = append(f.movedPhotos, taskRequestID)
	return nil
}

func (f *fakeRequestRepo) DeleteWithChildren(ctx context.Context, id uuid.UUID) error {
	delete(f.requests, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeLedger struct {
	reversed []uuid.UUID
	fail     error
}

func (f *fakeLedger) ReverseForTask(ctx context.Context, tx *gorm.DB, taskRequestID uuid.UUID, actor *outbox.ActorRef) error {
	if f.fail != nil {
		return f.fail
	}
	f.reversed = append(f.reversed, taskRequestID)
	return nil
}

type fakeReverter struct {
	reverted []uuid.UUID
}

func (f *fakeReverter) RevertToOpen(ctx context.Context, tx *gorm.DB, openTaskID uuid.UUID) error {
	f.reverted = append(f.reverted, openTaskID)
	return nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type requestsFixture struct {
	svc      Service
	repo     *fakeRequestRepo
	ledger   *fakeLedger
	reverter *fakeReverter
	outbox   *fakeOutbox
}

func newRequestsFixture(t *testing.T) *requestsFixture {
	t.Helper()
	repo := newFakeRequestRepo()
	ledger := &fakeLedger{}
	reverter := &fakeReverter{}
	events := &fakeOutbox{}
	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Tx:        fakeTxRunner{},
		Outbox:    events,
		Payments:  ledger,
		OpenTasks: reverter,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &requestsFixture{svc: svc, repo: repo, ledger: ledger, reverter: reverter, outbox: events}
}

func seedRequest(repo *fakeRequestRepo, status enums.TaskRequestStatus) *models.TaskRequest {
	request := &models.TaskRequest{
		ID:              uuid.New(),
		SenderID:        uuid.New(),
		TaskerID:        uuid.New(),
		CategoryID:      uuid.New(),
		Description:     "Assemble a wardrobe",
		Location:        "Vilnius",
		DurationMinutes: 120,
		HourlyRateCents: 2000,
		Status:          status,
	}
	repo.requests[request.ID] = request
	return request
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) || appErr.Code() != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func lastStatusChange(t *testing.T, events []outbox.DomainEvent) payloads.TaskRequestStatusChangedEvent {
	t.Helper()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].EventType == enums.EventTaskRequestStatusChanged {
			data, ok := events[i].Data.(payloads.TaskRequestStatusChangedEvent)
			if !ok {
				t.Fatalf("unexpected payload type %T", events[i].Data)
			}
			return data
		}
	}
	t.Fatal("no status change event emitted")
	return payloads.TaskRequestStatusChangedEvent{}
}

func TestCreateTaskRequest(t *testing.T) {
	fx := newRequestsFixture(t)
	senderID, taskerID := uuid.New(), uuid.New()

	dto, err := fx.svc.Create(context.Background(), CreateInput{
		SenderID:        senderID,
		TaskerID:        taskerID,
		CategoryID:      uuid.New(),
		Description:     "Mount a TV",
		Location:        "Kaunas",
		DurationMinutes: 90,
		HourlyRateCents: 3000,
		PhotoPaths:      []string{"tasks/tv.jpg"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if dto.Status != enums.TaskRequestStatusPending {
		t.Fatalf("expected pending, got %s", dto.Status)
	}
	if dto.AmountCents != 4500 {
		t.Fatalf("expected amount 4500, got %d", dto.AmountCents)
	}
	if len(fx.outbox.events) != 1 || fx.outbox.events[0].EventType != enums.EventTaskRequestCreated {
		t.Fatalf("expected created event, got %+v", fx.outbox.events)
	}
}

func TestCreateRejectsSelfRequest(t *testing.T) {
	fx := newRequestsFixture(t)
	userID := uuid.New()

	_, err := fx.svc.Create(context.Background(), CreateInput{
		SenderID:        userID,
		TaskerID:        userID,
		CategoryID:      uuid.New(),
		Description:     "x",
		Location:        "y",
		DurationMinutes: 60,
		HourlyRateCents: 1000,
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestGetRestrictedToParties(t *testing.T) {
	fx := newRequestsFixture(t)
	request := seedRequest(fx.repo, enums.TaskRequestStatusPending)

	if _, err := fx.svc.Get(context.Background(), request.ID, request.TaskerID); err != nil {
		t.Fatalf("tasker access: %v", err)
	}
	_, err := fx.svc.Get(context.Background(), request.ID, uuid.New())
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestTaskerAcceptsViaLegacySpelling(t *testing.T) {
	fx := newRequestsFixture(t)
	request := seedRequest(fx.repo, enums.TaskRequestStatusPending)

	result, err := fx.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		TaskRequestID:   request.ID,
		RequestedStatus: "Accepted",
		ActorUserID:     request.TaskerID,
		ActorRole:       enums.UserRoleTasker,
	})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if result.Status != enums.TaskRequestStatusWaitingForPayment {
		t.Fatalf("expected waiting_for_payment, got %s", result.Status)
	}
	change := lastStatusChange(t, fx.outbox.events)
	if change.OldStatus != enums.TaskRequestStatusPending || change.NewStatus != enums.TaskRequestStatusWaitingForPayment {
		t.Fatalf("unexpected event %+v", change)
	}
}

func TestSenderCannotAccept(t *testing.T) {
	fx := newRequestsFixture(t)
	request := seedRequest(fx.repo, enums.TaskRequestStatusPending)

	_, err := fx.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		TaskRequestID:   request.ID,
		RequestedStatus: "accepted",
		ActorUserID:     request.SenderID,
	})
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestIllegalTransitionIsStateConflict(t *testing.T) {
	fx := newRequestsFixture(t)
	request := seedRequest(fx.repo, enums.TaskRequestStatusPending)

	_, err := fx.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		TaskRequestID:   request.ID,
		RequestedStatus: "completed",
		ActorUserID:     request.SenderID,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)

	_, err = fx.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		TaskRequestID:   request.ID,
		RequestedStatus: "paid",
		ActorUserID:     request.SenderID,
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestCompletePaidRequestFlipsStatusOnly(t *testing.T) {
	fx := newRequestsFixture(t)
	request := seedRequest(fx.repo, enums.TaskRequestStatusPaid)

	result, err := fx.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		TaskRequestID:   request.ID,
		RequestedStatus: "completed",
		ActorUserID:     request.SenderID,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if result.Status != enums.TaskRequestStatusCompleted {
		t.Fatalf("expected completed, got %s", result.Status)
	}
	// The tasker was already credited at payment time.
	if len(fx.ledger.reversed) != 0 {
		t.Fatalf("completion must not touch the ledger, got %+v", fx.ledger.reversed)
	}
	change := lastStatusChange(t, fx.outbox.events)
	if change.NewStatus != enums.TaskRequestStatusCompleted {
		t.Fatalf("unexpected event %+v", change)
	}
}

func TestCancelPaidDirectRequestRefunds(t *testing.T) {
	fx := newRequestsFixture(t)
	request := seedRequest(fx.repo, enums.TaskRequestStatusPaid)

	result, err := fx.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		TaskRequestID:   request.ID,
		RequestedStatus: "cancelled_by_sender",
		ActorUserID:     request.SenderID,
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if result.Status != enums.TaskRequestStatusRefunded {
		t.Fatalf("expected refunded, got %s", result.Status)
	}
	if len(fx.ledger.reversed) != 1 {
		t.Fatalf("expected a reversal, got %+v", fx.ledger.reversed)
	}
	if len(fx.reverter.reverted) != 0 {
		t.Fatal("direct requests must not touch open tasks")
	}
	if request.Status != enums.TaskRequestStatusRefunded {
		t.Fatalf("expected stored status refunded, got %s", request.Status)
	}
}

func TestCancelUnpaidOpenTaskRequestRevertsAndDeletes(t *testing.T) {
	fx := newRequestsFixture(t)
	request := seedRequest(fx.repo, enums.TaskRequestStatusWaitingForPayment)
	openTaskID := uuid.New()
	request.IsOpenTask = true
	request.OpenTaskID = &openTaskID

	result, err := fx.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		TaskRequestID:   request.ID,
		RequestedStatus: "canceled",
		ActorUserID:     request.TaskerID,
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !result.Deleted {
		t.Fatal("expected the request row to be deleted")
	}
	if len(fx.reverter.reverted) != 1 || fx.reverter.reverted[0] != openTaskID {
		t.Fatalf("expected open task revert, got %+v", fx.reverter.reverted)
	}
	if len(fx.repo.movedPhotos) != 1 {
		t.Fatal("expected photos returned to the open task")
	}
	if len(fx.ledger.reversed) != 0 {
		t.Fatal("unpaid cancel must not touch the ledger")
	}
	if _, ok := fx.repo.requests[request.ID]; ok {
		t.Fatal("expected request removed")
	}
}

func TestCancelPaidOpenTaskRequestRevertsAndRefunds(t *testing.T) {
	fx := newRequestsFixture(t)
	request := seedRequest(fx.repo, enums.TaskRequestStatusPaid)
	openTaskID := uuid.New()
	request.IsOpenTask = true
	request.OpenTaskID = &openTaskID

	result, err := fx.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		TaskRequestID:   request.ID,
		RequestedStatus: "cancelled_by_sender",
		ActorUserID:     request.SenderID,
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if result.Deleted {
		t.Fatal("paid cancel must keep the request as a refunded record")
	}
	if result.Status != enums.TaskRequestStatusRefunded {
		t.Fatalf("expected refunded, got %s", result.Status)
	}
	if len(fx.ledger.reversed) != 1 {
		t.Fatalf("expected a reversal, got %+v", fx.ledger.reversed)
	}
	if len(fx.reverter.reverted) != 1 {
		t.Fatalf("expected open task revert, got %+v", fx.reverter.reverted)
	}
}

func TestReversalFailureAbortsCancel(t *testing.T) {
	fx := newRequestsFixture(t)
	request := seedRequest(fx.repo, enums.TaskRequestStatusPaid)
	fx.ledger.fail = pkgerrors.New(pkgerrors.CodeStateConflict, "payment already reversed")

	_, err := fx.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		TaskRequestID:   request.ID,
		RequestedStatus: "cancelled_by_sender",
		ActorUserID:     request.SenderID,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
	if request.Status != enums.TaskRequestStatusPaid {
		t.Fatalf("expected status untouched, got %s", request.Status)
	}
}
