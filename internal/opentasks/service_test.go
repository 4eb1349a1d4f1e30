package opentasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	pkgerrors "github.com/tasklinkhq/tasklink-backend/pkg/errors"
	"github.com/tasklinkhq/tasklink-backend/pkg/outbox"
)

type fakeBoardRepo struct {
	Repository
	tasks       map[uuid.UUID]*models.OpenTask
	offers      map[uuid.UUID]*models.OpenTaskOffer
	requests    []*models.TaskRequest
	movedPhotos []uuid.UUID
}

func newFakeBoardRepo() *fakeBoardRepo {
	return &fakeBoardRepo{
		tasks:  make(map[uuid.UUID]*models.OpenTask),
		offers: make(map[uuid.UUID]*models.OpenTaskOffer),
	}
}

func (f *fakeBoardRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeBoardRepo) Create(ctx context.Context, task *models.OpenTask) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	for i := range task.Dates {
		if task.Dates[i].ID == uuid.Nil {
			task.Dates[i].ID = uuid.New()
		}
	}
	f.tasks[task.ID] = task
	return nil
}

func (f *fakeBoardRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.OpenTask, error) {
	task, ok := f.tasks[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return task, nil
}

func (f *fakeBoardRepo) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	task, ok := f.tasks[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if title, ok := fields["title"].(string); ok {
		task.Title = title
	}
	if desc, ok := fields["description"].(string); ok {
		task.Description = desc
	}
	return nil
}

func (f *fakeBoardRepo) UpdateStatusGuarded(ctx context.Context, id uuid.UUID, from, to enums.OpenTaskStatus) (bool, error) {
	task, ok := f.tasks[id]
	if !ok || task.Status != from {
		return false, nil
	}
	task.Status = to
	return true, nil
}

func (f *fakeBoardRepo) CreateOffer(ctx context.Context, offer *models.OpenTaskOffer) error {
	if offer.ID == uuid.Nil {
		offer.ID = uuid.New()
	}
	f.offers[offer.ID] = offer
	return nil
}

func (f *fakeBoardRepo) FindOfferByID(ctx context.Context, id uuid.UUID) (*models.OpenTaskOffer, error) {
	offer, ok := f.offers[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return offer, nil
}

func (f *fakeBoardRepo) ListOffers(ctx context.Context, openTaskID uuid.UUID) ([]models.OpenTaskOffer, error) {
	var out []models.OpenTaskOffer
	for _, offer := range f.offers {
		if offer.OpenTaskID == openTaskID {
			out = append(out, *offer)
		}
	}
	return out, nil
}

func (f *fakeBoardRepo) UpdateOfferStatusGuarded(ctx context.Context, id uuid.UUID, from, to enums.OfferStatus) (bool, error) {
	offer, ok := f.offers[id]
	if !ok || offer.Status != from {
		return false, nil
	}
	offer.Status = to
	return true, nil
}

func (f *fakeBoardRepo) RejectPendingOffersExcept(ctx context.Context, openTaskID, keepOfferID uuid.UUID) error {
	for _, offer := range f.offers {
		if offer.OpenTaskID == openTaskID && offer.ID != keepOfferID && offer.Status == enums.OfferStatusPending {
			offer.Status = enums.OfferStatusRejected
		}
	}
	return nil
}

func (f *fakeBoardRepo) ResetAcceptedOffer(ctx context.Context, openTaskID uuid.UUID) error {
	for _, offer := range f.offers {
		if offer.OpenTaskID == openTaskID && offer.Status == enums.OfferStatusAccepted {
			offer.Status = enums.OfferStatusPending
		}
	}
	return nil
}

func (f *fakeBoardRepo) FindDate(ctx context.Context, openTaskID, dateID uuid.UUID) (*models.OpenTaskDate, error) {
	task, ok := f.tasks[openTaskID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	for i := range task.Dates {
		if task.Dates[i].ID == dateID {
			return &task.Dates[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBoardRepo) CreateTaskRequest(ctx context.Context, request *models.TaskRequest) error {
	if request.ID == uuid.Nil {
		request.ID = uuid.New()
	}
	f.requests = append(f.requests, request)
	return nil
}

func (f *fakeBoardRepo) MovePhotosToTaskRequest(ctx context.Context, openTaskID, taskRequestID uuid.UUID) error {
	f.movedPhotos = append(f.movedPhotos, openTaskID)
	return nil
}

type fakeUserReader struct {
	users map[uuid.UUID]*models.User
}

func (f *fakeUserReader) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
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

type boardFixture struct {
	svc    Service
	repo   *fakeBoardRepo
	users  *fakeUserReader
	outbox *fakeOutbox
}

func newBoardFixture(t *testing.T) *boardFixture {
	t.Helper()
	repo := newFakeBoardRepo()
	users := &fakeUserReader{users: make(map[uuid.UUID]*models.User)}
	events := &fakeOutbox{}
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Tx:     fakeTxRunner{},
		Outbox: events,
		Users:  users,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &boardFixture{svc: svc, repo: repo, users: users, outbox: events}
}

func seedOpenTask(repo *fakeBoardRepo) *models.OpenTask {
	task := &models.OpenTask{
		ID:              uuid.New(),
		SenderID:        uuid.New(),
		CategoryID:      uuid.New(),
		CityID:          uuid.New(),
		Title:           "Paint a fence",
		Description:     "Two coats, white",
		Location:        "Vilnius",
		DurationMinutes: 180,
		Status:          enums.OpenTaskStatusOpen,
		Dates: []models.OpenTaskDate{
			{ID: uuid.New(), StartAt: time.Now().Add(24 * time.Hour), EndAt: time.Now().Add(27 * time.Hour)},
		},
	}
	repo.tasks[task.ID] = task
	return task
}

func seedTaskerUser(users *fakeUserReader) uuid.UUID {
	id := uuid.New()
	users.users[id] = &models.User{ID: id, Role: enums.UserRoleTasker, IsActive: true}
	return id
}

func seedOffer(repo *fakeBoardRepo, taskID, taskerID uuid.UUID) *models.OpenTaskOffer {
	offer := &models.OpenTaskOffer{
		ID:              uuid.New(),
		OpenTaskID:      taskID,
		TaskerID:        taskerID,
		Message:         "Can do tomorrow",
		HourlyRateCents: 2200,
		Status:          enums.OfferStatusPending,
	}
	repo.offers[offer.ID] = offer
	return offer
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) || appErr.Code() != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestCreateOfferRequiresTaskerRole(t *testing.T) {
	fx := newBoardFixture(t)
	task := seedOpenTask(fx.repo)
	customerID := uuid.New()
	fx.users.users[customerID] = &models.User{ID: customerID, Role: enums.UserRoleCustomer}

	_, err := fx.svc.CreateOffer(context.Background(), OfferInput{
		OpenTaskID:      task.ID,
		TaskerID:        customerID,
		Message:         "hi",
		HourlyRateCents: 2000,
	})
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestCreateOfferOnClosedTask(t *testing.T) {
	fx := newBoardFixture(t)
	task := seedOpenTask(fx.repo)
	task.Status = enums.OpenTaskStatusAssigned
	taskerID := seedTaskerUser(fx.users)

	_, err := fx.svc.CreateOffer(context.Background(), OfferInput{
		OpenTaskID:      task.ID,
		TaskerID:        taskerID,
		Message:         "hi",
		HourlyRateCents: 2000,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestAcceptOfferConvertsTask(t *testing.T) {
	fx := newBoardFixture(t)
	task := seedOpenTask(fx.repo)
	taskerID := seedTaskerUser(fx.users)
	offer := seedOffer(fx.repo, task.ID, taskerID)
	loser := seedOffer(fx.repo, task.ID, seedTaskerUser(fx.users))
	dateID := task.Dates[0].ID

	result, err := fx.svc.AcceptOffer(context.Background(), AcceptOfferInput{
		OfferID:     offer.ID,
		ActorUserID: task.SenderID,
		DateID:      &dateID,
	})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if task.Status != enums.OpenTaskStatusAssigned {
		t.Fatalf("expected assigned task, got %s", task.Status)
	}
	if offer.Status != enums.OfferStatusAccepted {
		t.Fatalf("expected accepted offer, got %s", offer.Status)
	}
	if loser.Status != enums.OfferStatusRejected {
		t.Fatalf("expected competing offer rejected, got %s", loser.Status)
	}
	if len(fx.repo.requests) != 1 {
		t.Fatalf("expected one synthesized request, got %d", len(fx.repo.requests))
	}
	request := fx.repo.requests[0]
	if request.Status != enums.TaskRequestStatusWaitingForPayment {
		t.Fatalf("expected waiting_for_payment, got %s", request.Status)
	}
	if !request.IsOpenTask || request.OpenTaskID == nil || *request.OpenTaskID != task.ID {
		t.Fatalf("expected open task linkage, got %+v", request)
	}
	if request.HourlyRateCents != offer.HourlyRateCents {
		t.Fatalf("expected the offer's rate, got %d", request.HourlyRateCents)
	}
	if request.SlotStart == nil || !request.SlotStart.Equal(task.Dates[0].StartAt) {
		t.Fatalf("expected the chosen slot copied, got %+v", request.SlotStart)
	}
	// 2200 cents/h over 180 minutes.
	if result.AmountCents != 6600 {
		t.Fatalf("expected amount 6600, got %d", result.AmountCents)
	}
	if len(fx.outbox.events) != 1 || fx.outbox.events[0].EventType != enums.EventOfferAccepted {
		t.Fatalf("expected offer_accepted event, got %+v", fx.outbox.events)
	}
}

func TestAcceptOfferOnlyOwner(t *testing.T) {
	fx := newBoardFixture(t)
	task := seedOpenTask(fx.repo)
	offer := seedOffer(fx.repo, task.ID, seedTaskerUser(fx.users))

	_, err := fx.svc.AcceptOffer(context.Background(), AcceptOfferInput{
		OfferID:     offer.ID,
		ActorUserID: uuid.New(),
	})
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestAcceptOfferLosesRaceOnAssignedTask(t *testing.T) {
	fx := newBoardFixture(t)
	task := seedOpenTask(fx.repo)
	offer := seedOffer(fx.repo, task.ID, seedTaskerUser(fx.users))
	task.Status = enums.OpenTaskStatusAssigned

	_, err := fx.svc.AcceptOffer(context.Background(), AcceptOfferInput{
		OfferID:     offer.ID,
		ActorUserID: task.SenderID,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
	if len(fx.repo.requests) != 0 {
		t.Fatal("losing accept must not synthesize a request")
	}
}

func TestRejectOfferGuards(t *testing.T) {
	fx := newBoardFixture(t)
	task := seedOpenTask(fx.repo)
	offer := seedOffer(fx.repo, task.ID, seedTaskerUser(fx.users))

	err := fx.svc.RejectOffer(context.Background(), offer.ID, uuid.New())
	assertCode(t, err, pkgerrors.CodeForbidden)

	if err := fx.svc.RejectOffer(context.Background(), offer.ID, task.SenderID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if offer.Status != enums.OfferStatusRejected {
		t.Fatalf("expected rejected, got %s", offer.Status)
	}

	err = fx.svc.RejectOffer(context.Background(), offer.ID, task.SenderID)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestRevertToOpenReopensTaskAndOffer(t *testing.T) {
	fx := newBoardFixture(t)
	task := seedOpenTask(fx.repo)
	offer := seedOffer(fx.repo, task.ID, seedTaskerUser(fx.users))
	task.Status = enums.OpenTaskStatusAssigned
	offer.Status = enums.OfferStatusAccepted

	if err := fx.svc.RevertToOpen(context.Background(), &gorm.DB{}, task.ID); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if task.Status != enums.OpenTaskStatusOpen {
		t.Fatalf("expected open, got %s", task.Status)
	}
	if offer.Status != enums.OfferStatusPending {
		t.Fatalf("expected offer back to pending, got %s", offer.Status)
	}
}

func TestCancelOnlyWhileOpen(t *testing.T) {
	fx := newBoardFixture(t)
	task := seedOpenTask(fx.repo)
	task.Status = enums.OpenTaskStatusAssigned

	err := fx.svc.Cancel(context.Background(), task.ID, task.SenderID)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}
