package payouts

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

type fakePayoutRepo struct {
	Repository
	payouts map[uuid.UUID]*models.PayoutRequest
}

func newFakePayoutRepo() *fakePayoutRepo {
	return &fakePayoutRepo{payouts: make(map[uuid.UUID]*models.PayoutRequest)}
}

func (f *fakePayoutRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakePayoutRepo) Create(ctx context.Context, payout *models.PayoutRequest) error {
	if payout.ID == uuid.Nil {
		payout.ID = uuid.New()
	}
	f.payouts[payout.ID] = payout
	return nil
}

func (f *fakePayoutRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	payout, ok := f.payouts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return payout, nil
}

func (f *fakePayoutRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PayoutRequest, error) {
	var out []models.PayoutRequest
	for _, payout := range f.payouts {
		if payout.UserID == userID {
			out = append(out, *payout)
		}
	}
	return out, nil
}

func (f *fakePayoutRepo) MarkPaidGuarded(ctx context.Context, id uuid.UUID, processedAt time.Time) (bool, error) {
	payout, ok := f.payouts[id]
	if !ok || payout.Status != enums.PayoutStatusWaiting {
		return false, nil
	}
	payout.Status = enums.PayoutStatusPaid
	payout.ProcessedAt = &processedAt
	return true, nil
}

type fakeWallets struct {
	balances map[uuid.UUID]int64
}

func (f *fakeWallets) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	balance, ok := f.balances[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.User{ID: id, WalletAmountCents: balance}, nil
}

func (f *fakeWallets) AdjustWallet(ctx context.Context, id uuid.UUID, deltaCents int64) (bool, error) {
	next := f.balances[id] + deltaCents
	if next < 0 {
		return false, nil
	}
	f.balances[id] = next
	return true, nil
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

func newPayoutFixture(t *testing.T) (Service, *fakePayoutRepo, *fakeWallets, *fakeOutbox) {
	t.Helper()
	repo := newFakePayoutRepo()
	wallets := &fakeWallets{balances: make(map[uuid.UUID]int64)}
	events := &fakeOutbox{}
	svc, err := NewService(ServiceParams{
		Repo:          repo,
		Tx:            fakeTxRunner{},
		Outbox:        events,
		WalletFactory: func(tx *gorm.DB) walletStore { return wallets },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo, wallets, events
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) || appErr.Code() != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestRequestPayoutWithinBalance(t *testing.T) {
	svc, _, wallets, events := newPayoutFixture(t)
	userID := uuid.New()
	wallets.balances[userID] = 10000

	dto, err := svc.Request(context.Background(), RequestInput{
		UserID:      userID,
		AmountCents: 8000,
		IBAN:        "LT12 1000 0111 0100 1000",
	})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if dto.Status != enums.PayoutStatusWaiting {
		t.Fatalf("expected waiting, got %s", dto.Status)
	}
	if dto.IBAN != "LT121000011101001000" {
		t.Fatalf("expected normalized IBAN, got %q", dto.IBAN)
	}
	// The balance is only checked at request time; the deduction happens
	// when an admin marks the payout paid.
	if wallets.balances[userID] != 10000 {
		t.Fatalf("request must not touch the wallet, got %d", wallets.balances[userID])
	}
	if len(events.events) != 1 || events.events[0].EventType != enums.EventPayoutRequested {
		t.Fatalf("expected payout_requested event, got %+v", events.events)
	}
}

func TestRequestPayoutExceedsBalance(t *testing.T) {
	svc, repo, wallets, _ := newPayoutFixture(t)
	userID := uuid.New()
	wallets.balances[userID] = 500

	_, err := svc.Request(context.Background(), RequestInput{
		UserID:      userID,
		AmountCents: 8000,
		IBAN:        "LT121000011101001000",
	})
	assertCode(t, err, pkgerrors.CodeInsufficientFunds)
	if len(repo.payouts) != 0 {
		t.Fatal("expected no payout row")
	}
}

func TestMarkPaidDeductsWallet(t *testing.T) {
	svc, repo, wallets, events := newPayoutFixture(t)
	userID := uuid.New()
	wallets.balances[userID] = 10000
	payout := &models.PayoutRequest{
		ID:          uuid.New(),
		UserID:      userID,
		AmountCents: 8000,
		IBAN:        "LT121000011101001000",
		Status:      enums.PayoutStatusWaiting,
	}
	repo.payouts[payout.ID] = payout

	dto, err := svc.MarkPaid(context.Background(), payout.ID, uuid.New())
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if dto.Status != enums.PayoutStatusPaid || dto.ProcessedAt == nil {
		t.Fatalf("unexpected dto %+v", dto)
	}
	if wallets.balances[userID] != 2000 {
		t.Fatalf("expected wallet 2000, got %d", wallets.balances[userID])
	}
	if len(events.events) != 1 || events.events[0].EventType != enums.EventPayoutPaid {
		t.Fatalf("expected payout_paid event, got %+v", events.events)
	}

	_, err = svc.MarkPaid(context.Background(), payout.ID, uuid.New())
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestMarkPaidInsufficientBalance(t *testing.T) {
	svc, repo, wallets, _ := newPayoutFixture(t)
	userID := uuid.New()
	wallets.balances[userID] = 1000
	payout := &models.PayoutRequest{
		ID:          uuid.New(),
		UserID:      userID,
		AmountCents: 8000,
		Status:      enums.PayoutStatusWaiting,
	}
	repo.payouts[payout.ID] = payout

	_, err := svc.MarkPaid(context.Background(), payout.ID, uuid.New())
	assertCode(t, err, pkgerrors.CodeInsufficientFunds)
	if payout.Status != enums.PayoutStatusWaiting {
		t.Fatalf("expected payout untouched, got %s", payout.Status)
	}
}
