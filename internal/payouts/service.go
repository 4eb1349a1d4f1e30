package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tasklinkhq/tasklink-backend/internal/users"
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

type walletStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	AdjustWallet(ctx context.Context, id uuid.UUID, deltaCents int64) (bool, error)
}

// RequestInput is a tasker withdrawal request.
type RequestInput struct {
	UserID      uuid.UUID
	AmountCents int64  `validate:"required,gt=0"`
	IBAN        string `validate:"required,max=64"`
}

// PayoutDTO is a payout request as shown to its owner or an admin.
type PayoutDTO struct {
	ID          uuid.UUID          `json:"id"`
	UserID      uuid.UUID          `json:"user_id"`
	AmountCents int64              `json:"amount_cents"`
	IBAN        string             `json:"iban"`
	Status      enums.PayoutStatus `json:"status"`
	ProcessedAt *time.Time         `json:"processed_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Service handles wallet withdrawals.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*PayoutDTO, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]PayoutDTO, error)
	ListWaiting(ctx context.Context) ([]PayoutDTO, error)
	MarkPaid(ctx context.Context, payoutID, adminID uuid.UUID) (*PayoutDTO, error)
}

// ServiceParams bundles the dependencies required to build the service.
type ServiceParams struct {
	Repo          Repository
	Tx            txRunner
	Outbox        outboxPublisher
	WalletFactory func(tx *gorm.DB) walletStore
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	wallets func(tx *gorm.DB) walletStore
	now     func() time.Time
}

// NewService builds a payout service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payout repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	wallets := params.WalletFactory
	if wallets == nil {
		wallets = func(tx *gorm.DB) walletStore {
			return users.NewRepository(tx)
		}
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		wallets: wallets,
		now:     time.Now,
	}, nil
}

func (s *service) Request(ctx context.Context, input RequestInput) (*PayoutDTO, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	iban := strings.ToUpper(strings.ReplaceAll(input.IBAN, " ", ""))
	if len(iban) < 15 || len(iban) > 34 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid IBAN")
	}

	payout := &models.PayoutRequest{
		UserID:      input.UserID,
		AmountCents: input.AmountCents,
		IBAN:        iban,
		Status:      enums.PayoutStatusWaiting,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		wallets := s.wallets(tx)
		user, err := wallets.FindByID(ctx, input.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
		}
		if user.WalletAmountCents < input.AmountCents {
			return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "amount exceeds wallet balance")
		}
		if err := s.repo.WithTx(tx).Create(ctx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout request")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutRequested,
			AggregateType: enums.AggregatePayout,
			AggregateID:   payout.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.UserID},
			Data: payloads.PayoutRequestedEvent{
				PayoutID:    payout.ID,
				UserID:      input.UserID,
				AmountCents: input.AmountCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	dto := fromModel(*payout)
	return &dto, nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID) ([]PayoutDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}
	return fromModels(rows), nil
}

func (s *service) ListWaiting(ctx context.Context) ([]PayoutDTO, error) {
	rows, err := s.repo.ListByStatus(ctx, enums.PayoutStatusWaiting)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list waiting payouts")
	}
	return fromModels(rows), nil
}

// MarkPaid records the transfer: the wallet deduction and the status flip
// commit together. A balance that dropped below the requested amount since
// the request rejects the mark.
func (s *service) MarkPaid(ctx context.Context, payoutID, adminID uuid.UUID) (*PayoutDTO, error) {
	var paid *models.PayoutRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payout, err := repo.FindByID(ctx, payoutID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payout request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout request")
		}
		if payout.Status != enums.PayoutStatusWaiting {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payout is not waiting")
		}

		wallets := s.wallets(tx)
		ok, err := wallets.AdjustWallet(ctx, payout.UserID, -payout.AmountCents)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit wallet")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "wallet balance below payout amount")
		}

		processedAt := s.now()
		flipped, err := repo.MarkPaidGuarded(ctx, payout.ID, processedAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payout paid")
		}
		if !flipped {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payout is not waiting")
		}
		payout.Status = enums.PayoutStatusPaid
		payout.ProcessedAt = &processedAt
		paid = payout

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutPaid,
			AggregateType: enums.AggregatePayout,
			AggregateID:   payout.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: adminID, Role: string(enums.UserRoleAdmin)},
			Data: payloads.PayoutPaidEvent{
				PayoutID:    payout.ID,
				UserID:      payout.UserID,
				AmountCents: payout.AmountCents,
				PaidAt:      processedAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	dto := fromModel(*paid)
	return &dto, nil
}

func fromModel(p models.PayoutRequest) PayoutDTO {
	return PayoutDTO{
		ID:          p.ID,
		UserID:      p.UserID,
		AmountCents: p.AmountCents,
		IBAN:        p.IBAN,
		Status:      p.Status,
		ProcessedAt: p.ProcessedAt,
		CreatedAt:   p.CreatedAt,
	}
}

func fromModels(rows []models.PayoutRequest) []PayoutDTO {
	out := make([]PayoutDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromModel(row))
	}
	return out
}
