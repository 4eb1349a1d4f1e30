package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/tasklinkhq/tasklink-backend/internal/users"
	"github.com/tasklinkhq/tasklink-backend/pkg/config"
	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	pkgerrors "github.com/tasklinkhq/tasklink-backend/pkg/errors"
	"github.com/tasklinkhq/tasklink-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type walletStore interface {
	AdjustWallet(ctx context.Context, id uuid.UUID, deltaCents int64) (bool, error)
}

// CheckoutSessionCreator exposes the subset of Stripe operations required by the checkout flow.
type CheckoutSessionCreator interface {
	CreateSession(ctx context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error)
}

// Service defines payment-ledger operations. A payment moves money
// immediately: the sender's wallet is debited (wallet method), the tasker's
// wallet is credited, and the pair is written completed. ReverseForTask runs
// inside a caller-owned transaction so the task status change and the money
// movement commit together.
type Service interface {
	Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
	RecordCardPayment(ctx context.Context, tx *gorm.DB, input CardPaymentInput) error
	ReverseForTask(ctx context.Context, tx *gorm.DB, taskRequestID uuid.UUID, actor *outbox.ActorRef) error
	History(ctx context.Context, input HistoryInput) (*HistoryResult, error)
	WalletLedgerSum(ctx context.Context, userID uuid.UUID) (int64, error)
}

// CardPaymentInput carries the session metadata a completed card checkout
// reports back through the webhook.
type CardPaymentInput struct {
	TaskRequestID uuid.UUID
	SenderID      uuid.UUID
	TaskerID      uuid.UUID
	AmountCents   int64
	ExternalRef   string
}

// ServiceParams bundles the dependencies required to build a payments service.
type ServiceParams struct {
	Repo          Repository
	Tx            txRunner
	Outbox        outboxPublisher
	Checkout      CheckoutSessionCreator
	CheckoutCfg   config.CheckoutConfig
	WalletFactory func(tx *gorm.DB) walletStore
}

type service struct {
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	checkout    CheckoutSessionCreator
	checkoutCfg config.CheckoutConfig
	wallets     func(tx *gorm.DB) walletStore
}

// NewService builds a payments service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
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
		repo:        params.Repo,
		tx:          params.Tx,
		outbox:      params.Outbox,
		checkout:    params.Checkout,
		checkoutCfg: params.CheckoutCfg,
		wallets:     wallets,
	}, nil
}

// TaskAmountCents prices a request from its hourly rate and duration,
// rounding half-up on the cent.
func TaskAmountCents(hourlyRateCents int64, durationMinutes int) int64 {
	rate := decimal.NewFromInt(hourlyRateCents)
	minutes := decimal.NewFromInt(int64(durationMinutes))
	return rate.Mul(minutes).Div(decimal.NewFromInt(60)).Round(0).IntPart()
}

func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if input.TaskRequestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "task request id required")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method must be wallet or card")
	}

	switch input.Method {
	case enums.PaymentMethodWallet:
		return s.walletCheckout(ctx, input)
	default:
		return s.cardCheckout(ctx, input)
	}
}

func (s *service) walletCheckout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	var result *CheckoutResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := s.loadPayableRequest(ctx, repo, input)
		if err != nil {
			return err
		}

		amount := TaskAmountCents(request.HourlyRateCents, request.DurationMinutes)
		wallets := s.wallets(tx)
		ok, err := wallets.AdjustWallet(ctx, request.SenderID, -amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit sender wallet")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient wallet balance")
		}
		if ok, err := wallets.AdjustWallet(ctx, request.TaskerID, amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit tasker wallet")
		} else if !ok {
			return pkgerrors.New(pkgerrors.CodeDependency, "tasker wallet update rejected")
		}

		pair := buildLedgerPair(request, amount, enums.PaymentMethodWallet, nil)
		if err := repo.CreatePayments(ctx, pair); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write ledger rows")
		}

		if err := repo.UpdateTaskRequestStatus(ctx, request.ID, enums.TaskRequestStatusPaid); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark request paid")
		}

		result = &CheckoutResult{
			TaskRequestID: request.ID,
			Status:        enums.TaskRequestStatusPaid,
			AmountCents:   amount,
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentCompleted,
			AggregateType: enums.AggregatePayment,
			AggregateID:   request.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: string(input.ActorRole)},
			Data: payloadPaymentCompleted(request, amount, enums.PaymentMethodWallet),
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) cardCheckout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if s.checkout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "card checkout is not configured")
	}

	var request *models.TaskRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := s.loadPayableRequest(ctx, repo, input)
		if err != nil {
			return err
		}
		request = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	amount := TaskAmountCents(request.HourlyRateCents, request.DurationMinutes)
	params := &stripe.CheckoutSessionCreateParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.checkoutCfg.SuccessURL),
		CancelURL:  stripe.String(s.checkoutCfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(s.checkoutCfg.Currency),
					UnitAmount: stripe.Int64(amount),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String("TaskLink task payment"),
					},
				},
			},
		},
	}
	params.AddMetadata("task_id", request.ID.String())
	params.AddMetadata("sender_id", request.SenderID.String())
	params.AddMetadata("tasker_id", request.TaskerID.String())
	params.AddMetadata("amount_cents", fmt.Sprintf("%d", amount))
	session, err := s.checkout.CreateSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	url := session.URL
	return &CheckoutResult{
		TaskRequestID: request.ID,
		Status:        request.Status,
		AmountCents:   amount,
		CheckoutURL:   &url,
	}, nil
}

// RecordCardPayment writes the ledger pair for a card checkout confirmed by
// the payment processor, credits the tasker's wallet and marks the request
// paid. The sender's side settled on the card, so only the credit touches a
// wallet. Runs inside the webhook's transaction.
func (s *service) RecordCardPayment(ctx context.Context, tx *gorm.DB, input CardPaymentInput) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)

	request, err := repo.FindTaskRequestForUpdate(ctx, input.TaskRequestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "task request not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load task request")
	}
	if request.Status == enums.TaskRequestStatusPaid {
		return nil
	}
	if request.Status != enums.TaskRequestStatusWaitingForPayment {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "request is not awaiting payment")
	}

	wallets := s.wallets(tx)
	if ok, err := wallets.AdjustWallet(ctx, request.TaskerID, input.AmountCents); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit tasker wallet")
	} else if !ok {
		return pkgerrors.New(pkgerrors.CodeDependency, "tasker wallet update rejected")
	}

	ref := input.ExternalRef
	pair := buildLedgerPair(request, input.AmountCents, enums.PaymentMethodCard, &ref)
	if err := repo.CreatePayments(ctx, pair); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write ledger rows")
	}
	if err := repo.UpdateTaskRequestStatus(ctx, request.ID, enums.TaskRequestStatusPaid); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark request paid")
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentCompleted,
		AggregateType: enums.AggregatePayment,
		AggregateID:   request.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: input.SenderID},
		Data: payloadPaymentCompleted(request, input.AmountCents, enums.PaymentMethodCard),
	})
}

// ReverseForTask refunds a payment pair: the tasker's credit is clawed back,
// the sender's money comes back as wallet balance, the originals flip to
// refunded, and two reversal rows keep the ledger append-only.
func (s *service) ReverseForTask(ctx context.Context, tx *gorm.DB, taskRequestID uuid.UUID, actor *outbox.ActorRef) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	repo := s.repo.WithTx(tx)

	pair, err := repo.FindPairByTaskRequest(ctx, taskRequestID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ledger pair")
	}
	if len(pair) == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no payment to reverse")
	}

	var debit, credit *models.Payment
	for i := range pair {
		if pair[i].IsPayment {
			debit = &pair[i]
		} else {
			credit = &pair[i]
		}
	}
	if debit == nil || credit == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "incomplete ledger pair")
	}

	updated, err := repo.UpdateStatusForTask(ctx, taskRequestID, enums.PaymentStatusCompleted, enums.PaymentStatusRefunded)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark pair refunded")
	}
	if updated == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already reversed")
	}

	wallets := s.wallets(tx)
	if ok, err := wallets.AdjustWallet(ctx, credit.UserID, -credit.AmountCents); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claw back tasker credit")
	} else if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "tasker wallet cannot cover the refund")
	}
	refund := -debit.AmountCents
	if ok, err := wallets.AdjustWallet(ctx, debit.UserID, refund); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund sender wallet")
	} else if !ok {
		return pkgerrors.New(pkgerrors.CodeDependency, "refund wallet update rejected")
	}

	reversals := []models.Payment{
		reversalOf(debit),
		reversalOf(credit),
	}
	if err := repo.CreatePayments(ctx, reversals); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write reversal rows")
	}

	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentRefunded,
		AggregateType: enums.AggregatePayment,
		AggregateID:   taskRequestID,
		Version:       1,
		Actor:         actor,
		Data: map[string]any{
			"task_request_id": taskRequestID,
			"sender_id":       debit.UserID,
			"tasker_id":       credit.UserID,
			"amount_cents":    refund,
		},
	})
}

func (s *service) History(ctx context.Context, input HistoryInput) (*HistoryResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	result, err := s.repo.ListByUser(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return result, nil
}

func (s *service) WalletLedgerSum(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	sum, err := s.repo.SumLedgerForUser(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum ledger")
	}
	return sum, nil
}

func (s *service) loadPayableRequest(ctx context.Context, repo Repository, input CheckoutInput) (*models.TaskRequest, error) {
	request, err := repo.FindTaskRequestForUpdate(ctx, input.TaskRequestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "task request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load task request")
	}
	if request.SenderID != input.ActorUserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the sender can pay for a request")
	}
	if request.Status != enums.TaskRequestStatusWaitingForPayment {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "request is not awaiting payment")
	}
	return request, nil
}

func buildLedgerPair(request *models.TaskRequest, amount int64, method enums.PaymentMethod, externalRef *string) []models.Payment {
	return []models.Payment{
		{
			TaskRequestID:  request.ID,
			UserID:         request.SenderID,
			CounterpartyID: request.TaskerID,
			AmountCents:    -amount,
			IsPayment:      true,
			Method:         method,
			Status:         enums.PaymentStatusCompleted,
			ExternalRef:    externalRef,
		},
		{
			TaskRequestID:  request.ID,
			UserID:         request.TaskerID,
			CounterpartyID: request.SenderID,
			AmountCents:    amount,
			IsPayment:      false,
			Method:         method,
			Status:         enums.PaymentStatusCompleted,
			ExternalRef:    externalRef,
		},
	}
}

func reversalOf(row *models.Payment) models.Payment {
	ref := "reversal:" + row.ID.String()
	return models.Payment{
		TaskRequestID:  row.TaskRequestID,
		UserID:         row.UserID,
		CounterpartyID: row.CounterpartyID,
		AmountCents:    -row.AmountCents,
		IsPayment:      !row.IsPayment,
		Method:         row.Method,
		Status:         enums.PaymentStatusRefunded,
		ExternalRef:    &ref,
	}
}

func payloadPaymentCompleted(request *models.TaskRequest, amount int64, method enums.PaymentMethod) map[string]any {
	return map[string]any{
		"task_request_id": request.ID,
		"sender_id":       request.SenderID,
		"tasker_id":       request.TaskerID,
		"amount_cents":    amount,
		"method":          method,
	}
}
