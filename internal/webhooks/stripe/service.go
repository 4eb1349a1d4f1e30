package stripewebhook

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/tasklinkhq/tasklink-backend/internal/payments"
	dbpkg "github.com/tasklinkhq/tasklink-backend/pkg/db"
	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	pkgerrors "github.com/tasklinkhq/tasklink-backend/pkg/errors"
	"github.com/tasklinkhq/tasklink-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cardPaymentRecorder interface {
	RecordCardPayment(ctx context.Context, tx *gorm.DB, input payments.CardPaymentInput) error
}

type eventStore interface {
	InsertEvent(ctx context.Context, tx *gorm.DB, event *models.WebhookEvent) error
}

type ServiceParams struct {
	Payments          cardPaymentRecorder
	Events            eventStore
	TransactionRunner txRunner
	Metrics           *metrics.WebhookMetrics
}

// Service settles card checkouts reported by Stripe. The webhook_events
// insert and the ledger write share one transaction, so a replayed
// delivery that slips past the redis guard still lands exactly once.
type Service struct {
	payments cardPaymentRecorder
	events   eventStore
	txRunner txRunner
	metrics  *metrics.WebhookMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments service required")
	}
	if params.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event store required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		payments: params.Payments,
		events:   params.Events,
		txRunner: params.TransactionRunner,
		metrics:  params.Metrics,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session")
		}
		err := s.settleCheckout(ctx, event, &session)
		if s.metrics != nil {
			if err != nil {
				s.metrics.IncFailed(string(event.Type))
			} else {
				s.metrics.IncProcessed(string(event.Type))
			}
		}
		return err
	default:
		return nil
	}
}

func (s *Service) settleCheckout(ctx context.Context, event *stripe.Event, session *stripe.CheckoutSession) error {
	input, err := paymentInputFromSession(session)
	if err != nil {
		return err
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		row := &models.WebhookEvent{
			EventID: event.ID,
			Type:    string(event.Type),
			Payload: json.RawMessage(event.Data.Raw),
		}
		if err := s.events.InsertEvent(ctx, tx, row); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				if s.metrics != nil {
					s.metrics.IncDuplicate(string(event.Type))
				}
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record webhook event")
		}
		return s.payments.RecordCardPayment(ctx, tx, input)
	})
}

func paymentInputFromSession(session *stripe.CheckoutSession) (payments.CardPaymentInput, error) {
	var input payments.CardPaymentInput
	if session == nil {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "checkout session required")
	}

	taskID, err := uuid.Parse(session.Metadata["task_id"])
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse task_id metadata")
	}
	senderID, err := uuid.Parse(session.Metadata["sender_id"])
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse sender_id metadata")
	}
	taskerID, err := uuid.Parse(session.Metadata["tasker_id"])
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse tasker_id metadata")
	}
	amount, err := strconv.ParseInt(session.Metadata["amount_cents"], 10, 64)
	if err != nil || amount <= 0 {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "invalid amount_cents metadata")
	}

	return payments.CardPaymentInput{
		TaskRequestID: taskID,
		SenderID:      senderID,
		TaskerID:      taskerID,
		AmountCents:   amount,
		ExternalRef:   session.ID,
	}, nil
}
