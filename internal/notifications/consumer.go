package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	"github.com/tasklinkhq/tasklink-backend/pkg/logger"
	"github.com/tasklinkhq/tasklink-backend/pkg/outbox"
	"github.com/tasklinkhq/tasklink-backend/pkg/outbox/idempotency"
	"github.com/tasklinkhq/tasklink-backend/pkg/outbox/payloads"
)

const feedConsumer = "notification-feed"

type feedWriter interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type deviceStore interface {
	TokensForUser(ctx context.Context, userID uuid.UUID) ([]string, error)
	PruneToken(ctx context.Context, token string) error
}

type pusher interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
	IsUnregistered(err error) bool
}

// Consumer turns domain events into notification feed rows and push deliveries.
type Consumer struct {
	repo         feedWriter
	devices      deviceStore
	push         pusher
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// ConsumerParams bundles the dependencies required to build the consumer.
type ConsumerParams struct {
	Repo         feedWriter
	Devices      deviceStore
	Push         pusher
	Subscription *pubsub.Subscriber
	Idempotency  *idempotency.Manager
	Logger       *logger.Logger
}

// NewConsumer builds the notification consumer. A nil pusher disables push
// delivery while feed rows are still written.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Devices == nil {
		return nil, fmt.Errorf("device store required")
	}
	if params.Subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if params.Idempotency == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         params.Repo,
		devices:      params.Devices,
		push:         params.Push,
		subscription: params.Subscription,
		idempotency:  params.Idempotency,
		logg:         params.Logger,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	rawType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": rawType,
	})

	eventType, err := enums.ParseOutboxEventType(rawType)
	if err != nil {
		c.logg.Info(logCtx, "skipping unknown event type")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, feedConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	notifications, err := c.buildNotifications(eventType, envelope)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, feedConsumer, eventID)
		return processResult{nack: true}
	}
	if len(notifications) == 0 {
		return processResult{ack: true}
	}

	for _, notification := range notifications {
		if err := c.repo.Create(ctx, notification); err != nil {
			c.logg.Error(logCtx, "failed to persist notification", err)
			_ = c.idempotency.Delete(ctx, feedConsumer, eventID)
			return processResult{nack: true}
		}
	}

	// Push failures never requeue the event: the feed rows are committed
	// and a redelivery would duplicate them.
	for _, notification := range notifications {
		c.pushToDevices(logCtx, notification)
	}
	return processResult{ack: true}
}

func (c *Consumer) pushToDevices(ctx context.Context, notification *models.Notification) {
	if c.push == nil {
		return
	}
	tokens, err := c.devices.TokensForUser(ctx, notification.UserID)
	if err != nil {
		c.logg.Error(ctx, "failed to load device tokens", err)
		return
	}
	data := map[string]string{
		"type":            string(notification.Type),
		"notification_id": notification.ID.String(),
	}
	if notification.Link != nil {
		data["link"] = *notification.Link
	}
	for _, token := range tokens {
		err := c.push.Send(ctx, token, notification.Title, notification.Message, data)
		if err == nil {
			continue
		}
		if c.push.IsUnregistered(err) {
			if pruneErr := c.devices.PruneToken(ctx, token); pruneErr != nil {
				c.logg.Error(ctx, "failed to prune stale token", pruneErr)
			}
			continue
		}
		c.logg.Error(ctx, "push delivery failed", err)
	}
}

func (c *Consumer) buildNotifications(eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) ([]*models.Notification, error) {
	switch eventType {
	case enums.EventTaskRequestCreated:
		var p payloads.TaskRequestCreatedEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{feedEntry(p.TaskerID, enums.NotificationTypeTaskRequestReceived,
			"New task request",
			"You received a new task request.",
			fmt.Sprintf("/requests/%s", p.TaskRequestID))}, nil

	case enums.EventTaskRequestStatusChanged:
		var p payloads.TaskRequestStatusChangedEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, err
		}
		return statusChangeNotifications(p, envelope.Actor), nil

	case enums.EventTaskRequestExpired:
		var p payloads.TaskRequestExpiredEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{feedEntry(p.SenderID, enums.NotificationTypeTaskStatusChanged,
			"Task request expired",
			"Your task request expired because it was not paid in time.",
			fmt.Sprintf("/requests/%s", p.TaskRequestID))}, nil

	case enums.EventOfferCreated:
		var p payloads.OfferCreatedEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{feedEntry(p.SenderID, enums.NotificationTypeOfferReceived,
			"New offer",
			"A tasker made an offer on your task.",
			fmt.Sprintf("/tasks/%s/offers", p.OpenTaskID))}, nil

	case enums.EventOfferAccepted:
		var p payloads.OfferAcceptedEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{feedEntry(p.TaskerID, enums.NotificationTypeOfferAccepted,
			"Offer accepted",
			"Your offer was accepted. The task is yours once it is paid.",
			fmt.Sprintf("/requests/%s", p.TaskRequestID))}, nil

	case enums.EventOfferRejected:
		var p payloads.OfferRejectedEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{feedEntry(p.TaskerID, enums.NotificationTypeTaskStatusChanged,
			"Offer declined",
			"Your offer was not selected for this task.",
			fmt.Sprintf("/tasks/%s", p.OpenTaskID))}, nil

	case enums.EventPaymentCompleted:
		var p payloads.PaymentCompletedEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{feedEntry(p.TaskerID, enums.NotificationTypePaymentReceived,
			"Task booked",
			fmt.Sprintf("The task was paid. %s was added to your wallet.", formatCents(p.AmountCents)),
			fmt.Sprintf("/requests/%s", p.TaskRequestID))}, nil

	case enums.EventPaymentRefunded:
		var p payloads.PaymentRefundedEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{feedEntry(p.SenderID, enums.NotificationTypePaymentReceived,
			"Payment refunded",
			fmt.Sprintf("%s was returned to your wallet.", formatCents(p.AmountCents)),
			"/wallet")}, nil

	case enums.EventPayoutPaid:
		var p payloads.PayoutPaidEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{feedEntry(p.UserID, enums.NotificationTypePayoutProcessed,
			"Payout sent",
			fmt.Sprintf("Your payout of %s was transferred to your bank account.", formatCents(p.AmountCents)),
			"/wallet/payouts")}, nil

	case enums.EventMessageSent:
		var p payloads.MessageSentEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{feedEntry(p.RecipientID, enums.NotificationTypeMessageReceived,
			"New message",
			p.Preview,
			fmt.Sprintf("/conversations/%s", p.ConversationID))}, nil

	case enums.EventReviewCreated:
		var p payloads.ReviewCreatedEvent
		if err := json.Unmarshal(envelope.Data, &p); err != nil {
			return nil, err
		}
		return []*models.Notification{feedEntry(p.TaskerID, enums.NotificationTypeReviewReceived,
			"New review",
			fmt.Sprintf("You received a %d-star review.", p.Rating),
			fmt.Sprintf("/requests/%s", p.TaskRequestID))}, nil

	default:
		// payout_requested lands on the admin dashboard, not the user feed.
		return nil, nil
	}
}

// statusChangeNotifications tells the party who did not perform the
// transition; with no actor on the envelope both parties are notified.
func statusChangeNotifications(p payloads.TaskRequestStatusChangedEvent, actor *outbox.ActorRef) []*models.Notification {
	link := fmt.Sprintf("/requests/%s", p.TaskRequestID)
	message := fmt.Sprintf("Task request status changed to %s.", p.NewStatus)

	recipients := []uuid.UUID{p.SenderID, p.TaskerID}
	var out []*models.Notification
	for _, recipient := range recipients {
		if actor != nil && actor.UserID == recipient {
			continue
		}
		out = append(out, feedEntry(recipient, enums.NotificationTypeTaskStatusChanged,
			"Task request updated", message, link))
	}
	return out
}

func feedEntry(userID uuid.UUID, kind enums.NotificationType, title, message, link string) *models.Notification {
	return &models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		Link:    &link,
	}
}

func formatCents(cents int64) string {
	return fmt.Sprintf("€%d.%02d", cents/100, cents%100)
}
