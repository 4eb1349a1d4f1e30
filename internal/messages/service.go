package messages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	pkgerrors "github.com/tasklinkhq/tasklink-backend/pkg/errors"
	"github.com/tasklinkhq/tasklink-backend/pkg/outbox"
	"github.com/tasklinkhq/tasklink-backend/pkg/outbox/payloads"
	"github.com/tasklinkhq/tasklink-backend/pkg/pagination"
)

const previewLength = 120

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// SendInput targets either an existing conversation or a recipient; the
// first message to a recipient creates the thread.
type SendInput struct {
	SenderID       uuid.UUID
	ConversationID *uuid.UUID
	RecipientID    *uuid.UUID
	Body           string `validate:"required,max=4000"`
}

// MessageDTO is one chat message.
type MessageDTO struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id"`
	Body           string     `json:"body"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ConversationDTO is a thread with its unread count for the caller.
type ConversationDTO struct {
	ID          uuid.UUID `json:"id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	TaskerID    uuid.UUID `json:"tasker_id"`
	UnreadCount int64     `json:"unread_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListMessagesResult is one page of a conversation.
type ListMessagesResult struct {
	Messages   []MessageDTO `json:"messages"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// Service handles customer/tasker chat.
type Service interface {
	Send(ctx context.Context, input SendInput) (*MessageDTO, error)
	ListConversations(ctx context.Context, userID uuid.UUID) ([]ConversationDTO, error)
	ListMessages(ctx context.Context, conversationID, actorUserID uuid.UUID, params pagination.Params) (*ListMessagesResult, error)
	MarkRead(ctx context.Context, conversationID, actorUserID uuid.UUID) error
}

// ServiceParams bundles the dependencies required to build the service.
type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Outbox outboxPublisher
	Users  userReader
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	users  userReader
}

// NewService builds a messaging service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("message repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user reader required")
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		outbox: params.Outbox,
		users:  params.Users,
	}, nil
}

func (s *service) Send(ctx context.Context, input SendInput) (*MessageDTO, error) {
	if input.SenderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message body is required")
	}

	var message *models.Message
	var recipientID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		conversation, err := s.resolveConversation(ctx, repo, input)
		if err != nil {
			return err
		}
		if conversation.CustomerID == input.SenderID {
			recipientID = conversation.TaskerID
		} else {
			recipientID = conversation.CustomerID
		}

		message = &models.Message{
			ConversationID: conversation.ID,
			SenderID:       input.SenderID,
			Body:           body,
		}
		if err := repo.CreateMessage(ctx, message); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create message")
		}
		if err := repo.TouchConversation(ctx, conversation.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch conversation")
		}

		preview := body
		if len(preview) > previewLength {
			preview = preview[:previewLength]
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMessageSent,
			AggregateType: enums.AggregateMessage,
			AggregateID:   message.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.SenderID},
			Data: payloads.MessageSentEvent{
				MessageID:      message.ID,
				ConversationID: conversation.ID,
				SenderID:       input.SenderID,
				RecipientID:    recipientID,
				Preview:        preview,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	dto := messageFromModel(*message)
	return &dto, nil
}

func (s *service) resolveConversation(ctx context.Context, repo Repository, input SendInput) (*models.Conversation, error) {
	if input.ConversationID != nil {
		conversation, err := repo.FindConversation(ctx, *input.ConversationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "conversation not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load conversation")
		}
		if conversation.CustomerID != input.SenderID && conversation.TaskerID != input.SenderID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a conversation participant")
		}
		return conversation, nil
	}

	if input.RecipientID == nil || *input.RecipientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "conversation or recipient required")
	}
	if *input.RecipientID == input.SenderID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot message yourself")
	}

	recipient, err := s.users.FindByID(ctx, *input.RecipientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "recipient not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recipient")
	}

	// The customer side of the pair is whoever is not the tasker.
	customerID, taskerID := input.SenderID, recipient.ID
	if recipient.Role != enums.UserRoleTasker {
		sender, err := s.users.FindByID(ctx, input.SenderID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sender")
		}
		if sender.Role != enums.UserRoleTasker {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "one side of a conversation must be a tasker")
		}
		customerID, taskerID = recipient.ID, input.SenderID
	}

	conversation, err := repo.FindOrCreateConversation(ctx, customerID, taskerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open conversation")
	}
	return conversation, nil
}

func (s *service) ListConversations(ctx context.Context, userID uuid.UUID) ([]ConversationDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.ListConversations(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list conversations")
	}
	out := make([]ConversationDTO, 0, len(rows))
	for _, row := range rows {
		unread, err := s.repo.CountUnread(ctx, row.ID, userID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread")
		}
		out = append(out, ConversationDTO{
			ID:          row.ID,
			CustomerID:  row.CustomerID,
			TaskerID:    row.TaskerID,
			UnreadCount: unread,
			UpdatedAt:   row.UpdatedAt,
		})
	}
	return out, nil
}

func (s *service) ListMessages(ctx context.Context, conversationID, actorUserID uuid.UUID, params pagination.Params) (*ListMessagesResult, error) {
	if _, err := s.requireParticipant(ctx, conversationID, actorUserID); err != nil {
		return nil, err
	}
	rows, nextCursor, err := s.repo.ListMessages(ctx, conversationID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list messages")
	}
	messages := make([]MessageDTO, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, messageFromModel(row))
	}
	return &ListMessagesResult{Messages: messages, NextCursor: nextCursor}, nil
}

func (s *service) MarkRead(ctx context.Context, conversationID, actorUserID uuid.UUID) error {
	if _, err := s.requireParticipant(ctx, conversationID, actorUserID); err != nil {
		return err
	}
	if err := s.repo.MarkRead(ctx, conversationID, actorUserID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark read")
	}
	return nil
}

func (s *service) requireParticipant(ctx context.Context, conversationID, actorUserID uuid.UUID) (*models.Conversation, error) {
	if actorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	conversation, err := s.repo.FindConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "conversation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load conversation")
	}
	if conversation.CustomerID != actorUserID && conversation.TaskerID != actorUserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not a conversation participant")
	}
	return conversation, nil
}

func messageFromModel(m models.Message) MessageDTO {
	return MessageDTO{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Body:           m.Body,
		ReadAt:         m.ReadAt,
		CreatedAt:      m.CreatedAt,
	}
}
