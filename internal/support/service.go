package support

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
)

// CreateInput is a user-filed support case.
type CreateInput struct {
	UserID  uuid.UUID
	Subject string `validate:"required,max=200"`
	Body    string `validate:"required,max=4000"`
}

// TicketDTO is a support ticket as shown to its owner or an admin.
type TicketDTO struct {
	ID        uuid.UUID          `json:"id"`
	UserID    uuid.UUID          `json:"user_id"`
	Subject   string             `json:"subject"`
	Body      string             `json:"body"`
	Status    enums.TicketStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Service handles support tickets.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*TicketDTO, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]TicketDTO, error)
	ListAll(ctx context.Context, status *enums.TicketStatus) ([]TicketDTO, error)
	UpdateStatus(ctx context.Context, ticketID uuid.UUID, rawStatus string) (*TicketDTO, error)
}

type service struct {
	repo Repository
}

// NewService builds a support service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("support repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*TicketDTO, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	subject := strings.TrimSpace(input.Subject)
	body := strings.TrimSpace(input.Body)
	if subject == "" || body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subject and body are required")
	}

	ticket := &models.SupportTicket{
		UserID:  input.UserID,
		Subject: subject,
		Body:    body,
		Status:  enums.TicketStatusOpen,
	}
	if err := s.repo.Create(ctx, ticket); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create ticket")
	}
	dto := fromModel(*ticket)
	return &dto, nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID) ([]TicketDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tickets")
	}
	return fromModels(rows), nil
}

func (s *service) ListAll(ctx context.Context, status *enums.TicketStatus) ([]TicketDTO, error) {
	rows, err := s.repo.ListByStatus(ctx, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tickets")
	}
	return fromModels(rows), nil
}

func (s *service) UpdateStatus(ctx context.Context, ticketID uuid.UUID, rawStatus string) (*TicketDTO, error) {
	status, err := enums.ParseTicketStatus(rawStatus)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse status")
	}
	ticket, err := s.repo.FindByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ticket")
	}
	if err := s.repo.UpdateStatus(ctx, ticketID, status); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update ticket")
	}
	ticket.Status = status
	dto := fromModel(*ticket)
	return &dto, nil
}

func fromModel(t models.SupportTicket) TicketDTO {
	return TicketDTO{
		ID:        t.ID,
		UserID:    t.UserID,
		Subject:   t.Subject,
		Body:      t.Body,
		Status:    t.Status,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func fromModels(rows []models.SupportTicket) []TicketDTO {
	out := make([]TicketDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromModel(row))
	}
	return out
}
