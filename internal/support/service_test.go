package support

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	pkgerrors "github.com/tasklinkhq/tasklink-backend/pkg/errors"
)

type fakeTicketRepo struct {
	tickets map[uuid.UUID]*models.SupportTicket
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[uuid.UUID]*models.SupportTicket)}
}

func (f *fakeTicketRepo) Create(ctx context.Context, ticket *models.SupportTicket) error {
	ticket.ID = uuid.New()
	f.tickets[ticket.ID] = ticket
	return nil
}

func (f *fakeTicketRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.SupportTicket, error) {
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return ticket, nil
}

func (f *fakeTicketRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.SupportTicket, error) {
	var out []models.SupportTicket
	for _, ticket := range f.tickets {
		if ticket.UserID == userID {
			out = append(out, *ticket)
		}
	}
	return out, nil
}

func (f *fakeTicketRepo) ListByStatus(ctx context.Context, status *enums.TicketStatus) ([]models.SupportTicket, error) {
	var out []models.SupportTicket
	for _, ticket := range f.tickets {
		if status == nil || ticket.Status == *status {
			out = append(out, *ticket)
		}
	}
	return out, nil
}

func (f *fakeTicketRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.TicketStatus) error {
	ticket, ok := f.tickets[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	ticket.Status = status
	return nil
}

func newSupportService(t *testing.T) (Service, *fakeTicketRepo) {
	t.Helper()
	repo := newFakeTicketRepo()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo
}

func TestCreateTicket(t *testing.T) {
	svc, _ := newSupportService(t)
	userID := uuid.New()

	dto, err := svc.Create(context.Background(), CreateInput{
		UserID:  userID,
		Subject: "Refund missing",
		Body:    "I canceled a task but the wallet was not credited.",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if dto.Status != enums.TicketStatusOpen {
		t.Fatalf("expected open, got %s", dto.Status)
	}

	mine, err := svc.ListMine(context.Background(), userID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 {
		t.Fatalf("expected one ticket, got %d", len(mine))
	}
}

func TestCreateTicketValidation(t *testing.T) {
	svc, _ := newSupportService(t)

	_, err := svc.Create(context.Background(), CreateInput{UserID: uuid.New(), Subject: " ", Body: "x"})
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateTicketStatus(t *testing.T) {
	svc, repo := newSupportService(t)
	ticket := &models.SupportTicket{ID: uuid.New(), UserID: uuid.New(), Subject: "s", Body: "b", Status: enums.TicketStatusOpen}
	repo.tickets[ticket.ID] = ticket

	dto, err := svc.UpdateStatus(context.Background(), ticket.ID, "resolved")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if dto.Status != enums.TicketStatusResolved {
		t.Fatalf("expected resolved, got %s", dto.Status)
	}

	_, err = svc.UpdateStatus(context.Background(), ticket.ID, "bogus")
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
