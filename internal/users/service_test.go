package users

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

type fakeUserRepo struct {
	users       map[uuid.UUID]*models.User
	roleUpdates map[uuid.UUID]string
	findErr     error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:       make(map[uuid.UUID]*models.User),
		roleUpdates: make(map[uuid.UUID]string),
	}
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	user, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, dto UpdateProfileDTO) error {
	user, ok := f.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if dto.FirstName != nil {
		user.FirstName = *dto.FirstName
	}
	if dto.LastName != nil {
		user.LastName = *dto.LastName
	}
	if dto.Phone != nil {
		user.Phone = dto.Phone
	}
	return nil
}

func (f *fakeUserRepo) UpdateRole(ctx context.Context, id uuid.UUID, role string) error {
	f.roleUpdates[id] = role
	if user, ok := f.users[id]; ok {
		user.Role = enums.UserRole(role)
	}
	return nil
}

func TestGetProfileNotFound(t *testing.T) {
	svc, err := NewService(newFakeUserRepo())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.GetProfile(context.Background(), uuid.New())
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateProfileAppliesFields(t *testing.T) {
	repo := newFakeUserRepo()
	userID := uuid.New()
	repo.users[userID] = &models.User{
		ID:        userID,
		Email:     "jo@example.com",
		FirstName: "Jo",
		LastName:  "Doe",
		Role:      enums.UserRoleCustomer,
		IsActive:  true,
	}

	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	first := "Joanna"
	dto, err := svc.UpdateProfile(context.Background(), userID, UpdateProfileDTO{FirstName: &first})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if dto.FirstName != "Joanna" {
		t.Fatalf("expected first name updated, got %q", dto.FirstName)
	}
	if dto.LastName != "Doe" {
		t.Fatalf("unexpected last name change %q", dto.LastName)
	}
}

func TestBecomeTasker(t *testing.T) {
	repo := newFakeUserRepo()
	userID := uuid.New()
	repo.users[userID] = &models.User{ID: userID, Role: enums.UserRoleCustomer, IsActive: true}

	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if err := svc.BecomeTasker(context.Background(), userID); err != nil {
		t.Fatalf("become tasker: %v", err)
	}
	if repo.roleUpdates[userID] != string(enums.UserRoleTasker) {
		t.Fatalf("expected role update to tasker, got %q", repo.roleUpdates[userID])
	}

	// Already a tasker: no-op, no second update.
	delete(repo.roleUpdates, userID)
	if err := svc.BecomeTasker(context.Background(), userID); err != nil {
		t.Fatalf("repeat become tasker: %v", err)
	}
	if _, ok := repo.roleUpdates[userID]; ok {
		t.Fatal("expected no role update for existing tasker")
	}
}

func TestBecomeTaskerRejectsAdmin(t *testing.T) {
	repo := newFakeUserRepo()
	userID := uuid.New()
	repo.users[userID] = &models.User{ID: userID, Role: enums.UserRoleAdmin, IsActive: true}

	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	err = svc.BecomeTasker(context.Background(), userID)
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}
