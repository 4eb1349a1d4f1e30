package devices

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	pkgerrors "github.com/tasklinkhq/tasklink-backend/pkg/errors"
)

type fakeDeviceRepo struct {
	devices map[string]*models.UserDevice
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{devices: make(map[string]*models.UserDevice)}
}

func (f *fakeDeviceRepo) Upsert(ctx context.Context, device *models.UserDevice) error {
	if existing, ok := f.devices[device.Token]; ok {
		existing.UserID = device.UserID
		existing.Platform = device.Platform
		existing.LastSeenAt = device.LastSeenAt
		*device = *existing
		return nil
	}
	device.ID = uuid.New()
	device.CreatedAt = time.Now()
	f.devices[device.Token] = device
	return nil
}

func (f *fakeDeviceRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.UserDevice, error) {
	var out []models.UserDevice
	for _, device := range f.devices {
		if device.UserID == userID {
			out = append(out, *device)
		}
	}
	return out, nil
}

func (f *fakeDeviceRepo) DeleteToken(ctx context.Context, userID uuid.UUID, token string) (bool, error) {
	device, ok := f.devices[token]
	if !ok || device.UserID != userID {
		return false, nil
	}
	delete(f.devices, token)
	return true, nil
}

func (f *fakeDeviceRepo) DeleteByToken(ctx context.Context, token string) error {
	delete(f.devices, token)
	return nil
}

func newDeviceService(t *testing.T) (Service, *fakeDeviceRepo) {
	t.Helper()
	repo := newFakeDeviceRepo()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo
}

func TestRegisterDevice(t *testing.T) {
	svc, repo := newDeviceService(t)
	userID := uuid.New()

	dto, err := svc.Register(context.Background(), RegisterInput{
		UserID:   userID,
		Token:    "fcm-token-1",
		Platform: "android",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if dto.ID == uuid.Nil {
		t.Fatal("expected device id")
	}
	if repo.devices["fcm-token-1"].UserID != userID {
		t.Fatal("token not bound to user")
	}
}

func TestRegisterRebindsTokenToNewUser(t *testing.T) {
	svc, repo := newDeviceService(t)
	firstID := uuid.New()
	secondID := uuid.New()

	if _, err := svc.Register(context.Background(), RegisterInput{UserID: firstID, Token: "shared", Platform: "ios"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(context.Background(), RegisterInput{UserID: secondID, Token: "shared", Platform: "ios"}); err != nil {
		t.Fatalf("second register: %v", err)
	}

	if len(repo.devices) != 1 {
		t.Fatalf("expected one row per token, got %d", len(repo.devices))
	}
	if repo.devices["shared"].UserID != secondID {
		t.Fatal("expected token moved to the latest account")
	}

	tokens, err := svc.TokensForUser(context.Background(), firstID)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	if len(tokens) != 0 {
		t.Fatalf("expected no tokens for the previous owner, got %v", tokens)
	}
}

func TestRegisterRejectsUnknownPlatform(t *testing.T) {
	svc, _ := newDeviceService(t)

	_, err := svc.Register(context.Background(), RegisterInput{UserID: uuid.New(), Token: "t", Platform: "windows"})
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRemoveDevice(t *testing.T) {
	svc, _ := newDeviceService(t)
	userID := uuid.New()

	if _, err := svc.Register(context.Background(), RegisterInput{UserID: userID, Token: "gone", Platform: "web"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.Remove(context.Background(), userID, "gone"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	err := svc.Remove(context.Background(), userID, "gone")
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPruneToken(t *testing.T) {
	svc, repo := newDeviceService(t)
	userID := uuid.New()

	if _, err := svc.Register(context.Background(), RegisterInput{UserID: userID, Token: "stale", Platform: "android"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.PruneToken(context.Background(), "stale"); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if len(repo.devices) != 0 {
		t.Fatal("expected token pruned")
	}
}
