package taskers

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
)

type fakeRepo struct {
	Repository
	profiles     map[uuid.UUID]*models.TaskerProfile
	gallery      map[uuid.UUID][]models.TaskerGalleryImage
	availability map[uuid.UUID][]models.TaskerAvailability
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		profiles:     make(map[uuid.UUID]*models.TaskerProfile),
		gallery:      make(map[uuid.UUID][]models.TaskerGalleryImage),
		availability: make(map[uuid.UUID][]models.TaskerAvailability),
	}
}

func (f *fakeRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.TaskerProfile, error) {
	profile, ok := f.profiles[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return profile, nil
}

func (f *fakeRepo) Upsert(ctx context.Context, profile *models.TaskerProfile) error {
	if existing, ok := f.profiles[profile.UserID]; ok {
		profile.ID = existing.ID
	} else if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	f.profiles[profile.UserID] = profile
	return nil
}

func (f *fakeRepo) ReplaceAvailability(ctx context.Context, taskerID uuid.UUID, slots []models.TaskerAvailability) error {
	f.availability[taskerID] = slots
	return nil
}

func (f *fakeRepo) ListAvailability(ctx context.Context, taskerID uuid.UUID, from time.Time) ([]models.TaskerAvailability, error) {
	var out []models.TaskerAvailability
	for _, slot := range f.availability[taskerID] {
		if slot.EndAt.After(from) {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (f *fakeRepo) AddGalleryImage(ctx context.Context, image *models.TaskerGalleryImage) error {
	image.ID = uuid.New()
	f.gallery[image.TaskerID] = append(f.gallery[image.TaskerID], *image)
	return nil
}

func (f *fakeRepo) RemoveGalleryImage(ctx context.Context, taskerID, imageID uuid.UUID) (bool, error) {
	images := f.gallery[taskerID]
	for i, image := range images {
		if image.ID == imageID {
			f.gallery[taskerID] = append(images[:i], images[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) ListGallery(ctx context.Context, taskerID uuid.UUID) ([]models.TaskerGalleryImage, error) {
	return f.gallery[taskerID], nil
}

type fakeUserReader struct {
	users map[uuid.UUID]*models.User
}

func (f *fakeUserReader) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func newTestService(t *testing.T) (Service, *fakeRepo, *fakeUserReader) {
	t.Helper()
	repo := newFakeRepo()
	userReader := &fakeUserReader{users: make(map[uuid.UUID]*models.User)}
	svc, err := NewService(repo, userReader)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo, userReader
}

func seedTasker(reader *fakeUserReader) uuid.UUID {
	id := uuid.New()
	reader.users[id] = &models.User{
		ID:        id,
		FirstName: "Greta",
		LastName:  "Kas",
		Role:      enums.UserRoleTasker,
		IsActive:  true,
	}
	return id
}

func TestUpsertProfileRequiresTaskerRole(t *testing.T) {
	svc, _, userReader := newTestService(t)
	customerID := uuid.New()
	userReader.users[customerID] = &models.User{ID: customerID, Role: enums.UserRoleCustomer}

	_, err := svc.UpsertProfile(context.Background(), customerID, UpsertProfileInput{
		Description:     "I fix things",
		HourlyRateCents: 2500,
		CityID:          uuid.New(),
		CategoryIDs:     []uuid.UUID{uuid.New()},
	})
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestUpsertProfileCreatesAndUpdates(t *testing.T) {
	svc, repo, userReader := newTestService(t)
	taskerID := seedTasker(userReader)
	cityID := uuid.New()

	dto, err := svc.UpsertProfile(context.Background(), taskerID, UpsertProfileInput{
		Description:     "I fix things",
		HourlyRateCents: 2500,
		CityID:          cityID,
		CategoryIDs:     []uuid.UUID{uuid.New()},
	})
	if err != nil {
		t.Fatalf("upsert profile: %v", err)
	}
	if dto.HourlyRateCents != 2500 || dto.FirstName != "Greta" {
		t.Fatalf("unexpected dto %+v", dto)
	}
	firstID := repo.profiles[taskerID].ID

	dto, err = svc.UpsertProfile(context.Background(), taskerID, UpsertProfileInput{
		Description:     "I fix more things",
		HourlyRateCents: 3000,
		CityID:          cityID,
		CategoryIDs:     []uuid.UUID{uuid.New()},
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if dto.HourlyRateCents != 3000 {
		t.Fatalf("expected updated rate, got %d", dto.HourlyRateCents)
	}
	if repo.profiles[taskerID].ID != firstID {
		t.Fatal("expected the same profile row to be updated")
	}
}

func TestUpsertProfileValidation(t *testing.T) {
	svc, _, userReader := newTestService(t)
	taskerID := seedTasker(userReader)

	_, err := svc.UpsertProfile(context.Background(), taskerID, UpsertProfileInput{
		Description:     "no rate",
		HourlyRateCents: 0,
		CityID:          uuid.New(),
		CategoryIDs:     []uuid.UUID{uuid.New()},
	})
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReplaceAvailabilityRejectsInvertedSlot(t *testing.T) {
	svc, _, userReader := newTestService(t)
	taskerID := seedTasker(userReader)
	now := time.Now()

	err := svc.ReplaceAvailability(context.Background(), taskerID, []AvailabilitySlot{
		{StartAt: now.Add(2 * time.Hour), EndAt: now.Add(time.Hour)},
	})
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGalleryLimit(t *testing.T) {
	svc, repo, userReader := newTestService(t)
	taskerID := seedTasker(userReader)

	for i := 0; i < maxGalleryImages; i++ {
		if _, err := svc.AddGalleryImage(context.Background(), taskerID, "images/sample.jpg"); err != nil {
			t.Fatalf("add image %d: %v", i, err)
		}
	}
	if len(repo.gallery[taskerID]) != maxGalleryImages {
		t.Fatalf("expected %d images, got %d", maxGalleryImages, len(repo.gallery[taskerID]))
	}

	_, err := svc.AddGalleryImage(context.Background(), taskerID, "images/one-too-many.jpg")
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestRemoveGalleryImageNotFound(t *testing.T) {
	svc, _, userReader := newTestService(t)
	taskerID := seedTasker(userReader)

	err := svc.RemoveGalleryImage(context.Background(), taskerID, uuid.New())
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
