package taskers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/tasklinkhq/tasklink-backend/pkg/db/types"
	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	pkgerrors "github.com/tasklinkhq/tasklink-backend/pkg/errors"
)

const maxGalleryImages = 12

// Service defines tasker listing operations.
type Service interface {
	UpsertProfile(ctx context.Context, userID uuid.UUID, input UpsertProfileInput) (*ProfileDTO, error)
	GetProfile(ctx context.Context, taskerUserID uuid.UUID) (*ProfileDTO, error)
	Browse(ctx context.Context, input BrowseInput) (*BrowseResult, error)
	ReplaceAvailability(ctx context.Context, taskerID uuid.UUID, slots []AvailabilitySlot) error
	ListAvailability(ctx context.Context, taskerID uuid.UUID) ([]AvailabilitySlot, error)
	AddGalleryImage(ctx context.Context, taskerID uuid.UUID, path string) (*GalleryItem, error)
	RemoveGalleryImage(ctx context.Context, taskerID, imageID uuid.UUID) error
}

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type service struct {
	repo  Repository
	users userReader
	now   func() time.Time
}

// NewService builds a taskers service with the required dependencies.
func NewService(repo Repository, users userReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("taskers repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("users reader required")
	}
	return &service{
		repo:  repo,
		users: users,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) UpsertProfile(ctx context.Context, userID uuid.UUID, input UpsertProfileInput) (*ProfileDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != enums.UserRoleTasker {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only taskers can publish a listing")
	}
	if input.HourlyRateCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "hourly rate must be positive")
	}
	if input.CityID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "city is required")
	}
	if len(input.CategoryIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one category is required")
	}

	visible := true
	if input.IsVisible != nil {
		visible = *input.IsVisible
	}

	profile := &models.TaskerProfile{
		UserID:          userID,
		Description:     input.Description,
		HourlyRateCents: input.HourlyRateCents,
		CityID:          input.CityID,
		CategoryIDs:     dbtypes.UUIDArray(input.CategoryIDs),
		IsVisible:       visible,
	}
	if err := s.repo.Upsert(ctx, profile); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save tasker profile")
	}

	return s.GetProfile(ctx, userID)
}

func (s *service) GetProfile(ctx context.Context, taskerUserID uuid.UUID) (*ProfileDTO, error) {
	if taskerUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tasker id required")
	}
	profile, err := s.repo.FindByUserID(ctx, taskerUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tasker profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tasker profile")
	}

	user, err := s.loadUser(ctx, taskerUserID)
	if err != nil {
		return nil, err
	}

	dto := profileFromModel(profile, user.FirstName, user.LastName)

	gallery, err := s.repo.ListGallery(ctx, taskerUserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gallery")
	}
	for _, image := range gallery {
		dto.Gallery = append(dto.Gallery, GalleryItem{
			ID:       image.ID,
			Path:     image.Path,
			Position: image.Position,
		})
	}
	return dto, nil
}

func (s *service) Browse(ctx context.Context, input BrowseInput) (*BrowseResult, error) {
	result, err := s.repo.Browse(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "browse taskers")
	}
	return result, nil
}

func (s *service) ReplaceAvailability(ctx context.Context, taskerID uuid.UUID, slots []AvailabilitySlot) error {
	if taskerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	now := s.now()
	rows := make([]models.TaskerAvailability, 0, len(slots))
	for _, slot := range slots {
		if !slot.EndAt.After(slot.StartAt) {
			return pkgerrors.New(pkgerrors.CodeValidation, "slot end must be after start")
		}
		if slot.EndAt.Before(now) {
			return pkgerrors.New(pkgerrors.CodeValidation, "slots cannot be entirely in the past")
		}
		rows = append(rows, models.TaskerAvailability{
			TaskerID: taskerID,
			StartAt:  slot.StartAt.UTC(),
			EndAt:    slot.EndAt.UTC(),
		})
	}

	if err := s.repo.ReplaceAvailability(ctx, taskerID, rows); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace availability")
	}
	return nil
}

func (s *service) ListAvailability(ctx context.Context, taskerID uuid.UUID) ([]AvailabilitySlot, error) {
	if taskerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tasker id required")
	}
	rows, err := s.repo.ListAvailability(ctx, taskerID, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list availability")
	}
	slots := make([]AvailabilitySlot, 0, len(rows))
	for _, row := range rows {
		slots = append(slots, AvailabilitySlot{
			ID:      row.ID,
			StartAt: row.StartAt,
			EndAt:   row.EndAt,
		})
	}
	return slots, nil
}

func (s *service) AddGalleryImage(ctx context.Context, taskerID uuid.UUID, path string) (*GalleryItem, error) {
	if taskerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if path == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "image path required")
	}

	existing, err := s.repo.ListGallery(ctx, taskerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load gallery")
	}
	if len(existing) >= maxGalleryImages {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "gallery is full")
	}

	image := &models.TaskerGalleryImage{
		TaskerID: taskerID,
		Path:     path,
		Position: len(existing),
	}
	if err := s.repo.AddGalleryImage(ctx, image); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add gallery image")
	}
	return &GalleryItem{ID: image.ID, Path: image.Path, Position: image.Position}, nil
}

func (s *service) RemoveGalleryImage(ctx context.Context, taskerID, imageID uuid.UUID) error {
	if taskerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	removed, err := s.repo.RemoveGalleryImage(ctx, taskerID, imageID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove gallery image")
	}
	if !removed {
		return pkgerrors.New(pkgerrors.CodeNotFound, "gallery image not found")
	}
	return nil
}

func (s *service) loadUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}
