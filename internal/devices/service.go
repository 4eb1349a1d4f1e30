package devices

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	pkgerrors "github.com/tasklinkhq/tasklink-backend/pkg/errors"
)

// RegisterInput binds an FCM token to the authenticated user.
type RegisterInput struct {
	UserID   uuid.UUID
	Token    string `validate:"required,max=4096"`
	Platform string `validate:"required,oneof=ios android web"`
}

// DeviceDTO is a registered push target.
type DeviceDTO struct {
	ID         uuid.UUID            `json:"id"`
	Platform   enums.DevicePlatform `json:"platform"`
	LastSeenAt time.Time            `json:"last_seen_at"`
	CreatedAt  time.Time            `json:"created_at"`
}

// Service manages push device token registration.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*DeviceDTO, error)
	Remove(ctx context.Context, userID uuid.UUID, token string) error
	ListMine(ctx context.Context, userID uuid.UUID) ([]DeviceDTO, error)
	// TokensForUser and PruneToken serve the notification consumer.
	TokensForUser(ctx context.Context, userID uuid.UUID) ([]string, error)
	PruneToken(ctx context.Context, token string) error
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a device registry service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("device repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*DeviceDTO, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	token := strings.TrimSpace(input.Token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device token is required")
	}
	platform, err := enums.ParseDevicePlatform(input.Platform)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse platform")
	}

	device := &models.UserDevice{
		UserID:     input.UserID,
		Token:      token,
		Platform:   platform,
		LastSeenAt: s.now(),
	}
	if err := s.repo.Upsert(ctx, device); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register device")
	}
	return &DeviceDTO{
		ID:         device.ID,
		Platform:   device.Platform,
		LastSeenAt: device.LastSeenAt,
		CreatedAt:  device.CreatedAt,
	}, nil
}

func (s *service) Remove(ctx context.Context, userID uuid.UUID, token string) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "device token is required")
	}
	removed, err := s.repo.DeleteToken(ctx, userID, token)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove device")
	}
	if !removed {
		return pkgerrors.New(pkgerrors.CodeNotFound, "device not registered")
	}
	return nil
}

func (s *service) ListMine(ctx context.Context, userID uuid.UUID) ([]DeviceDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list devices")
	}
	out := make([]DeviceDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, DeviceDTO{
			ID:         row.ID,
			Platform:   row.Platform,
			LastSeenAt: row.LastSeenAt,
			CreatedAt:  row.CreatedAt,
		})
	}
	return out, nil
}

func (s *service) TokensForUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(rows))
	for _, row := range rows {
		tokens = append(tokens, row.Token)
	}
	return tokens, nil
}

func (s *service) PruneToken(ctx context.Context, token string) error {
	return s.repo.DeleteByToken(ctx, token)
}
