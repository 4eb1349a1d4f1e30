package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tasklinkhq/tasklink-backend/internal/users"
	"github.com/tasklinkhq/tasklink-backend/pkg/config"
	pkgmodels "github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	pkgerrors "github.com/tasklinkhq/tasklink-backend/pkg/errors"
)

type stubTxRunner struct{}

func (s stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubUserRepository struct {
	data      map[string]*pkgmodels.User
	created   *pkgmodels.User
	createErr error
}

func newStubUserRepository() *stubUserRepository {
	return &stubUserRepository{data: map[string]*pkgmodels.User{}}
}

func (s *stubUserRepository) FindByEmail(ctx context.Context, email string) (*pkgmodels.User, error) {
	if user, ok := s.data[email]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepository) Create(ctx context.Context, dto users.CreateUserDTO) (*pkgmodels.User, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	user := dto.ToModel()
	user.ID = uuid.New()
	s.data[dto.Email] = user
	s.created = user
	return user, nil
}

func newRegisterTestService(t *testing.T, repo *stubUserRepository) RegisterService {
	t.Helper()
	svc, err := NewRegisterService(RegisterServiceParams{
		TxRunner: stubTxRunner{},
		UserRepoFactory: func(tx *gorm.DB) registerUserRepository {
			return repo
		},
		PasswordConfig: config.PasswordConfig{},
	})
	if err != nil {
		t.Fatalf("new register service: %v", err)
	}
	return svc
}

func sampleRegisterRequest(email string) RegisterRequest {
	return RegisterRequest{
		FirstName: "Jamie",
		LastName:  "Rivera",
		Email:     email,
		Password:  "Secret123!",
		AcceptTOS: true,
	}
}

func TestRegisterCreatesCustomer(t *testing.T) {
	repo := newStubUserRepository()
	svc := newRegisterTestService(t, repo)

	req := sampleRegisterRequest("New@Example.com")
	if err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if repo.created == nil {
		t.Fatalf("expected user to be created")
	}
	if repo.created.Email != "new@example.com" {
		t.Fatalf("expected lowercased email, got %q", repo.created.Email)
	}
	if repo.created.Role != enums.UserRoleCustomer {
		t.Fatalf("expected customer role, got %s", repo.created.Role)
	}
	if repo.created.PasswordHash == "" || repo.created.PasswordHash == req.Password {
		t.Fatalf("expected hashed password")
	}
}

func TestRegisterAsTasker(t *testing.T) {
	repo := newStubUserRepository()
	svc := newRegisterTestService(t, repo)

	req := sampleRegisterRequest("tasker@example.com")
	req.AsTasker = true
	if err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if repo.created.Role != enums.UserRoleTasker {
		t.Fatalf("expected tasker role, got %s", repo.created.Role)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newStubUserRepository()
	repo.data["taken@example.com"] = &pkgmodels.User{ID: uuid.New(), Email: "taken@example.com"}
	svc := newRegisterTestService(t, repo)

	err := svc.Register(context.Background(), sampleRegisterRequest("taken@example.com"))
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegisterRequiresTOS(t *testing.T) {
	repo := newStubUserRepository()
	svc := newRegisterTestService(t, repo)

	req := sampleRegisterRequest("new@example.com")
	req.AcceptTOS = false
	err := svc.Register(context.Background(), req)
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
