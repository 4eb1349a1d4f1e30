package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/tasklinkhq/tasklink-backend/pkg/auth"
	"github.com/tasklinkhq/tasklink-backend/pkg/auth/session"
	"github.com/tasklinkhq/tasklink-backend/pkg/config"
	"github.com/tasklinkhq/tasklink-backend/pkg/db/models"
	"github.com/tasklinkhq/tasklink-backend/pkg/enums"
	pkgerrors "github.com/tasklinkhq/tasklink-backend/pkg/errors"
	"github.com/tasklinkhq/tasklink-backend/pkg/security"
)

var testJWTConfig = config.JWTConfig{
	Secret:            "test-secret",
	Issuer:            "tasklink",
	ExpirationMinutes: 15,
}

var testPasswordConfig = config.PasswordConfig{
	ArgonMemoryKB:    8,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     8,
	ArgonKeyLen:      16,
}

type fakeUserRepo struct {
	byEmail    map[string]*models.User
	lastLogins map[uuid.UUID]time.Time
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byEmail:    make(map[string]*models.User),
		lastLogins: make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	f.lastLogins[id] = at
	return nil
}

type fakeSessionManager struct {
	sessions map[string]string
	rotated  int
}

func newFakeSessionManager() *fakeSessionManager {
	return &fakeSessionManager{sessions: make(map[string]string)}
}

func (f *fakeSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	token := "refresh-" + accessID
	f.sessions[accessID] = token
	return token, nil
}

func (f *fakeSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	stored, ok := f.sessions[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(f.sessions, oldAccessID)
	newAccessID := uuid.NewString()
	newToken := "refresh-" + newAccessID
	f.sessions[newAccessID] = newToken
	f.rotated++
	return newAccessID, newToken, nil
}

func (f *fakeSessionManager) Revoke(ctx context.Context, accessID string) error {
	delete(f.sessions, accessID)
	return nil
}

func seedUser(t *testing.T, repo *fakeUserRepo, email, password string, role enums.UserRole, active bool) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, testPasswordConfig)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "User",
		Role:         role,
		IsActive:     active,
	}
	repo.byEmail[email] = user
	return user
}

func newTestService(t *testing.T, repo *fakeUserRepo, sessions *fakeSessionManager) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: sessions,
		JWTConfig:      testJWTConfig,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestLoginSuccess(t *testing.T) {
	repo := newFakeUserRepo()
	sessions := newFakeSessionManager()
	user := seedUser(t, repo, "anna@example.com", "sup3rsecret", enums.UserRoleCustomer, true)
	svc := newTestService(t, repo, sessions)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "Anna@Example.com ",
		Password: "sup3rsecret",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected token pair")
	}
	if resp.User == nil || resp.User.ID != user.ID {
		t.Fatal("expected user payload")
	}
	if _, ok := repo.lastLogins[user.ID]; !ok {
		t.Fatal("expected last login recorded")
	}

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse minted token: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != enums.UserRoleCustomer {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, ok := sessions.sessions[claims.ID]; !ok {
		t.Fatal("expected session keyed by jti")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newFakeUserRepo()
	sessions := newFakeSessionManager()
	seedUser(t, repo, "anna@example.com", "sup3rsecret", enums.UserRoleCustomer, true)
	svc := newTestService(t, repo, sessions)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "anna@example.com",
		Password: "wrong",
	})
	assertUnauthorized(t, err)
}

func TestLoginInactiveUser(t *testing.T) {
	repo := newFakeUserRepo()
	sessions := newFakeSessionManager()
	seedUser(t, repo, "anna@example.com", "sup3rsecret", enums.UserRoleCustomer, false)
	svc := newTestService(t, repo, sessions)

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "anna@example.com",
		Password: "sup3rsecret",
	})
	assertUnauthorized(t, err)
}

func TestRefreshRotatesSession(t *testing.T) {
	repo := newFakeUserRepo()
	sessions := newFakeSessionManager()
	seedUser(t, repo, "anna@example.com", "sup3rsecret", enums.UserRoleTasker, true)
	svc := newTestService(t, repo, sessions)

	login, err := svc.Login(context.Background(), LoginRequest{
		Email:    "anna@example.com",
		Password: "sup3rsecret",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	resp, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if sessions.rotated != 1 {
		t.Fatalf("expected one rotation, got %d", sessions.rotated)
	}
	if resp.RefreshToken == login.RefreshToken {
		t.Fatal("expected a new refresh token")
	}

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse rotated token: %v", err)
	}
	if claims.Role != enums.UserRoleTasker {
		t.Fatalf("expected role preserved, got %s", claims.Role)
	}

	// Old refresh token is burned.
	_, err = svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	assertUnauthorized(t, err)
}

func TestLogoutRevokesSession(t *testing.T) {
	repo := newFakeUserRepo()
	sessions := newFakeSessionManager()
	seedUser(t, repo, "anna@example.com", "sup3rsecret", enums.UserRoleCustomer, true)
	svc := newTestService(t, repo, sessions)

	login, err := svc.Login(context.Background(), LoginRequest{
		Email:    "anna@example.com",
		Password: "sup3rsecret",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWTConfig, login.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}

	if err := svc.Logout(context.Background(), claims.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := sessions.sessions[claims.ID]; ok {
		t.Fatal("expected session removed")
	}
}

func assertUnauthorized(t *testing.T, err error) {
	t.Helper()
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) || appErr.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
