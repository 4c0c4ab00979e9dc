package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/campuspass/outpass-api/internal/dto"
	"github.com/campuspass/outpass-api/internal/models"
)

const testSecret = "unit-test-secret"

func newAuthService(f *workflowFixture, ttl time.Duration) AuthService {
	return NewAuthService(f.users, testValidator(), testSecret, ttl, testLogger())
}

func registerRequest() dto.RegisterRequest {
	return dto.RegisterRequest{
		Username:       "newstudent",
		FullName:       "New Student",
		Email:          "new.student@example.com",
		Password:       "sup3rsecret",
		RegistrationNo: "CS2025001",
		DeptID:         1,
	}
}

func TestAuthServiceRegisterAndLogin(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := newAuthService(f, time.Hour)

	created, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)
	require.Equal(t, models.RoleStudent, created.Role)
	require.Equal(t, "new.student@example.com", created.Email)
	require.True(t, created.IsActive)

	resp, err := svc.Login(context.Background(), dto.LoginRequest{Identifier: "new.student@example.com", Password: "sup3rsecret"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	require.Equal(t, created.ID, resp.User.ID)

	// Username works as an identifier too.
	byUsername, err := svc.Login(context.Background(), dto.LoginRequest{Identifier: "newstudent", Password: "sup3rsecret"})
	require.NoError(t, err)
	require.Equal(t, created.ID, byUsername.User.ID)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (any, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	require.Equal(t, float64(created.ID), claims["sub"])
	require.Equal(t, models.RoleStudent, claims["role"])
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := newAuthService(f, time.Hour)

	_, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), dto.LoginRequest{Identifier: "new.student@example.com", Password: "wrongpassword"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), dto.LoginRequest{Identifier: "nobody@example.com", Password: "whatever1"})
	require.ErrorIs(t, err, ErrInvalidCredentials, "unknown accounts get the same error as bad passwords")
}

func TestAuthServiceLoginDisabledAccount(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := newAuthService(f, time.Hour)

	created, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", created.ID).Update("is_active", false).Error)

	_, err = svc.Login(context.Background(), dto.LoginRequest{Identifier: created.Email, Password: "sup3rsecret"})
	require.ErrorIs(t, err, ErrAccountDisabled)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := newAuthService(f, time.Hour)

	_, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	second := registerRequest()
	second.Username = "otherstudent"
	second.RegistrationNo = "CS2025002"
	_, err = svc.Register(context.Background(), second)
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthServiceTokenExpiry(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := newAuthService(f, 30*time.Minute)
	svc.(*authService).now = func() time.Time { return fixedNow }

	_, err := svc.Register(context.Background(), registerRequest())
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), dto.LoginRequest{Identifier: "new.student@example.com", Password: "sup3rsecret"})
	require.NoError(t, err)
	require.Equal(t, fixedNow.Add(30*time.Minute), resp.ExpiresAt.UTC())
}

func TestAuthServiceProfile(t *testing.T) {
	f := newWorkflowFixture(t)
	svc := newAuthService(f, time.Hour)

	profile, err := svc.Profile(context.Background(), f.student.ID)
	require.NoError(t, err)
	require.Equal(t, f.student.Email, profile.Email)
	require.Equal(t, "Computer Science", profile.Department)

	_, err = svc.Profile(context.Background(), 9999)
	require.ErrorIs(t, err, ErrUserNotFound)
}
