package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/service/audit"
	"github.com/jwalitptl/fieldservice-api/internal/testutil"
	"github.com/jwalitptl/fieldservice-api/pkg/auth"
	apperrors "github.com/jwalitptl/fieldservice-api/pkg/errors"
	"github.com/jwalitptl/fieldservice-api/pkg/security"
)

func setup(t *testing.T) (*Service, *testutil.Repos, *model.User) {
	t.Helper()
	repos := testutil.NewRepos(t)
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	jwtSvc := auth.NewJWTService(auth.Config{Secret: "test-secret", AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour})
	svc := NewService(repos.Users, jwtSvc, hasher, audit.NewService(repos.Audit), time.Minute)

	hash, err := hasher.Hash("s3cret-pass")
	require.NoError(t, err)
	user := &model.User{
		Email:        "tech@example.com",
		Name:         "Tess Tech",
		Role:         model.RoleTechnician,
		PasswordHash: hash,
		IsActive:     true,
	}
	require.NoError(t, repos.Users.Create(context.Background(), user))
	return svc, repos, user
}

func TestLoginFlow(t *testing.T) {
	svc, repos, user := setup(t)
	ctx := context.Background()

	// Email is matched case-insensitively
	tokens, err := svc.Login(ctx, model.LoginRequest{Email: " Tech@Example.com ", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, int64(3600), tokens.ExpiresIn)
	assert.Equal(t, user.ID, tokens.User.ID)

	// Login is audited
	logs, total, err := repos.Audit.List(ctx, model.AuditFilters{Action: model.AuditActionLogin})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, user.ID, logs[0].EntityID)

	// Refresh issues a new pair
	refreshed, err := svc.RefreshToken(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	// An access token cannot refresh
	_, err = svc.RefreshToken(ctx, tokens.AccessToken)
	assert.Equal(t, 401, mustAppError(t, err).StatusCode())
}

func TestLoginRejections(t *testing.T) {
	svc, repos, user := setup(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, model.LoginRequest{Email: "tech@example.com", Password: "wrong-pass"})
	assert.Equal(t, ErrInvalidCredentials, err)

	_, err = svc.Login(ctx, model.LoginRequest{Email: "nobody@example.com", Password: "s3cret-pass"})
	assert.Equal(t, ErrInvalidCredentials, err)

	// Inactive users get the same answer as a bad password
	require.NoError(t, repos.Users.SetActive(ctx, user.ID, false))
	_, err = svc.Login(ctx, model.LoginRequest{Email: "tech@example.com", Password: "s3cret-pass"})
	assert.Equal(t, ErrInvalidCredentials, err)
}

func TestAuthenticateCachesUsers(t *testing.T) {
	svc, repos, user := setup(t)
	ctx := context.Background()

	tokens, err := svc.Login(ctx, model.LoginRequest{Email: "tech@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)

	got, err := svc.Authenticate(ctx, tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	// Deactivation is only seen once the cache entry is dropped
	require.NoError(t, repos.Users.SetActive(ctx, user.ID, false))
	_, err = svc.Authenticate(ctx, tokens.AccessToken)
	require.NoError(t, err)

	svc.Forget(user.ID)
	_, err = svc.Authenticate(ctx, tokens.AccessToken)
	assert.Equal(t, 401, mustAppError(t, err).StatusCode())

	_, err = svc.Authenticate(ctx, "not-a-token")
	assert.Equal(t, 401, mustAppError(t, err).StatusCode())
}

func TestChangePassword(t *testing.T) {
	svc, _, user := setup(t)
	ctx := context.Background()
	actor := model.Actor{ID: user.ID, Role: user.Role}

	err := svc.ChangePassword(ctx, actor, model.ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "another-pass"})
	assert.Equal(t, 422, mustAppError(t, err).StatusCode())

	require.NoError(t, svc.ChangePassword(ctx, actor, model.ChangePasswordRequest{CurrentPassword: "s3cret-pass", NewPassword: "another-pass"}))

	_, err = svc.Login(ctx, model.LoginRequest{Email: "tech@example.com", Password: "s3cret-pass"})
	assert.Equal(t, ErrInvalidCredentials, err)
	_, err = svc.Login(ctx, model.LoginRequest{Email: "tech@example.com", Password: "another-pass"})
	assert.NoError(t, err)
}

func mustAppError(t *testing.T, err error) *apperrors.AppError {
	t.Helper()
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "expected an AppError, got %v", err)
	return appErr
}
