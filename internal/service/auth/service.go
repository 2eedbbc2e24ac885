package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository"
	"github.com/jwalitptl/fieldservice-api/internal/service/audit"
	"github.com/jwalitptl/fieldservice-api/pkg/auth"
	apperrors "github.com/jwalitptl/fieldservice-api/pkg/errors"
	"github.com/jwalitptl/fieldservice-api/pkg/security"
)

const defaultUserTTL = time.Minute

var ErrInvalidCredentials = apperrors.Unauthorized("invalid email or password")

type Service struct {
	userRepo repository.UserRepository
	jwtSvc   auth.JWTService
	hasher   security.PasswordHasher
	auditor  *audit.Service
	users    *gocache.Cache
}

// NewService creates the authentication service. Users resolved from tokens
// are cached for userTTL so that every request does not hit the database.
func NewService(userRepo repository.UserRepository, jwtSvc auth.JWTService, hasher security.PasswordHasher,
	auditor *audit.Service, userTTL time.Duration) *Service {
	if userTTL <= 0 {
		userTTL = defaultUserTTL
	}
	return &Service{
		userRepo: userRepo,
		jwtSvc:   jwtSvc,
		hasher:   hasher,
		auditor:  auditor,
		users:    gocache.New(userTTL, 2*userTTL),
	}
}

func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}
	// Same answer as a wrong password so accounts cannot be enumerated
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	tokens, err := s.generateTokens(user)
	if err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, model.Actor{ID: user.ID, Role: user.Role}, model.AuditActionLogin, model.AuditEntityUser, user.ID, nil)
	return tokens, nil
}

func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	claims, err := s.jwtSvc.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}

	user, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return s.generateTokens(user)
}

// Authenticate resolves an access token to its active user
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.jwtSvc.ValidateAccessToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired token")
	}

	if cached, ok := s.users.Get(claims.UserID.String()); ok {
		return cached.(*model.User), nil
	}

	user, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	s.users.SetDefault(user.ID.String(), user)
	return user, nil
}

// Forget drops a cached user so that the next request sees its current state
func (s *Service) Forget(userID uuid.UUID) {
	s.users.Delete(userID.String())
}

func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	return s.userRepo.Get(ctx, userID)
}

func (s *Service) ChangePassword(ctx context.Context, actor model.Actor, req model.ChangePasswordRequest) error {
	user, err := s.userRepo.Get(ctx, actor.ID)
	if err != nil {
		return err
	}

	if err := s.hasher.Compare(user.PasswordHash, req.CurrentPassword); err != nil {
		return apperrors.Validation("current password is incorrect")
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return apperrors.Validation("password must be at least 8 characters")
		}
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	s.Forget(user.ID)

	s.auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityUser, user.ID, map[string]interface{}{
		"password_changed": true,
	})
	return nil
}

func (s *Service) activeUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.Get(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.Unauthorized("user no longer exists")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, apperrors.Unauthorized("user is inactive")
	}
	return user, nil
}

func (s *Service) generateTokens(user *model.User) (*model.TokenResponse, error) {
	accessToken, err := s.jwtSvc.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := s.jwtSvc.GenerateRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &model.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtSvc.AccessTTL().Seconds()),
		User:         user,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
