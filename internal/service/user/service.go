package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository"
	"github.com/jwalitptl/fieldservice-api/internal/service/audit"
	apperrors "github.com/jwalitptl/fieldservice-api/pkg/errors"
	"github.com/jwalitptl/fieldservice-api/pkg/security"
)

// SessionCache drops cached copies of a user after it changes
type SessionCache interface {
	Forget(userID uuid.UUID)
}

type Service struct {
	repo     repository.UserRepository
	hasher   security.PasswordHasher
	auditor  *audit.Service
	sessions SessionCache
}

func NewService(repo repository.UserRepository, hasher security.PasswordHasher, auditor *audit.Service, sessions SessionCache) *Service {
	return &Service{
		repo:     repo,
		hasher:   hasher,
		auditor:  auditor,
		sessions: sessions,
	}
}

func (s *Service) CreateUser(ctx context.Context, actor model.Actor, req model.CreateUserRequest) (*model.User, error) {
	email := normalizeEmail(req.Email)
	if err := s.ensureEmailFree(ctx, email, uuid.Nil); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = model.RoleTechnician
	}

	user := &model.User{
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		Role:         role,
		Avatar:       req.Avatar,
		PasswordHash: hash,
		Phone:        req.Phone,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, actor, model.AuditActionCreate, model.AuditEntityUser, user.ID, user)
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, filters model.UserFilters) ([]*model.User, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) UpdateUser(ctx context.Context, actor model.Actor, id uuid.UUID, req model.UpdateUserRequest) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if email != user.Email {
			if err := s.ensureEmailFree(ctx, email, user.ID); err != nil {
				return nil, err
			}
			user.Email = email
		}
	}
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Role != nil {
		if actor.ID == user.ID && *req.Role != user.Role {
			return nil, apperrors.BadRequest("you cannot change your own role")
		}
		user.Role = *req.Role
	}
	if req.Phone != nil {
		user.Phone = req.Phone
	}
	if req.Avatar != nil {
		user.Avatar = req.Avatar
	}

	var hash string
	if req.Password != nil {
		if hash, err = s.hashPassword(*req.Password); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	if hash != "" {
		if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	s.forget(user.ID)

	changes := req
	changes.Password = nil
	s.auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityUser, user.ID, changes)
	return user, nil
}

func (s *Service) SetActive(ctx context.Context, actor model.Actor, id uuid.UUID, active bool) (*model.User, error) {
	if actor.ID == id && !active {
		return nil, apperrors.BadRequest("you cannot deactivate yourself")
	}

	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	s.forget(id)

	s.auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityUser, id, map[string]bool{"is_active": active})
	return s.repo.Get(ctx, id)
}

func (s *Service) DeleteUser(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if actor.ID == id {
		return apperrors.BadRequest("you cannot delete yourself")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if apperrors.IsConflict(err) {
			return apperrors.Conflict("user is still referenced by services or payments, deactivate it instead").Wrap(err)
		}
		return err
	}
	s.forget(id)

	s.auditor.Log(ctx, actor, model.AuditActionDelete, model.AuditEntityUser, id, nil)
	return nil
}

func (s *Service) ensureEmailFree(ctx context.Context, email string, self uuid.UUID) error {
	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != self:
		return apperrors.Conflict("email is already registered")
	case err != nil && !apperrors.IsNotFound(err):
		return fmt.Errorf("failed to check email: %w", err)
	}
	return nil
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return "", apperrors.Validation("password must be at least 8 characters")
		}
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

func (s *Service) forget(id uuid.UUID) {
	if s.sessions != nil {
		s.sessions.Forget(id)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
