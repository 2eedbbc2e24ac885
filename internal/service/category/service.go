package category

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository"
	"github.com/jwalitptl/fieldservice-api/internal/service/audit"
	apperrors "github.com/jwalitptl/fieldservice-api/pkg/errors"
)

const activeListKey = "categories:active"

type Service struct {
	repo    repository.CategoryRepository
	auditor *audit.Service
	cache   *gocache.Cache
}

// NewService creates the category service. The list of active categories is
// cached for ttl and dropped on every write.
func NewService(repo repository.CategoryRepository, auditor *audit.Service, ttl, cleanupInterval time.Duration) *Service {
	return &Service{
		repo:    repo,
		auditor: auditor,
		cache:   gocache.New(ttl, cleanupInterval),
	}
}

func (s *Service) CreateCategory(ctx context.Context, actor model.Actor, req model.CreateCategoryRequest) (*model.ServiceCategory, error) {
	name := strings.TrimSpace(req.Name)
	if err := s.ensureNameFree(ctx, name, uuid.Nil); err != nil {
		return nil, err
	}

	category := &model.ServiceCategory{
		Name:        name,
		Description: req.Description,
		Color:       req.Color,
		Icon:        req.Icon,
		IsActive:    true,
	}
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}

	if err := s.repo.Create(ctx, category); err != nil {
		return nil, err
	}
	s.invalidate()

	s.auditor.Log(ctx, actor, model.AuditActionCreate, model.AuditEntityCategory, category.ID, category)
	return category, nil
}

func (s *Service) GetCategory(ctx context.Context, id uuid.UUID) (*model.ServiceCategory, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListCategories(ctx context.Context, filters model.CategoryFilters) ([]*model.ServiceCategory, error) {
	activeOnly := filters.IsActive != nil && *filters.IsActive
	if activeOnly {
		if cached, ok := s.cache.Get(activeListKey); ok {
			return cached.([]*model.ServiceCategory), nil
		}
	}

	categories, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}

	if activeOnly {
		s.cache.SetDefault(activeListKey, categories)
	}
	return categories, nil
}

func (s *Service) UpdateCategory(ctx context.Context, actor model.Actor, id uuid.UUID, req model.UpdateCategoryRequest) (*model.ServiceCategory, error) {
	category, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if err := s.ensureNameFree(ctx, name, category.ID); err != nil {
			return nil, err
		}
		category.Name = name
	}
	if req.Description != nil {
		category.Description = req.Description
	}
	if req.Color != nil {
		category.Color = req.Color
	}
	if req.Icon != nil {
		category.Icon = req.Icon
	}
	if req.IsActive != nil {
		category.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, category); err != nil {
		return nil, err
	}
	s.invalidate()

	s.auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityCategory, category.ID, req)
	return category, nil
}

// DeleteCategory removes a category. Services keep existing without one.
func (s *Service) DeleteCategory(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate()

	s.auditor.Log(ctx, actor, model.AuditActionDelete, model.AuditEntityCategory, id, nil)
	return nil
}

func (s *Service) ensureNameFree(ctx context.Context, name string, self uuid.UUID) error {
	existing, err := s.repo.GetByName(ctx, name)
	switch {
	case err == nil && existing.ID != self:
		return apperrors.Conflict(fmt.Sprintf("category %q already exists", name))
	case err != nil && !apperrors.IsNotFound(err):
		return fmt.Errorf("failed to check category name: %w", err)
	}
	return nil
}

func (s *Service) invalidate() {
	s.cache.Delete(activeListKey)
}
