package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository"
)

const categoryColumns = `id, name, description, color, icon, is_active, created_at, updated_at`

type categoryRepository struct {
	BaseRepository
}

func NewCategoryRepository(base BaseRepository) repository.CategoryRepository {
	return &categoryRepository{base}
}

func (r *categoryRepository) Create(ctx context.Context, category *model.ServiceCategory) error {
	query := `
		INSERT INTO service_categories (` + categoryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	category.CreatedAt = now()
	category.UpdatedAt = category.CreatedAt

	_, err := r.exec(ctx, query,
		category.ID,
		category.Name,
		category.Description,
		category.Color,
		category.Icon,
		category.IsActive,
		category.CreatedAt,
		category.UpdatedAt,
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to create category: %w", err), "category")
	}
	return nil
}

func (r *categoryRepository) Get(ctx context.Context, id uuid.UUID) (*model.ServiceCategory, error) {
	var category model.ServiceCategory
	query := `SELECT ` + categoryColumns + ` FROM service_categories WHERE id = ?`
	if err := r.get(ctx, &category, query, id); err != nil {
		return nil, mapError(err, "category")
	}
	return &category, nil
}

func (r *categoryRepository) GetByName(ctx context.Context, name string) (*model.ServiceCategory, error) {
	var category model.ServiceCategory
	query := `SELECT ` + categoryColumns + ` FROM service_categories WHERE LOWER(name) = LOWER(?)`
	if err := r.get(ctx, &category, query, name); err != nil {
		return nil, mapError(err, "category")
	}
	return &category, nil
}

func (r *categoryRepository) Update(ctx context.Context, category *model.ServiceCategory) error {
	query := `
		UPDATE service_categories SET
			name = ?,
			description = ?,
			color = ?,
			icon = ?,
			is_active = ?,
			updated_at = ?
		WHERE id = ?
	`

	category.UpdatedAt = now()
	return r.execOne(ctx, "category", query,
		category.Name,
		category.Description,
		category.Color,
		category.Icon,
		category.IsActive,
		category.UpdatedAt,
		category.ID,
	)
}

func (r *categoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, "category", `DELETE FROM service_categories WHERE id = ?`, id)
}

func (r *categoryRepository) List(ctx context.Context, filters model.CategoryFilters) ([]*model.ServiceCategory, error) {
	query := `SELECT ` + categoryColumns + ` FROM service_categories WHERE 1=1`
	args := []interface{}{}

	if filters.IsActive != nil {
		query += ` AND is_active = ?`
		args = append(args, *filters.IsActive)
	}
	query += ` ORDER BY name ASC`

	categories := []*model.ServiceCategory{}
	if err := r.selectAll(ctx, &categories, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}
