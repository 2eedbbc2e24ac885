package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository"
)

const userColumns = `id, email, name, role, avatar, password_hash, phone, is_active, created_at, updated_at`

var userSortColumns = map[string]string{
	"name":       "name",
	"email":      "email",
	"role":       "role",
	"created_at": "created_at",
}

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = now()
	user.UpdatedAt = user.CreatedAt

	_, err := r.exec(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.Role,
		user.Avatar,
		user.PasswordHash,
		user.Phone,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return mapError(fmt.Errorf("failed to create user: %w", err), "user")
	}
	return nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	var user model.User
	if err := r.get(ctx, &user, query, id); err != nil {
		return nil, mapError(err, "user")
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER(?)`

	var user model.User
	if err := r.get(ctx, &user, query, email); err != nil {
		return nil, mapError(err, "user")
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `
		UPDATE users SET
			email = ?,
			name = ?,
			role = ?,
			avatar = ?,
			phone = ?,
			updated_at = ?
		WHERE id = ?
	`

	user.UpdatedAt = now()
	return r.execOne(ctx, "user", query,
		user.Email,
		user.Name,
		user.Role,
		user.Avatar,
		user.Phone,
		user.UpdatedAt,
		user.ID,
	)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`
	return r.execOne(ctx, "user", query, passwordHash, now(), id)
}

func (r *userRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`
	return r.execOne(ctx, "user", query, active, now(), id)
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, "user", `DELETE FROM users WHERE id = ?`, id)
}

func (r *userRepository) List(ctx context.Context, filters model.UserFilters) ([]*model.User, int, error) {
	filters.Pagination.Normalize()

	where := ` WHERE 1=1`
	args := []interface{}{}

	if filters.Role != nil {
		where += ` AND role = ?`
		args = append(args, *filters.Role)
	}
	if filters.IsActive != nil {
		where += ` AND is_active = ?`
		args = append(args, *filters.IsActive)
	}
	if filters.Search != "" {
		where += ` AND (LOWER(name) LIKE ? OR LOWER(email) LIKE ?)`
		pattern := likePattern(filters.Search)
		args = append(args, pattern, pattern)
	}

	var total int
	if err := r.get(ctx, &total, `SELECT COUNT(*) FROM users`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users` + where +
		orderBy(filters.SortOrder, userSortColumns, "created_at DESC, id ASC") +
		` LIMIT ? OFFSET ?`
	args = append(args, filters.PageSize, filters.Offset())

	users := []*model.User{}
	if err := r.selectAll(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}
