package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository"
)

const clientColumns = `id, name, email, phone, address, city, notes, created_at, updated_at`

var clientSortColumns = map[string]string{
	"name":       "name",
	"city":       "city",
	"created_at": "created_at",
}

type clientRepository struct {
	BaseRepository
}

func NewClientRepository(base BaseRepository) repository.ClientRepository {
	return &clientRepository{base}
}

func (r *clientRepository) insert(ctx context.Context, client *model.Client) error {
	query := `
		INSERT INTO clients (` + clientColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}
	client.CreatedAt = now()
	client.UpdatedAt = client.CreatedAt

	_, err := r.exec(ctx, query,
		client.ID,
		client.Name,
		client.Email,
		client.Phone,
		client.Address,
		client.City,
		client.Notes,
		client.CreatedAt,
		client.UpdatedAt,
	)
	return err
}

func (r *clientRepository) Create(ctx context.Context, client *model.Client) error {
	if err := r.insert(ctx, client); err != nil {
		return mapError(fmt.Errorf("failed to create client: %w", err), "client")
	}
	return nil
}

// CreateMany inserts all clients in a single transaction
func (r *clientRepository) CreateMany(ctx context.Context, clients []*model.Client) error {
	return r.WithTx(ctx, func(ctx context.Context) error {
		for i, client := range clients {
			if err := r.insert(ctx, client); err != nil {
				return mapError(fmt.Errorf("failed to create client %d: %w", i, err), "client")
			}
		}
		return nil
	})
}

func (r *clientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	var client model.Client
	if err := r.get(ctx, &client, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id); err != nil {
		return nil, mapError(err, "client")
	}
	return &client, nil
}

func (r *clientRepository) Update(ctx context.Context, client *model.Client) error {
	query := `
		UPDATE clients SET
			name = ?,
			email = ?,
			phone = ?,
			address = ?,
			city = ?,
			notes = ?,
			updated_at = ?
		WHERE id = ?
	`

	client.UpdatedAt = now()
	return r.execOne(ctx, "client", query,
		client.Name,
		client.Email,
		client.Phone,
		client.Address,
		client.City,
		client.Notes,
		client.UpdatedAt,
		client.ID,
	)
}

func (r *clientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, "client", `DELETE FROM clients WHERE id = ?`, id)
}

func (r *clientRepository) List(ctx context.Context, filters model.ClientFilters) ([]*model.Client, int, error) {
	filters.Pagination.Normalize()

	where := ` WHERE 1=1`
	args := []interface{}{}

	if filters.City != "" {
		where += ` AND LOWER(city) = LOWER(?)`
		args = append(args, filters.City)
	}
	if filters.Search != "" {
		where += ` AND (LOWER(name) LIKE ? OR LOWER(COALESCE(email, '')) LIKE ? OR LOWER(COALESCE(phone, '')) LIKE ?)`
		pattern := likePattern(filters.Search)
		args = append(args, pattern, pattern, pattern)
	}

	var total int
	if err := r.get(ctx, &total, `SELECT COUNT(*) FROM clients`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count clients: %w", err)
	}

	query := `SELECT ` + clientColumns + ` FROM clients` + where +
		orderBy(filters.SortOrder, clientSortColumns, "name ASC, id ASC") +
		` LIMIT ? OFFSET ?`
	args = append(args, filters.PageSize, filters.Offset())

	clients := []*model.Client{}
	if err := r.selectAll(ctx, &clients, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, total, nil
}
