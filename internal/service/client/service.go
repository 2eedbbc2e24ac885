package client

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository"
	"github.com/jwalitptl/fieldservice-api/internal/service/audit"
)

type Service struct {
	repo    repository.ClientRepository
	auditor *audit.Service
}

func NewService(repo repository.ClientRepository, auditor *audit.Service) *Service {
	return &Service{
		repo:    repo,
		auditor: auditor,
	}
}

func (s *Service) CreateClient(ctx context.Context, actor model.Actor, req model.CreateClientRequest) (*model.Client, error) {
	client := newClient(req)
	if err := s.repo.Create(ctx, client); err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, actor, model.AuditActionCreate, model.AuditEntityClient, client.ID, client)
	return client, nil
}

// CreateClients stores every client or none of them
func (s *Service) CreateClients(ctx context.Context, actor model.Actor, req model.BulkCreateClientsRequest) ([]*model.Client, error) {
	clients := make([]*model.Client, 0, len(req.Clients))
	for _, r := range req.Clients {
		clients = append(clients, newClient(r))
	}

	if err := s.repo.CreateMany(ctx, clients); err != nil {
		return nil, err
	}

	for _, c := range clients {
		s.auditor.Log(ctx, actor, model.AuditActionCreate, model.AuditEntityClient, c.ID, c)
	}
	return clients, nil
}

func (s *Service) GetClient(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListClients(ctx context.Context, filters model.ClientFilters) ([]*model.Client, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) UpdateClient(ctx context.Context, actor model.Actor, id uuid.UUID, req model.UpdateClientRequest) (*model.Client, error) {
	client, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		client.Name = *req.Name
	}
	if req.Email != nil {
		client.Email = req.Email
	}
	if req.Phone != nil {
		client.Phone = req.Phone
	}
	if req.Address != nil {
		client.Address = req.Address
	}
	if req.City != nil {
		client.City = req.City
	}
	if req.Notes != nil {
		client.Notes = req.Notes
	}

	if err := s.repo.Update(ctx, client); err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityClient, client.ID, req)
	return client, nil
}

// DeleteClient removes a client. Its services are kept with the client cleared.
func (s *Service) DeleteClient(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.auditor.Log(ctx, actor, model.AuditActionDelete, model.AuditEntityClient, id, nil)
	return nil
}

func newClient(req model.CreateClientRequest) *model.Client {
	return &model.Client{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		City:    req.City,
		Notes:   req.Notes,
	}
}
