package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository/postgres"
)

func TestAuditRepository(t *testing.T) {
	ctx := context.Background()
	_, base := newBase(t)
	repo := postgres.NewAuditRepository(base)

	userID := uuid.New()
	serviceID := uuid.New()
	old := time.Now().UTC().AddDate(0, 0, -120)

	logs := []*model.AuditLog{
		{UserID: &userID, Action: model.AuditActionCreate, EntityType: model.AuditEntityService, EntityID: serviceID,
			Changes: model.RawJSON(`{"title":"Fix sink"}`), IPAddress: "10.0.0.1", UserAgent: "curl"},
		{UserID: &userID, Action: model.AuditActionStatus, EntityType: model.AuditEntityService, EntityID: serviceID},
		{Action: model.AuditActionCreate, EntityType: model.AuditEntityClient, EntityID: uuid.New(), CreatedAt: old},
	}
	for _, l := range logs {
		require.NoError(t, repo.Create(ctx, l))
	}

	items, total, err := repo.List(ctx, model.AuditFilters{EntityType: model.AuditEntityService})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)

	items, total, err = repo.List(ctx, model.AuditFilters{EntityID: &serviceID, Action: model.AuditActionCreate})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.JSONEq(t, `{"title":"Fix sink"}`, string(items[0].Changes))
	assert.Equal(t, "10.0.0.1", items[0].IPAddress)

	_, total, err = repo.List(ctx, model.AuditFilters{UserID: &userID})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	n, err := repo.Cleanup(ctx, time.Now().UTC().AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, total, err = repo.List(ctx, model.AuditFilters{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}
