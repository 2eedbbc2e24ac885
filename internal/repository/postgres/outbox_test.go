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
	apperrors "github.com/jwalitptl/fieldservice-api/pkg/errors"
)

func TestOutboxRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	_, base := newBase(t)
	repo := postgres.NewOutboxRepository(base)

	assert.Error(t, repo.Create(ctx, &model.OutboxEvent{EventType: model.EventServiceCreated}))

	events := make([]*model.OutboxEvent, 3)
	for i := range events {
		events[i] = &model.OutboxEvent{
			EventType: model.EventServiceCreated,
			Payload:   model.RawJSON(`{"service_id":"` + uuid.NewString() + `"}`),
		}
		require.NoError(t, repo.Create(ctx, events[i]))
		assert.Equal(t, model.OutboxStatusPending, events[i].Status)
	}

	pending, err := repo.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.JSONEq(t, string(events[0].Payload), string(pending[0].Payload))

	limited, err := repo.GetPending(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	// Processed events leave the queue
	require.NoError(t, repo.MarkProcessed(ctx, events[0].ID))

	// A retry in the future is held back, one in the past is due again
	require.NoError(t, repo.MarkRetry(ctx, events[1].ID, "broker down", 1, time.Now().Add(time.Hour)))
	require.NoError(t, repo.MarkFailed(ctx, events[2].ID, "gave up", 5))

	pending, err = repo.GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	count, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, repo.MarkRetry(ctx, events[1].ID, "broker down", 2, time.Now().Add(-time.Second)))
	pending, err = repo.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.OutboxStatusRetry, pending[0].Status)
	assert.Equal(t, 2, pending[0].RetryCount)
	require.NotNil(t, pending[0].ErrorMessage)
	assert.Equal(t, "broker down", *pending[0].ErrorMessage)

	// Retention only removes processed rows
	n, err := repo.DeleteProcessedBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.True(t, apperrors.IsNotFound(repo.MarkProcessed(ctx, events[0].ID)))
}
