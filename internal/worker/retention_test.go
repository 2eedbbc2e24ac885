package worker

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/repository/postgres"
	"github.com/jwalitptl/fieldservice-api/internal/testutil"
	"github.com/jwalitptl/fieldservice-api/pkg/logger"
)

func TestRetentionWorkerCleanup(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	base := postgres.NewBaseRepository(db)
	outbox := postgres.NewOutboxRepository(base)
	audit := postgres.NewAuditRepository(base)

	delivered := &model.OutboxEvent{EventType: model.EventServiceCreated, Payload: model.RawJSON(`{}`)}
	waiting := &model.OutboxEvent{EventType: model.EventServiceCreated, Payload: model.RawJSON(`{}`)}
	require.NoError(t, outbox.Create(ctx, delivered))
	require.NoError(t, outbox.Create(ctx, waiting))
	require.NoError(t, outbox.MarkProcessed(ctx, delivered.ID))

	require.NoError(t, audit.Create(ctx, &model.AuditLog{
		Action: model.AuditActionCreate, EntityType: model.AuditEntityClient, EntityID: uuid.New(),
		CreatedAt: time.Now().UTC().AddDate(0, 0, -40),
	}))
	require.NoError(t, audit.Create(ctx, &model.AuditLog{
		Action: model.AuditActionCreate, EntityType: model.AuditEntityClient, EntityID: uuid.New(),
	}))

	w := NewRetentionWorker(outbox, audit, time.Hour, 30, time.Hour,
		logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard}))

	// Nothing processed is old enough yet
	events, logs, err := w.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, events)
	assert.Equal(t, int64(1), logs)

	w.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	events, logs, err = w.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), events)
	assert.Zero(t, logs)

	pending, err := outbox.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}
