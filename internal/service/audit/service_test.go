package audit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/testutil"
)

func TestLogCapturesRequestMeta(t *testing.T) {
	repos := testutil.NewRepos(t)
	svc := NewService(repos.Audit)

	actor := model.Actor{ID: uuid.New(), Role: model.RoleAdmin}
	entityID := uuid.New()
	ctx := model.WithRequestMeta(context.Background(), model.RequestMeta{
		RequestID: "req-1",
		IPAddress: "10.0.0.7",
		UserAgent: "curl/8.0",
	})

	svc.Log(ctx, actor, model.AuditActionCreate, model.AuditEntityClient, entityID, map[string]string{"name": "Acme"})

	logs, total, err := svc.List(context.Background(), model.AuditFilters{EntityType: model.AuditEntityClient})
	require.NoError(t, err)
	require.Equal(t, 1, total)

	entry := logs[0]
	assert.Equal(t, &actor.ID, entry.UserID)
	assert.Equal(t, entityID, entry.EntityID)
	assert.Equal(t, "10.0.0.7", entry.IPAddress)
	assert.Equal(t, "curl/8.0", entry.UserAgent)
	assert.JSONEq(t, `{"name":"Acme"}`, string(entry.Changes))
}

func TestLogWithoutActorOrChanges(t *testing.T) {
	repos := testutil.NewRepos(t)
	svc := NewService(repos.Audit)

	svc.Log(context.Background(), model.Actor{}, model.AuditActionLogin, model.AuditEntityUser, uuid.New(), nil)

	logs, total, err := svc.List(context.Background(), model.AuditFilters{Action: model.AuditActionLogin})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Nil(t, logs[0].UserID)
	assert.Empty(t, logs[0].Changes)
}
