package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/pkg/messaging"
	"github.com/jwalitptl/fieldservice-api/pkg/metrics"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	logger := zerolog.Nop()
	hub := NewHub(&logger, metrics.New("test"))

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := uuid.MustParse(r.URL.Query().Get("user_id"))
		role := model.Role(r.URL.Query().Get("role"))
		if err := hub.ServeWS(w, r, userID, role); err != nil {
			t.Logf("serve ws: %v", err)
		}
	}))

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, userID uuid.UUID, role model.Role) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user_id=" + userID.String() + "&role=" + string(role)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Every connection starts with a welcome message
	msg := read(t, conn)
	require.Equal(t, MessageTypeConnected, msg.Type)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) *messaging.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := messaging.Decode(data)
	require.NoError(t, err)
	return msg
}

func event(eventType string, technicianID uuid.UUID) *messaging.Message {
	payload, _ := json.Marshal(map[string]string{"technician_id": technicianID.String()})
	return &messaging.Message{ID: uuid.New(), Type: eventType, Payload: payload, OccurredAt: time.Now().UTC()}
}

func TestHubRoutesEventsByRole(t *testing.T) {
	hub, srv := newTestHub(t)

	techA := uuid.New()
	techB := uuid.New()
	admin := dial(t, srv, uuid.New(), model.RoleAdmin)
	connA := dial(t, srv, techA, model.RoleTechnician)
	connB := dial(t, srv, techB, model.RoleTechnician)

	require.Eventually(t, func() bool { return hub.ClientCount() == 3 }, 2*time.Second, 10*time.Millisecond)

	// An event about technician A reaches the admin and A only
	require.NoError(t, hub.Publish(event(model.EventServiceAssigned, techA)))
	assert.Equal(t, model.EventServiceAssigned, read(t, admin).Type)
	assert.Equal(t, model.EventServiceAssigned, read(t, connA).Type)

	// B's next message is the one addressed to B
	require.NoError(t, hub.Publish(event(model.EventServiceClosed, techB)))
	assert.Equal(t, model.EventServiceClosed, read(t, connB).Type)
	assert.Equal(t, model.EventServiceClosed, read(t, admin).Type)
}

func TestHubDropsDisconnectedClients(t *testing.T) {
	hub, srv := newTestHub(t)

	conn := dial(t, srv, uuid.New(), model.RoleAdmin)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestPublishAfterShutdown(t *testing.T) {
	logger := zerolog.Nop()
	hub := NewHub(&logger, metrics.New("test"))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	assert.ErrorIs(t, hub.Publish(event(model.EventServiceCreated, uuid.New())), ErrHubClosed)
}

func TestClientAccepts(t *testing.T) {
	tech := uuid.New()
	other := uuid.New()

	admin := &Client{UserID: uuid.New(), Role: model.RoleAdmin}
	assert.True(t, admin.accepts(nil))
	assert.True(t, admin.accepts(&tech))

	technician := &Client{UserID: tech, Role: model.RoleTechnician}
	assert.True(t, technician.accepts(&tech))
	assert.False(t, technician.accepts(&other))
	assert.False(t, technician.accepts(nil))

	client := &Client{UserID: uuid.New(), Role: model.RoleClient}
	assert.False(t, client.accepts(&tech))

	assert.Nil(t, payloadTechnician(json.RawMessage(`{"title":"x"}`)))
	assert.Equal(t, &tech, payloadTechnician(json.RawMessage(`{"technician_id":"`+tech.String()+`"}`)))
}
