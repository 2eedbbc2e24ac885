package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/pkg/messaging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames
	maxMessageSize = 512

	MessageTypeConnected = "connected"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is a single live feed connection
type Client struct {
	UserID uuid.UUID
	Role   model.Role

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// ServeWS upgrades the request and attaches the connection to the hub.
// The caller is responsible for authenticating the user first.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID uuid.UUID, role model.Role) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &Client{
		UserID: userID,
		Role:   role,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
	}

	welcome, _ := json.Marshal(&messaging.Message{
		ID:         uuid.New(),
		Type:       MessageTypeConnected,
		Payload:    json.RawMessage(`{"user_id":"` + userID.String() + `","role":"` + string(role) + `"}`),
		OccurredAt: time.Now().UTC(),
	})
	client.send <- welcome

	if err := h.join(client); err != nil {
		conn.Close()
		return err
	}

	go client.writePump()
	go client.readPump()
	return nil
}

// readPump drains control frames until the peer goes away
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug().Err(err).Str("user_id", c.UserID.String()).Msg("Websocket read error")
			}
			return
		}
	}
}

// writePump writes queued events, one per frame, and keeps the connection alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
