package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/fieldservice-api/internal/middleware"
	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/pkg/httputil"
	"github.com/jwalitptl/fieldservice-api/pkg/websocket"
)

type Handler struct {
	auth middleware.Authenticator
	hub  *websocket.Hub
}

func NewHandler(auth middleware.Authenticator, hub *websocket.Hub) *Handler {
	return &Handler{auth: auth, hub: hub}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws/events", h.Events)
}

// Events upgrades to the live event feed. Browsers cannot set headers on a
// websocket handshake, so the access token travels in the query string.
func (h *Handler) Events(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.NewErrorResponse("missing token"))
		return
	}

	user, err := h.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if user.Role != model.RoleAdmin && user.Role != model.RoleTechnician {
		c.AbortWithStatusJSON(http.StatusForbidden, httputil.NewErrorResponse("permission denied"))
		return
	}

	if err := h.hub.ServeWS(c.Writer, c.Request, user.ID, user.Role); err != nil {
		// The upgrader already replied to the client
		log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("Websocket upgrade failed")
	}
}
