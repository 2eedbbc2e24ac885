package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/pkg/httputil"
)

const (
	ContextUserID   = "user_id"
	ContextUserRole = "user_role"
)

// Authenticator resolves an access token to an active user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

type AuthMiddleware struct {
	auth Authenticator
}

func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// Authenticate verifies the bearer token and sets the user in context
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.NewErrorResponse("missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.NewErrorResponse("invalid authorization format"))
			return
		}

		user, err := m.auth.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		SetActor(c, model.Actor{ID: user.ID, Role: user.Role})
		c.Next()
	}
}

// RequireRole rejects users whose role is not listed
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.NewErrorResponse("authentication required"))
			return
		}

		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, httputil.NewErrorResponse("permission denied"))
	}
}

func SetActor(c *gin.Context, actor model.Actor) {
	c.Set(ContextUserID, actor.ID)
	c.Set(ContextUserRole, actor.Role)
}

// CurrentActor returns the authenticated user of the request
func CurrentActor(c *gin.Context) (model.Actor, bool) {
	id, ok := c.Get(ContextUserID)
	if !ok {
		return model.Actor{}, false
	}
	userID, ok := id.(uuid.UUID)
	if !ok {
		return model.Actor{}, false
	}
	role, _ := c.Get(ContextUserRole)
	r, _ := role.(model.Role)
	return model.Actor{ID: userID, Role: r}, true
}
