package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/fieldservice-api/internal/handler"
	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/service/auth"
	"github.com/jwalitptl/fieldservice-api/pkg/httputil"
)

type Handler struct {
	svc *auth.Service
}

func NewHandler(svc *auth.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts login and refresh on public and the account routes on protected
func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	auth := public.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.RefreshToken)
	}

	me := protected.Group("/auth")
	{
		me.GET("/me", h.Me)
		me.PUT("/password", h.ChangePassword)
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	tokens, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, tokens)
}

func (h *Handler) RefreshToken(c *gin.Context) {
	var req model.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	tokens, err := h.svc.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, tokens)
}

func (h *Handler) Me(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	user, err := h.svc.Me(c.Request.Context(), actor.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, user)
}

func (h *Handler) ChangePassword(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), actor, req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, "password changed")
}
