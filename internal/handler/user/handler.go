package user

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/fieldservice-api/internal/handler"
	"github.com/jwalitptl/fieldservice-api/internal/middleware"
	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/service/user"
	apperrors "github.com/jwalitptl/fieldservice-api/pkg/errors"
	"github.com/jwalitptl/fieldservice-api/pkg/httputil"
)

type Handler struct {
	svc *user.Service
}

func NewHandler(svc *user.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/users", middleware.RequireRole(model.RoleAdmin))
	{
		users.POST("", h.CreateUser)
		users.GET("", h.ListUsers)
		users.GET("/:id", h.GetUser)
		users.PUT("/:id", h.UpdateUser)
		users.PATCH("/:id/active", h.SetActive)
		users.DELETE("/:id", h.DeleteUser)
	}
}

func (h *Handler) CreateUser(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	created, err := h.svc.CreateUser(c.Request.Context(), actor, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, created)
}

func (h *Handler) ListUsers(c *gin.Context) {
	page, sort, err := handler.Page(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	active, err := handler.QueryBool(c, "active")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	filters := model.UserFilters{
		Pagination: page,
		SortOrder:  sort,
		IsActive:   active,
		Search:     c.Query("search"),
	}
	if raw := c.Query("role"); raw != "" {
		role := model.Role(raw)
		if !role.Valid() {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid role"))
			return
		}
		filters.Role = &role
	}

	users, total, err := h.svc.ListUsers(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, users, page.Page, page.PageSize, total)
}

func (h *Handler) GetUser(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	u, err := h.svc.GetUser(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, u)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, err := handler.ParamID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	u, err := h.svc.UpdateUser(c.Request.Context(), actor, id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, u)
}

func (h *Handler) SetActive(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, err := handler.ParamID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	u, err := h.svc.SetActive(c.Request.Context(), actor, id, *req.Active)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, u)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, err := handler.ParamID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.svc.DeleteUser(c.Request.Context(), actor, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, "user deleted")
}
