package category

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/fieldservice-api/internal/handler"
	"github.com/jwalitptl/fieldservice-api/internal/middleware"
	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/service/category"
	"github.com/jwalitptl/fieldservice-api/pkg/httputil"
)

type Handler struct {
	svc *category.Service
}

func NewHandler(svc *category.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	admin := middleware.RequireRole(model.RoleAdmin)

	categories := r.Group("/categories")
	{
		categories.POST("", admin, h.CreateCategory)
		categories.GET("", h.ListCategories)
		categories.GET("/:id", h.GetCategory)
		categories.PUT("/:id", admin, h.UpdateCategory)
		categories.DELETE("/:id", admin, h.DeleteCategory)
	}
}

func (h *Handler) CreateCategory(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	created, err := h.svc.CreateCategory(c.Request.Context(), actor, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, created)
}

func (h *Handler) ListCategories(c *gin.Context) {
	active, err := handler.QueryBool(c, "active")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	categories, err := h.svc.ListCategories(c.Request.Context(), model.CategoryFilters{IsActive: active})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, categories)
}

func (h *Handler) GetCategory(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	cat, err := h.svc.GetCategory(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, cat)
}

func (h *Handler) UpdateCategory(c *gin.Context) {
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

	var req model.UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	cat, err := h.svc.UpdateCategory(c.Request.Context(), actor, id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, cat)
}

func (h *Handler) DeleteCategory(c *gin.Context) {
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

	if err := h.svc.DeleteCategory(c.Request.Context(), actor, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, "category deleted")
}
