package client

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/fieldservice-api/internal/handler"
	"github.com/jwalitptl/fieldservice-api/internal/middleware"
	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/service/client"
	"github.com/jwalitptl/fieldservice-api/pkg/httputil"
)

type Handler struct {
	svc *client.Service
}

func NewHandler(svc *client.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	admin := middleware.RequireRole(model.RoleAdmin)
	staff := middleware.RequireRole(model.RoleAdmin, model.RoleTechnician)

	clients := r.Group("/clients")
	{
		clients.POST("", admin, h.CreateClient)
		clients.POST("/bulk", admin, h.CreateClients)
		clients.GET("", staff, h.ListClients)
		clients.GET("/:id", staff, h.GetClient)
		clients.PUT("/:id", admin, h.UpdateClient)
		clients.DELETE("/:id", admin, h.DeleteClient)
	}
}

func (h *Handler) CreateClient(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	created, err := h.svc.CreateClient(c.Request.Context(), actor, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, created)
}

func (h *Handler) CreateClients(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.BulkCreateClientsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	created, err := h.svc.CreateClients(c.Request.Context(), actor, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, created)
}

func (h *Handler) ListClients(c *gin.Context) {
	page, sort, err := handler.Page(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	clients, total, err := h.svc.ListClients(c.Request.Context(), model.ClientFilters{
		Pagination: page,
		SortOrder:  sort,
		Search:     c.Query("search"),
		City:       c.Query("city"),
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, clients, page.Page, page.PageSize, total)
}

func (h *Handler) GetClient(c *gin.Context) {
	id, err := handler.ParamID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	cl, err := h.svc.GetClient(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, cl)
}

func (h *Handler) UpdateClient(c *gin.Context) {
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

	var req model.UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	cl, err := h.svc.UpdateClient(c.Request.Context(), actor, id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, cl)
}

func (h *Handler) DeleteClient(c *gin.Context) {
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

	if err := h.svc.DeleteClient(c.Request.Context(), actor, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, "client deleted")
}
