package ticket

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/fieldservice-api/internal/handler"
	"github.com/jwalitptl/fieldservice-api/internal/middleware"
	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/service/ticket"
	apperrors "github.com/jwalitptl/fieldservice-api/pkg/errors"
	"github.com/jwalitptl/fieldservice-api/pkg/httputil"
)

type Handler struct {
	svc *ticket.Service
}

func NewHandler(svc *ticket.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	admin := middleware.RequireRole(model.RoleAdmin)
	staff := middleware.RequireRole(model.RoleAdmin, model.RoleTechnician)

	services := r.Group("/services")
	{
		services.POST("", admin, h.CreateService)
		services.GET("", staff, h.ListServices)
		services.POST("/reassign", admin, h.Reassign)
		services.GET("/:id", staff, h.GetService)
		services.PUT("/:id", admin, h.UpdateService)
		services.PATCH("/:id/status", staff, h.UpdateStatus)
		services.POST("/:id/close", admin, h.CloseService)
		services.PATCH("/:id/lock", admin, h.SetLock)
		services.DELETE("/:id", admin, h.DeleteService)
	}
}

func (h *Handler) CreateService(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	svc, err := h.svc.CreateService(c.Request.Context(), actor, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, svc)
}

func (h *Handler) ListServices(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	filters, err := serviceFilters(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	services, total, err := h.svc.ListServices(c.Request.Context(), actor, filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, services, filters.Page, filters.PageSize, total)
}

func serviceFilters(c *gin.Context) (model.ServiceFilters, error) {
	var f model.ServiceFilters
	var err error

	if f.Pagination, f.SortOrder, err = handler.Page(c); err != nil {
		return f, err
	}
	for _, raw := range handler.QueryList(c, "status") {
		status := model.ServiceStatus(raw)
		if !status.Valid() {
			return f, apperrors.BadRequest("invalid status " + raw)
		}
		f.Statuses = append(f.Statuses, status)
	}
	if f.TechnicianID, err = handler.QueryUUID(c, "technician_id"); err != nil {
		return f, err
	}
	if f.ClientID, err = handler.QueryUUID(c, "client_id"); err != nil {
		return f, err
	}
	if f.CategoryID, err = handler.QueryUUID(c, "category_id"); err != nil {
		return f, err
	}
	if f.CreatedByID, err = handler.QueryUUID(c, "created_by_id"); err != nil {
		return f, err
	}
	if f.IsLocked, err = handler.QueryBool(c, "locked"); err != nil {
		return f, err
	}
	if f.Scheduled, err = handler.DateRange(c); err != nil {
		return f, err
	}
	f.Search = c.Query("search")
	return f, nil
}

func (h *Handler) GetService(c *gin.Context) {
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

	details, err := h.svc.GetService(c.Request.Context(), actor, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, details)
}

func (h *Handler) UpdateService(c *gin.Context) {
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

	var req model.UpdateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	svc, err := h.svc.UpdateService(c.Request.Context(), actor, id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, svc)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
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

	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	svc, err := h.svc.UpdateStatus(c.Request.Context(), actor, id, req.Status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, svc)
}

func (h *Handler) CloseService(c *gin.Context) {
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

	// The body is optional, chunked requests do not announce an empty one
	var req model.CloseServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.RespondWithBindError(c, err)
		return
	}

	details, err := h.svc.CloseService(c.Request.Context(), actor, id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, details)
}

func (h *Handler) SetLock(c *gin.Context) {
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

	var req model.LockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	svc, err := h.svc.SetLock(c.Request.Context(), actor, id, *req.Locked)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, svc)
}

func (h *Handler) Reassign(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	result, err := h.svc.Reassign(c.Request.Context(), actor, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, result)
}

func (h *Handler) DeleteService(c *gin.Context) {
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

	if err := h.svc.DeleteService(c.Request.Context(), actor, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, "service deleted")
}
