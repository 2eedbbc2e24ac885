package audit

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/fieldservice-api/internal/handler"
	"github.com/jwalitptl/fieldservice-api/internal/middleware"
	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/service/audit"
	"github.com/jwalitptl/fieldservice-api/pkg/httputil"
)

type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/audit-logs", middleware.RequireRole(model.RoleAdmin), h.ListLogs)
}

func (h *Handler) ListLogs(c *gin.Context) {
	var f model.AuditFilters
	var err error

	if f.Pagination, _, err = handler.Page(c); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if f.EntityID, err = handler.QueryUUID(c, "entity_id"); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if f.UserID, err = handler.QueryUUID(c, "user_id"); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	f.EntityType = c.Query("entity_type")
	f.Action = c.Query("action")

	logs, total, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, logs, f.Page, f.PageSize, total)
}
