package stats

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/fieldservice-api/internal/handler"
	"github.com/jwalitptl/fieldservice-api/internal/middleware"
	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/service/stats"
	"github.com/jwalitptl/fieldservice-api/pkg/httputil"
)

type Handler struct {
	svc *stats.Service
}

func NewHandler(svc *stats.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	st := r.Group("/stats", middleware.RequireRole(model.RoleAdmin))
	{
		st.GET("/services", h.Services)
		st.GET("/payments", h.Payments)
		st.GET("/technicians", h.Technicians)
	}
}

func filters(c *gin.Context) (model.StatsFilters, error) {
	var f model.StatsFilters
	var err error
	if f.DateRange, err = handler.DateRange(c); err != nil {
		return f, err
	}
	f.TechnicianID, err = handler.QueryUUID(c, "technician_id")
	return f, err
}

func (h *Handler) Services(c *gin.Context) {
	f, err := filters(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	result, err := h.svc.Services(c.Request.Context(), f)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, result)
}

func (h *Handler) Payments(c *gin.Context) {
	f, err := filters(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	result, err := h.svc.Payments(c.Request.Context(), f)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, result)
}

func (h *Handler) Technicians(c *gin.Context) {
	f, err := filters(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	result, err := h.svc.Technicians(c.Request.Context(), f)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, result)
}
