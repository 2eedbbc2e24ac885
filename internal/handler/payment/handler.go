package payment

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/fieldservice-api/internal/handler"
	"github.com/jwalitptl/fieldservice-api/internal/middleware"
	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/service/payment"
	apperrors "github.com/jwalitptl/fieldservice-api/pkg/errors"
	"github.com/jwalitptl/fieldservice-api/pkg/httputil"
)

type Handler struct {
	svc *payment.Service
}

func NewHandler(svc *payment.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	admin := middleware.RequireRole(model.RoleAdmin)
	staff := middleware.RequireRole(model.RoleAdmin, model.RoleTechnician)

	r.POST("/services/:id/payment", staff, h.RecordPayment)
	r.GET("/services/:id/payment", staff, h.GetServicePayment)

	payments := r.Group("/payments")
	{
		payments.GET("", staff, h.ListPayments)
		payments.GET("/:id", staff, h.GetPayment)
		payments.PUT("/:id", admin, h.UpdatePayment)
		payments.DELETE("/:id", admin, h.DeletePayment)
	}
}

func (h *Handler) RecordPayment(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	serviceID, err := handler.ParamID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	p, err := h.svc.RecordPayment(c.Request.Context(), actor, serviceID, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, p)
}

func (h *Handler) GetServicePayment(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	serviceID, err := handler.ParamID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	p, err := h.svc.GetServicePayment(c.Request.Context(), actor, serviceID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) ListPayments(c *gin.Context) {
	actor, err := handler.Actor(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var f model.PaymentFilters
	if f.Pagination, _, err = handler.Page(c); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if raw := c.Query("method"); raw != "" {
		method := model.PaymentMethod(raw)
		if !method.Valid() {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid method"))
			return
		}
		f.Method = &method
	}
	if f.TechnicianID, err = handler.QueryUUID(c, "technician_id"); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if f.HasDebt, err = handler.QueryBool(c, "has_debt"); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if f.Created, err = handler.DateRange(c); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	payments, total, err := h.svc.ListPayments(c.Request.Context(), actor, f)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, payments, f.Page, f.PageSize, total)
}

func (h *Handler) GetPayment(c *gin.Context) {
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

	p, err := h.svc.GetPayment(c.Request.Context(), actor, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) UpdatePayment(c *gin.Context) {
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

	var req model.UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	p, err := h.svc.UpdatePayment(c.Request.Context(), actor, id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) DeletePayment(c *gin.Context) {
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

	if err := h.svc.DeletePayment(c.Request.Context(), actor, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, "payment deleted")
}
