package report

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/fieldservice-api/internal/handler"
	"github.com/jwalitptl/fieldservice-api/internal/middleware"
	"github.com/jwalitptl/fieldservice-api/internal/model"
	"github.com/jwalitptl/fieldservice-api/internal/service/report"
	"github.com/jwalitptl/fieldservice-api/pkg/httputil"
)

type Handler struct {
	svc *report.Service
}

func NewHandler(svc *report.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	admin := middleware.RequireRole(model.RoleAdmin)

	rep := r.Group("/services/:id/report", middleware.RequireRole(model.RoleAdmin, model.RoleTechnician))
	{
		rep.GET("", h.GetReport)
		rep.PUT("", h.UpsertReport)
		rep.DELETE("", admin, h.DeleteReport)

		rep.POST("/photos", h.AddPhoto)
		rep.DELETE("/photos", h.DeletePhotos)
		rep.DELETE("/photos/:photoId", h.DeletePhoto)

		rep.POST("/parts", h.AddSparePart)
		rep.POST("/parts/bulk", h.AddSpareParts)
		rep.DELETE("/parts/:partId", h.DeleteSparePart)
	}
}

// target resolves the actor and the service id shared by every route
func target(c *gin.Context) (model.Actor, uuid.UUID, bool) {
	actor, err := handler.Actor(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return actor, uuid.Nil, false
	}
	id, err := handler.ParamID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return actor, uuid.Nil, false
	}
	return actor, id, true
}

func (h *Handler) GetReport(c *gin.Context) {
	actor, serviceID, ok := target(c)
	if !ok {
		return
	}

	details, err := h.svc.GetReport(c.Request.Context(), actor, serviceID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, details)
}

func (h *Handler) UpsertReport(c *gin.Context) {
	actor, serviceID, ok := target(c)
	if !ok {
		return
	}

	var req model.UpsertReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	details, err := h.svc.UpsertReport(c.Request.Context(), actor, serviceID, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, details)
}

func (h *Handler) DeleteReport(c *gin.Context) {
	actor, serviceID, ok := target(c)
	if !ok {
		return
	}

	if err := h.svc.DeleteReport(c.Request.Context(), actor, serviceID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, "report deleted")
}

func (h *Handler) AddPhoto(c *gin.Context) {
	actor, serviceID, ok := target(c)
	if !ok {
		return
	}

	var req model.AddPhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	photo, err := h.svc.AddPhoto(c.Request.Context(), actor, serviceID, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, photo)
}

func (h *Handler) DeletePhoto(c *gin.Context) {
	actor, serviceID, ok := target(c)
	if !ok {
		return
	}
	photoID, err := handler.ParamID(c, "photoId")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.svc.DeletePhoto(c.Request.Context(), actor, serviceID, photoID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, "photo deleted")
}

func (h *Handler) DeletePhotos(c *gin.Context) {
	actor, serviceID, ok := target(c)
	if !ok {
		return
	}

	deleted, err := h.svc.DeletePhotos(c.Request.Context(), actor, serviceID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, deleted)
}

func (h *Handler) AddSparePart(c *gin.Context) {
	actor, serviceID, ok := target(c)
	if !ok {
		return
	}

	var req model.AddSparePartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	parts, err := h.svc.AddSpareParts(c.Request.Context(), actor, serviceID, []model.AddSparePartRequest{req})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, parts[0])
}

func (h *Handler) AddSpareParts(c *gin.Context) {
	actor, serviceID, ok := target(c)
	if !ok {
		return
	}

	var req model.AddSparePartsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	parts, err := h.svc.AddSpareParts(c.Request.Context(), actor, serviceID, req.Parts)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, parts)
}

func (h *Handler) DeleteSparePart(c *gin.Context) {
	actor, serviceID, ok := target(c)
	if !ok {
		return
	}
	partID, err := handler.ParamID(c, "partId")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if err := h.svc.DeleteSparePart(c.Request.Context(), actor, serviceID, partID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, "spare part deleted")
}
