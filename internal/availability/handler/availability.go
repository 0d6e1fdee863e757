package handler

import (
	"net/http"

	"proslots/internal/availability/service"
	apperrors "proslots/pkg/errors"
	httputil "proslots/pkg/http"
	"proslots/pkg/logger"
	"proslots/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AvailabilityHandler struct {
	service service.SlotLockManager
	log     *logger.Logger
}

func NewAvailabilityHandler(service service.SlotLockManager, log *logger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		service: service,
		log:     log,
	}
}

func (h *AvailabilityHandler) GetTemplate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	pro, err := h.service.GetTemplate(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetTemplate", err)
		return
	}

	if err := httputil.WriteSuccess(w, pro); err != nil {
		h.log.Error("failed to write success response", "handler", "GetTemplate", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) SetDay(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	day, err := model.ParseWeekday(ps.ByName("day"))
	if err != nil {
		h.writeError(w, "SetDay", apperrors.InvalidInput("invalid weekday: "+ps.ByName("day")))
		return
	}

	var update model.DayUpdate
	if err := httputil.DecodeJSON(r, &update); err != nil {
		h.writeError(w, "SetDay", err)
		return
	}

	pro, err := h.service.SetDay(r.Context(), ps.ByName("id"), day, &update)
	if err != nil {
		h.writeError(w, "SetDay", err)
		return
	}

	if err := httputil.WriteSuccess(w, pro); err != nil {
		h.log.Error("failed to write success response", "handler", "SetDay", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AvailabilityHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AvailabilityHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/professionals/id/:id/availability", h.GetTemplate)
	router.PUT("/api/v1/professionals/id/:id/availability/:day", h.SetDay)
}
