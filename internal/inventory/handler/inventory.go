package handler

import (
	"net/http"

	"roomsaga/internal/inventory/service"
	"roomsaga/internal/inventory/validator"
	apperrors "roomsaga/pkg/errors"
	httputil "roomsaga/pkg/http"
	"roomsaga/pkg/logger"
	"roomsaga/pkg/middleware"
	"roomsaga/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type InventoryHandler struct {
	service   service.LockService
	validator *validator.InventoryValidator
	log       *logger.Logger
}

func NewInventoryHandler(service service.LockService, validator *validator.InventoryValidator, log *logger.Logger) *InventoryHandler {
	return &InventoryHandler{
		service:   service,
		validator: validator,
		log:       log,
	}
}

func (h *InventoryHandler) RegisterRoom(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.CreateRoomRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "RegisterRoom", err)
		return
	}
	if err := h.validator.ValidateRoom(&req); err != nil {
		h.writeError(w, "RegisterRoom", apperrors.Validation("Room validation failed", map[string]any{"error": err.Error()}))
		return
	}

	room, err := h.service.RegisterRoom(r.Context(), &req)
	if err != nil {
		h.writeError(w, "RegisterRoom", err)
		return
	}

	if err := httputil.WriteCreated(w, room); err != nil {
		h.log.Error("failed to write created response", "handler", "RegisterRoom", "operation", "WriteCreated", "error", err)
	}
}

func (h *InventoryHandler) GetRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := h.service.GetRoom(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetRoom", err)
		return
	}

	if err := httputil.WriteSuccess(w, room); err != nil {
		h.log.Error("failed to write success response", "handler", "GetRoom", "operation", "WriteSuccess", "error", err)
	}
}

func (h *InventoryHandler) ListAvailable(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	rng, err := httputil.ExtractDateRange(r)
	if err != nil {
		h.writeError(w, "ListAvailable", err)
		return
	}

	rooms, err := h.service.ListAvailable(r.Context(), rng, middleware.CorrelationID(r.Context()))
	if err != nil {
		h.writeError(w, "ListAvailable", err)
		return
	}

	if err := httputil.WriteSuccess(w, rooms); err != nil {
		h.log.Error("failed to write success response", "handler", "ListAvailable", "operation", "WriteSuccess", "error", err)
	}
}

func (h *InventoryHandler) RequestHold(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.HoldRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "RequestHold", err)
		return
	}
	rng, err := h.validator.ValidateHold(&req)
	if err != nil {
		h.writeError(w, "RequestHold", apperrors.Validation("Hold validation failed", map[string]any{"error": err.Error()}))
		return
	}

	result, err := h.service.RequestHold(r.Context(), ps.ByName("id"), rng, req.IdempotencyToken, middleware.CorrelationID(r.Context()))
	if err != nil {
		h.writeError(w, "RequestHold", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "RequestHold", "operation", "WriteSuccess", "error", err)
	}
}

func (h *InventoryHandler) ConfirmHold(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	lockID := ps.ByName("id")

	outcome, err := h.service.ConfirmHold(r.Context(), lockID, middleware.CorrelationID(r.Context()))
	if err != nil {
		h.writeError(w, "ConfirmHold", err)
		return
	}
	if outcome == model.ConfirmNotFound {
		h.writeError(w, "ConfirmHold", apperrors.NotFoundWithID("Room lock", lockID))
		return
	}

	if err := httputil.WriteSuccess(w, model.ConfirmResult{Outcome: outcome}); err != nil {
		h.log.Error("failed to write success response", "handler", "ConfirmHold", "operation", "WriteSuccess", "error", err)
	}
}

func (h *InventoryHandler) GetHold(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	lock, err := h.service.GetLock(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetHold", err)
		return
	}

	if err := httputil.WriteSuccess(w, lock); err != nil {
		h.log.Error("failed to write success response", "handler", "GetHold", "operation", "WriteSuccess", "error", err)
	}
}

func (h *InventoryHandler) Release(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Release(r.Context(), ps.ByName("token"), middleware.CorrelationID(r.Context())); err != nil {
		h.writeError(w, "Release", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *InventoryHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *InventoryHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/rooms", h.RegisterRoom)
	router.GET("/api/v1/rooms/id/:id", h.GetRoom)
	router.GET("/api/v1/rooms/available", h.ListAvailable)
	router.POST("/api/v1/rooms/id/:id/holds", h.RequestHold)

	router.POST("/api/v1/holds/id/:id/confirm", h.ConfirmHold)
	router.GET("/api/v1/holds/id/:id", h.GetHold)
	router.DELETE("/api/v1/holds/token/:token", h.Release)
}
