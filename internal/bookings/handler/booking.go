package handler

import (
	"net/http"

	"roomsaga/internal/bookings/service"
	"roomsaga/internal/bookings/validator"
	apperrors "roomsaga/pkg/errors"
	httputil "roomsaga/pkg/http"
	"roomsaga/pkg/logger"
	"roomsaga/pkg/middleware"
	"roomsaga/pkg/model"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service   service.BookingService
	validator *validator.BookingValidator
	log       *logger.Logger
}

func NewBookingHandler(service service.BookingService, validator *validator.BookingValidator, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service:   service,
		validator: validator,
		log:       log,
	}
}

// Create answers 201 for a new booking and 200 for a replayed idempotency key.
// The effective key is always echoed in the Idempotency-Key header.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, err := httputil.UserID(r)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	token := r.Header.Get(httputil.HeaderIdempotencyKey)
	if err := h.validator.ValidateIdempotencyKey(token); err != nil {
		h.writeError(w, "Create", apperrors.Validation("Invalid idempotency key", map[string]any{"error": err.Error()}))
		return
	}
	if token == "" {
		token = uuid.NewString()
	}
	w.Header().Set(httputil.HeaderIdempotencyKey, token)

	var req model.CreateBookingRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, "Create", err)
		return
	}
	rng, err := h.validator.ValidateCreate(&req)
	if err != nil {
		h.writeError(w, "Create", apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()}))
		return
	}

	booking, replayed, err := h.service.CreateBooking(r.Context(), service.CreateBookingCommand{
		UserID:        userID,
		RoomID:        req.RoomID,
		Range:         rng,
		Token:         token,
		CorrelationID: middleware.CorrelationID(r.Context()),
	})
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if replayed {
		if err := httputil.WriteSuccess(w, booking); err != nil {
			h.log.Error("failed to write success response", "handler", "Create", "operation", "WriteSuccess", "error", err)
		}
		return
	}
	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, err := httputil.UserID(r)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	booking, err := h.service.GetBooking(r.Context(), ps.ByName("id"), userID)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, err := httputil.UserID(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	bookings, totalCount, err := h.service.ListBookings(r.Context(), userID, limit, offset)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, totalCount, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, err := httputil.UserID(r)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if _, err := h.service.CancelBooking(r.Context(), ps.ByName("id"), userID, middleware.CorrelationID(r.Context())); err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings", h.List)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.DELETE("/api/v1/bookings/id/:id", h.Cancel)
}
