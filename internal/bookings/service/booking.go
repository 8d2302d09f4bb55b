package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	bookingserrors "roomsaga/internal/bookings/errors"
	"roomsaga/internal/bookings/repository"
	"roomsaga/pkg/config"
	apperrors "roomsaga/pkg/errors"
	"roomsaga/pkg/events"
	"roomsaga/pkg/gateway"
	"roomsaga/pkg/metrics"
	"roomsaga/pkg/model"
)

const inventoryService = "inventory"

type CreateBookingCommand struct {
	UserID        string
	RoomID        string
	Range         model.DateRange
	Token         string
	CorrelationID string
}

type BookingService interface {
	// CreateBooking runs the booking saga. The bool reports whether the result
	// is a replay of an earlier request with the same token.
	CreateBooking(ctx context.Context, cmd CreateBookingCommand) (*model.Booking, bool, error)
	GetBooking(ctx context.Context, id, userID string) (*model.Booking, error)
	ListBookings(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error)
	CancelBooking(ctx context.Context, id, userID, correlationID string) (*model.Booking, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	inventory gateway.Inventory
	publisher events.Publisher
	cfg       *config.Config
	metrics   *metrics.BookingMetrics
	now       func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	inventory gateway.Inventory,
	publisher events.Publisher,
	cfg *config.Config,
	m *metrics.BookingMetrics,
) BookingService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &bookingService{
		repo:      repo,
		inventory: inventory,
		publisher: publisher,
		cfg:       cfg,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *bookingService) GetBooking(ctx context.Context, id, userID string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	if booking.UserID != userID {
		return nil, apperrors.Forbidden("Booking belongs to another user")
	}

	return booking, nil
}

func (s *bookingService) ListBookings(ctx context.Context, userID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByUser(ctx, userID)
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.ListByUser(ctx, userID, limit, offset)
	}()

	wg.Wait()

	if errCount != nil {
		s.cfg.Log.Error("Failed to count bookings", "user_id", userID, "error", errCount)
		return nil, 0, apperrors.Internal("Failed to count bookings", errCount)
	}
	if errFind != nil {
		s.cfg.Log.Error("Failed to list bookings", "user_id", userID, "error", errFind)
		return nil, 0, apperrors.Internal("Failed to retrieve bookings", errFind)
	}

	return bookings, count, nil
}

// CancelBooking releases the room synchronously and only then marks the
// booking CANCELLED. If inventory cannot be reached the booking is unchanged.
func (s *bookingService) CancelBooking(ctx context.Context, id, userID, correlationID string) (*model.Booking, error) {
	booking, err := s.GetBooking(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	log := s.cfg.Log.WithCorrelationID(correlationID).With("booking_id", booking.ID)

	if booking.Status == model.BookingCancelled {
		return nil, apperrors.InvalidState("Booking is already cancelled")
	}
	if booking.StartDate.Sub(s.now()) <= s.cfg.CancellationCutoff {
		return nil, apperrors.InvalidState(
			fmt.Sprintf("Bookings can only be cancelled more than %s before the start date", s.cfg.CancellationCutoff))
	}

	if err := s.release(ctx, booking.IdempotencyToken, correlationID); err != nil {
		log.Warn("Release failed, booking left unchanged", "error", err)
		return nil, apperrors.UpstreamUnavailable(inventoryService, err)
	}

	err = s.repo.Transition(ctx, booking.ID, booking.Status, model.BookingCancelled, repository.StatusUpdate{})
	if errors.Is(err, bookingserrors.ErrStatusConflict) {
		// The saga settled the booking between our read and the release.
		current, findErr := s.repo.FindByID(ctx, booking.ID)
		if findErr != nil {
			log.Error("Failed to reload booking after status conflict", "error", findErr)
			return nil, apperrors.Internal("Failed to cancel booking", findErr)
		}
		switch current.Status {
		case model.BookingCancelled:
			log.Info("Booking already cancelled by its saga")
			return current, nil
		case model.BookingConfirmed:
			log.Warn("Booking confirmed during cancellation, cancelling confirmed booking", "lock_id", current.LockID)
			booking = current
			err = s.repo.Transition(ctx, booking.ID, model.BookingConfirmed, model.BookingCancelled, repository.StatusUpdate{})
		}
	}
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStatusConflict) {
			return nil, apperrors.Conflict("Booking was modified concurrently, retry the request")
		}
		log.Error("Failed to mark booking cancelled", "error", err)
		return nil, apperrors.Internal("Failed to cancel booking", err)
	}

	booking.Status = model.BookingCancelled
	s.metrics.IncCancellation()
	s.publish(ctx, events.TypeBookingCancelled, booking, "")

	log.Info("Booking cancelled", "room_id", booking.RoomID)
	return booking, nil
}

func (s *bookingService) release(ctx context.Context, token, correlationID string) error {
	start := time.Now()
	err := s.inventory.Release(ctx, token, correlationID)
	s.metrics.ObserveUpstream("release", err, time.Since(start))
	return err
}

func (s *bookingService) publish(ctx context.Context, eventType string, booking *model.Booking, reason string) {
	event := events.Event{
		Type:          eventType,
		Key:           booking.ID,
		CorrelationID: booking.CorrelationID,
		Payload: events.BookingEvent{
			BookingID: booking.ID,
			UserID:    booking.UserID,
			RoomID:    booking.RoomID,
			StartDate: booking.StartDate.Format(model.DateLayout),
			EndDate:   booking.EndDate.Format(model.DateLayout),
			Status:    string(booking.Status),
			Reason:    reason,
			At:        s.now(),
		},
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.cfg.Log.Warn("Failed to publish booking event", "type", eventType, "booking_id", booking.ID, "error", err)
	}
}
