package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "roomsaga/internal/bookings/errors"
	"roomsaga/internal/bookings/repository"
	apperrors "roomsaga/pkg/errors"
	"roomsaga/pkg/events"
	"roomsaga/pkg/gateway"
	"roomsaga/pkg/logger"
	"roomsaga/pkg/model"

	"github.com/google/uuid"
)

// Saga results, used as metric labels and failure reasons.
const (
	resultConfirmed           = "confirmed"
	resultRoomNotAvailable    = "room_not_available"
	resultFailed              = "failed"
	resultUpstreamUnavailable = "upstream_unavailable"
	resultReplayed            = "replayed"

	reasonHoldDenied    = "HOLD_DENIED"
	reasonRoomNotFound  = "ROOM_NOT_FOUND"
	reasonConfirmFailed = "CONFIRM_FAILED"
)

func (s *bookingService) CreateBooking(ctx context.Context, cmd CreateBookingCommand) (*model.Booking, bool, error) {
	if err := s.validateRange(cmd.Range); err != nil {
		return nil, false, err
	}
	if cmd.Token == "" {
		cmd.Token = uuid.NewString()
	}
	log := s.cfg.Log.WithCorrelationID(cmd.CorrelationID).With("idempotency_token", cmd.Token)

	existing, err := s.repo.FindByToken(ctx, cmd.Token)
	if err == nil {
		return s.replay(ctx, existing, cmd, log)
	}
	if !errors.Is(err, bookingserrors.ErrNotFound) {
		return nil, false, apperrors.Internal("Failed to look up booking", err)
	}

	roomID := cmd.RoomID
	if roomID == "" {
		roomID, err = s.selectRoom(ctx, cmd)
		if err != nil {
			return nil, false, err
		}
		log.Info("Room auto-selected", "room_id", roomID)
	}

	booking := &model.Booking{
		UserID:           cmd.UserID,
		RoomID:           roomID,
		StartDate:        cmd.Range.Start,
		EndDate:          cmd.Range.End,
		Status:           model.BookingPending,
		IdempotencyToken: cmd.Token,
		CorrelationID:    cmd.CorrelationID,
	}
	if err := s.repo.Create(ctx, booking); err != nil {
		if !errors.Is(err, bookingserrors.ErrDuplicateToken) {
			log.Error("Failed to persist booking", "error", err)
			return nil, false, apperrors.Internal("Failed to create booking", err)
		}
		// A concurrent request with the same token won the insert.
		existing, findErr := s.repo.FindByToken(ctx, cmd.Token)
		if findErr != nil {
			return nil, false, apperrors.Internal("Failed to look up booking", findErr)
		}
		return s.replay(ctx, existing, cmd, log)
	}

	log = log.With("booking_id", booking.ID)
	log.Info("Booking saga started", "room_id", booking.RoomID, "range", cmd.Range.String())

	result, err := s.run(ctx, booking, log)
	return result, false, err
}

// replay answers a repeated token. Terminal bookings are returned unchanged,
// a PENDING booking resumes from the hold request.
func (s *bookingService) replay(ctx context.Context, existing *model.Booking, cmd CreateBookingCommand, log *logger.Logger) (*model.Booking, bool, error) {
	if existing.UserID != cmd.UserID {
		return nil, false, apperrors.Forbidden("Idempotency key belongs to another user")
	}

	log = log.With("booking_id", existing.ID)
	if !existing.Range().Start.Equal(cmd.Range.Start) || !existing.Range().End.Equal(cmd.Range.End) ||
		(cmd.RoomID != "" && cmd.RoomID != existing.RoomID) {
		log.Warn("Idempotency key reused with different parameters, returning original booking",
			"requested_room_id", cmd.RoomID,
			"requested_range", cmd.Range.String(),
		)
	}

	if existing.IsTerminal() {
		s.metrics.IncSaga(resultReplayed)
		return existing, true, nil
	}

	log.Info("Resuming pending booking saga")
	result, err := s.run(ctx, existing, log)
	return result, true, err
}

func (s *bookingService) run(ctx context.Context, booking *model.Booking, log *logger.Logger) (*model.Booking, error) {
	hold, err := s.requestHold(ctx, booking)
	if err != nil {
		log.Warn("Hold request failed, booking stays pending", "error", err)
		s.metrics.IncSaga(resultUpstreamUnavailable)
		return nil, apperrors.UpstreamUnavailable(inventoryService, err)
	}

	switch hold.Outcome {
	case model.HoldGranted:
	case model.HoldDenied:
		return s.fail(ctx, booking, reasonHoldDenied, resultRoomNotAvailable, log,
			apperrors.RoomNotAvailable("Room is not available for the requested dates"))
	case model.HoldRoomNotFound:
		return s.fail(ctx, booking, reasonRoomNotFound, resultRoomNotAvailable, log,
			apperrors.RoomNotAvailable("Room does not exist"))
	default:
		s.metrics.IncSaga(resultUpstreamUnavailable)
		return nil, apperrors.UpstreamUnavailable(inventoryService,
			fmt.Errorf("%w: unexpected hold outcome %q", gateway.ErrUnavailable, hold.Outcome))
	}

	log.Info("Hold granted", "lock_id", hold.LockID)

	outcome, err := s.confirmHold(ctx, hold.LockID, booking.CorrelationID)
	if err != nil || outcome != model.ConfirmConfirmed {
		log.Warn("Confirm failed, compensating", "lock_id", hold.LockID, "outcome", outcome, "error", err)
		s.compensate(ctx, booking, log)
		cause := err
		if cause == nil {
			cause = fmt.Errorf("confirm outcome %s", outcome)
		}
		return s.fail(ctx, booking, reasonConfirmFailed, resultFailed, log,
			apperrors.BookingFailed("Booking could not be confirmed", cause))
	}

	err = s.repo.Transition(ctx, booking.ID, model.BookingPending, model.BookingConfirmed, repository.StatusUpdate{LockID: hold.LockID})
	if err != nil {
		if errors.Is(err, bookingserrors.ErrStatusConflict) {
			return s.settled(ctx, booking, log)
		}
		log.Error("Failed to mark booking confirmed", "error", err)
		return nil, apperrors.Internal("Failed to confirm booking", err)
	}

	booking.Status = model.BookingConfirmed
	booking.LockID = hold.LockID
	s.metrics.IncSaga(resultConfirmed)
	s.publish(ctx, events.TypeBookingConfirmed, booking, "")

	log.Info("Booking confirmed", "room_id", booking.RoomID, "lock_id", hold.LockID)
	return booking, nil
}

// fail moves a PENDING booking to CANCELLED and returns result as the saga's error.
func (s *bookingService) fail(ctx context.Context, booking *model.Booking, reason, label string, log *logger.Logger, result error) (*model.Booking, error) {
	err := s.repo.Transition(ctx, booking.ID, model.BookingPending, model.BookingCancelled, repository.StatusUpdate{FailureReason: reason})
	if err != nil && !errors.Is(err, bookingserrors.ErrStatusConflict) {
		log.Error("Failed to mark booking cancelled", "reason", reason, "error", err)
		return nil, apperrors.Internal("Failed to record booking failure", err)
	}

	booking.Status = model.BookingCancelled
	booking.FailureReason = reason
	s.metrics.IncSaga(label)
	s.publish(ctx, events.TypeBookingFailed, booking, reason)

	log.Info("Booking saga failed", "reason", reason)
	return nil, result
}

// compensate releases the hold. Failures are queued for asynchronous retry;
// the lock TTL bounds the damage if the retry is lost as well.
func (s *bookingService) compensate(ctx context.Context, booking *model.Booking, log *logger.Logger) {
	ctx = context.WithoutCancel(ctx)

	err := s.release(ctx, booking.IdempotencyToken, booking.CorrelationID)
	if err == nil {
		return
	}

	log.Error("Compensating release failed, queuing retry", "error", err)
	s.metrics.IncCompensationFailure()

	retry := events.Event{
		Type:          events.TypeReleaseRetry,
		Key:           booking.IdempotencyToken,
		CorrelationID: booking.CorrelationID,
		Payload: events.ReleaseRetry{
			IdempotencyToken: booking.IdempotencyToken,
			BookingID:        booking.ID,
		},
	}
	if err := s.publisher.Publish(ctx, retry); err != nil {
		log.Error("Failed to queue release retry", "error", err)
	}
}

// settled handles a lost status race at the end of the saga by returning
// whatever state the other writer left.
func (s *bookingService) settled(ctx context.Context, booking *model.Booking, log *logger.Logger) (*model.Booking, error) {
	current, err := s.repo.FindByID(ctx, booking.ID)
	if err != nil {
		return nil, apperrors.Internal("Failed to reload booking", err)
	}

	switch current.Status {
	case model.BookingConfirmed:
		return current, nil
	case model.BookingCancelled:
		log.Warn("Booking cancelled while saga was running, releasing hold")
		s.compensate(ctx, current, log)
		return nil, apperrors.BookingFailed("Booking was cancelled before it could be confirmed", nil)
	default:
		return nil, apperrors.Conflict("Booking was modified concurrently, retry the request")
	}
}

func (s *bookingService) selectRoom(ctx context.Context, cmd CreateBookingCommand) (string, error) {
	start := time.Now()
	rooms, err := s.inventory.ListAvailable(ctx, cmd.Range, cmd.CorrelationID)
	s.metrics.ObserveUpstream("list_available", err, time.Since(start))
	if err != nil {
		s.metrics.IncSaga(resultUpstreamUnavailable)
		return "", apperrors.UpstreamUnavailable(inventoryService, err)
	}
	if len(rooms) == 0 {
		s.metrics.IncSaga(resultRoomNotAvailable)
		return "", apperrors.RoomNotAvailable("No room is available for the requested dates")
	}
	return rooms[0].RoomID, nil
}

func (s *bookingService) requestHold(ctx context.Context, booking *model.Booking) (model.HoldResult, error) {
	start := time.Now()
	res, err := s.inventory.RequestHold(ctx, gateway.HoldRequest{
		RoomID:        booking.RoomID,
		Range:         booking.Range(),
		Token:         booking.IdempotencyToken,
		CorrelationID: booking.CorrelationID,
	})
	s.metrics.ObserveUpstream("request_hold", err, time.Since(start))
	return res, err
}

func (s *bookingService) confirmHold(ctx context.Context, lockID, correlationID string) (model.ConfirmOutcome, error) {
	start := time.Now()
	outcome, err := s.inventory.ConfirmHold(ctx, lockID, correlationID)
	s.metrics.ObserveUpstream("confirm_hold", err, time.Since(start))
	return outcome, err
}

func (s *bookingService) validateRange(rng model.DateRange) error {
	today := model.Day(s.now())

	switch {
	case !rng.Valid():
		return apperrors.InvalidInput("start_date must be before end_date")
	case rng.Start.Before(today):
		return apperrors.InvalidInput("start_date cannot be in the past")
	case rng.Start.After(today.AddDate(0, 0, s.cfg.MaxAdvanceDays)):
		return apperrors.InvalidInput(fmt.Sprintf("start_date cannot be more than %d days ahead", s.cfg.MaxAdvanceDays))
	case rng.Nights() > s.cfg.MaxStayDays:
		return apperrors.InvalidInput(fmt.Sprintf("stay cannot be longer than %d nights", s.cfg.MaxStayDays))
	}
	return nil
}
