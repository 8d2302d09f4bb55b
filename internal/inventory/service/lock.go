package service

import (
	"context"
	"errors"
	"time"

	inventoryerrors "roomsaga/internal/inventory/errors"
	"roomsaga/internal/inventory/repository"
	"roomsaga/pkg/config"
	apperrors "roomsaga/pkg/errors"
	"roomsaga/pkg/metrics"
	"roomsaga/pkg/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type LockService interface {
	RegisterRoom(ctx context.Context, req *model.CreateRoomRequest) (*model.Room, error)
	GetRoom(ctx context.Context, id string) (*model.Room, error)

	RequestHold(ctx context.Context, roomID string, rng model.DateRange, token, correlationID string) (model.HoldResult, error)
	ConfirmHold(ctx context.Context, lockID, correlationID string) (model.ConfirmOutcome, error)
	Release(ctx context.Context, token, correlationID string) error
	ListAvailable(ctx context.Context, rng model.DateRange, correlationID string) ([]model.AvailableRoom, error)
	GetLock(ctx context.Context, id string) (*model.RoomLock, error)
}

type lockService struct {
	repo    repository.LockRepository
	cfg     *config.Config
	metrics *metrics.InventoryMetrics
	now     func() time.Time
}

func NewLockService(repo repository.LockRepository, cfg *config.Config, m *metrics.InventoryMetrics) LockService {
	return &lockService{
		repo:    repo,
		cfg:     cfg,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *lockService) RegisterRoom(ctx context.Context, req *model.CreateRoomRequest) (*model.Room, error) {
	room := &model.Room{
		ID:        req.ID,
		Number:    req.Number,
		Available: true,
	}
	if req.Available != nil {
		room.Available = *req.Available
	}

	if err := s.repo.CreateRoom(ctx, room); err != nil {
		if errors.Is(err, inventoryerrors.ErrRoomExists) {
			return nil, apperrors.Conflict("Room with this id already exists")
		}
		s.cfg.Log.Error("Failed to register room", "room_id", req.ID, "error", err)
		return nil, apperrors.Internal("Failed to register room", err)
	}

	s.cfg.Log.Info("Room registered", "room_id", room.ID, "available", room.Available)
	return room, nil
}

func (s *lockService) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	room, err := s.repo.FindRoom(ctx, id)
	if err != nil {
		if errors.Is(err, inventoryerrors.ErrRoomNotFound) {
			return nil, apperrors.RoomNotFound(id)
		}
		return nil, apperrors.Internal("Failed to retrieve room", err)
	}
	return room, nil
}

func (s *lockService) GetLock(ctx context.Context, id string) (*model.RoomLock, error) {
	lock, err := s.repo.FindLockByID(ctx, id)
	if err != nil {
		if errors.Is(err, inventoryerrors.ErrLockNotFound) {
			return nil, apperrors.NotFoundWithID("Room lock", id)
		}
		return nil, apperrors.Internal("Failed to retrieve room lock", err)
	}
	return lock, nil
}

// RequestHold places a PENDING lock for the range. A token that already owns
// a live lock gets that lock back unchanged. A token whose lock was cancelled
// (released or expired) is checked like a new request and, when the range is
// free, its lock row becomes PENDING again.
func (s *lockService) RequestHold(ctx context.Context, roomID string, rng model.DateRange, token, correlationID string) (model.HoldResult, error) {
	log := s.cfg.Log.WithCorrelationID(correlationID)

	if roomID == "" {
		return model.HoldResult{}, apperrors.InvalidInput("Room ID cannot be empty")
	}
	if token == "" {
		return model.HoldResult{}, apperrors.InvalidInput("Idempotency token cannot be empty")
	}
	if !rng.Valid() {
		return model.HoldResult{}, apperrors.InvalidInput(inventoryerrors.ErrInvalidRange.Error())
	}

	now := s.now()
	var result model.HoldResult
	err := s.repo.ExecuteTransaction(ctx, func(tx repository.LockRepository) error {
		existing, err := tx.FindLockByToken(ctx, token)
		if err != nil && !errors.Is(err, inventoryerrors.ErrLockNotFound) {
			return err
		}
		if existing != nil && existing.Status != model.LockCancelled {
			result = s.replayHold(existing, roomID, rng, correlationID)
			return nil
		}

		var room *model.Room
		if s.cfg.StrictHolds {
			room, err = tx.LockRoom(ctx, roomID)
		} else {
			room, err = tx.FindRoom(ctx, roomID)
		}
		if err != nil {
			return err
		}
		if !room.Available {
			result = model.HoldResult{Outcome: model.HoldDenied}
			return nil
		}

		filter := repository.BlockingFilter{RoomID: roomID, Range: rng}
		if s.cfg.StrictHolds {
			filter.PendingAliveAt = &now
		}
		blocking, err := tx.CountBlocking(ctx, filter)
		if err != nil {
			return err
		}
		if blocking > 0 {
			result = model.HoldResult{Outcome: model.HoldDenied}
			return nil
		}

		expiresAt := now.Add(s.cfg.HoldTTL)
		lock := &model.RoomLock{
			ID:               uuid.New().String(),
			RoomID:           roomID,
			StartDate:        datatypes.Date(rng.Start),
			EndDate:          datatypes.Date(rng.End),
			Status:           model.LockPending,
			IdempotencyToken: token,
			CorrelationID:    correlationID,
			ExpiresAt:        &expiresAt,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		if existing != nil {
			lock.ID = existing.ID
			revived, err := tx.ReactivateCancelled(ctx, lock)
			if err != nil {
				return err
			}
			if !revived {
				// A concurrent request with the same token got there first.
				result = model.HoldResult{Outcome: model.HoldDenied}
				return nil
			}
			log.Info("Cancelled hold reactivated", "lock_id", lock.ID)
			result = model.HoldResult{Outcome: model.HoldGranted, LockID: lock.ID}
			return nil
		}

		if err := tx.CreateLock(ctx, lock); err != nil {
			return err
		}
		result = model.HoldResult{Outcome: model.HoldGranted, LockID: lock.ID}
		return nil
	})

	if errors.Is(err, inventoryerrors.ErrDuplicateToken) {
		// A concurrent request with the same token won the insert.
		existing, findErr := s.repo.FindLockByToken(ctx, token)
		if findErr != nil {
			log.Error("Failed to re-read lock after duplicate token", "token", token, "error", findErr)
			return model.HoldResult{}, apperrors.Internal("Failed to request hold", findErr)
		}
		result, err = s.replayHold(existing, roomID, rng, correlationID), nil
	}
	if err != nil {
		if errors.Is(err, inventoryerrors.ErrRoomNotFound) {
			s.metrics.IncHold(string(model.HoldRoomNotFound))
			return model.HoldResult{Outcome: model.HoldRoomNotFound}, apperrors.RoomNotFound(roomID)
		}
		log.Error("Failed to request hold", "room_id", roomID, "error", err)
		return model.HoldResult{}, apperrors.Internal("Failed to request hold", err)
	}

	s.metrics.IncHold(string(result.Outcome))
	log.Info("Hold requested",
		"room_id", roomID,
		"range", rng.String(),
		"outcome", result.Outcome,
		"lock_id", result.LockID,
	)
	return result, nil
}

func (s *lockService) replayHold(existing *model.RoomLock, roomID string, rng model.DateRange, correlationID string) model.HoldResult {
	if existing.RoomID != roomID || !sameRange(existing.Range(), rng) {
		s.cfg.Log.WithCorrelationID(correlationID).Warn("Idempotency token reused with different hold parameters",
			"lock_id", existing.ID,
			"lock_room_id", existing.RoomID,
			"requested_room_id", roomID,
		)
	}
	if existing.Status == model.LockCancelled {
		// Only reachable after a lost insert race whose winner is already gone.
		return model.HoldResult{Outcome: model.HoldDenied}
	}
	return model.HoldResult{Outcome: model.HoldGranted, LockID: existing.ID}
}

func sameRange(a, b model.DateRange) bool {
	return model.Day(a.Start).Equal(model.Day(b.Start)) && model.Day(a.End).Equal(model.Day(b.End))
}

// ConfirmHold promotes a PENDING lock under the room row lock. An elapsed TTL
// or a CONFIRMED lock overlapping the range cancels the hold and reports Expired.
func (s *lockService) ConfirmHold(ctx context.Context, lockID, correlationID string) (model.ConfirmOutcome, error) {
	log := s.cfg.Log.WithCorrelationID(correlationID)

	if lockID == "" {
		return "", apperrors.InvalidInput("Lock ID cannot be empty")
	}

	now := s.now()
	var outcome model.ConfirmOutcome
	err := s.repo.ExecuteTransaction(ctx, func(tx repository.LockRepository) error {
		lock, err := tx.FindLockByID(ctx, lockID)
		if err != nil {
			return err
		}
		if _, err := tx.LockRoom(ctx, lock.RoomID); err != nil {
			return err
		}
		// Re-read under the room lock: the reaper or a release may have won.
		lock, err = tx.FindLockByID(ctx, lockID)
		if err != nil {
			return err
		}

		switch {
		case lock.Status == model.LockConfirmed:
			outcome = model.ConfirmConfirmed
			return nil
		case lock.Status == model.LockCancelled:
			outcome = model.ConfirmExpired
			return nil
		case lock.Expired(now):
			if _, err := tx.CancelPending(ctx, lock.ID); err != nil {
				return err
			}
			outcome = model.ConfirmExpired
			return nil
		}

		conflicts, err := tx.CountBlocking(ctx, repository.BlockingFilter{
			RoomID:        lock.RoomID,
			Range:         lock.Range(),
			ExcludeLockID: lock.ID,
		})
		if err != nil {
			return err
		}
		if conflicts > 0 {
			if _, err := tx.CancelPending(ctx, lock.ID); err != nil {
				return err
			}
			outcome = model.ConfirmExpired
			return nil
		}

		promoted, err := tx.ConfirmPending(ctx, lock.ID, now)
		if err != nil {
			return err
		}
		if !promoted {
			outcome = model.ConfirmExpired
			return nil
		}
		if err := tx.IncrementTimesBooked(ctx, lock.RoomID); err != nil {
			return err
		}
		outcome = model.ConfirmConfirmed
		return nil
	})
	if err != nil {
		if errors.Is(err, inventoryerrors.ErrLockNotFound) || errors.Is(err, inventoryerrors.ErrRoomNotFound) {
			s.metrics.IncConfirm(string(model.ConfirmNotFound))
			return model.ConfirmNotFound, nil
		}
		log.Error("Failed to confirm hold", "lock_id", lockID, "error", err)
		return "", apperrors.Internal("Failed to confirm hold", err)
	}

	s.metrics.IncConfirm(string(outcome))
	log.Info("Hold confirmation processed", "lock_id", lockID, "outcome", outcome)
	return outcome, nil
}

// Release cancels the lock owned by token. Unknown and already cancelled
// tokens are acknowledged without change.
func (s *lockService) Release(ctx context.Context, token, correlationID string) error {
	log := s.cfg.Log.WithCorrelationID(correlationID)

	if token == "" {
		return apperrors.InvalidInput("Idempotency token cannot be empty")
	}

	released, err := s.repo.ReleaseByToken(ctx, token)
	if err != nil {
		log.Error("Failed to release hold", "token", token, "error", err)
		return apperrors.Internal("Failed to release hold", err)
	}

	s.metrics.AddReleased(released)
	if released > 0 {
		log.Info("Hold released", "token", token)
	} else {
		log.Debug("Release acknowledged without change", "token", token)
	}
	return nil
}

func (s *lockService) ListAvailable(ctx context.Context, rng model.DateRange, correlationID string) ([]model.AvailableRoom, error) {
	if !rng.Valid() {
		return nil, apperrors.InvalidInput(inventoryerrors.ErrInvalidRange.Error())
	}

	var pendingAliveAt *time.Time
	if s.cfg.StrictHolds {
		now := s.now()
		pendingAliveAt = &now
	}

	rooms, err := s.repo.ListAvailable(ctx, rng, pendingAliveAt)
	if err != nil {
		s.cfg.Log.WithCorrelationID(correlationID).Error("Failed to list available rooms", "range", rng.String(), "error", err)
		return nil, apperrors.Internal("Failed to list available rooms", err)
	}
	return rooms, nil
}
