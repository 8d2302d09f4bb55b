package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	inventoryerrors "roomsaga/internal/inventory/errors"
	"roomsaga/pkg/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BlockingFilter selects the locks that stop a new hold: every CONFIRMED lock,
// plus PENDING locks still alive after PendingAliveAt when it is set.
type BlockingFilter struct {
	RoomID         string
	Range          model.DateRange
	PendingAliveAt *time.Time
	ExcludeLockID  string
}

type LockRepository interface {
	CreateRoom(ctx context.Context, room *model.Room) error
	FindRoom(ctx context.Context, id string) (*model.Room, error)
	LockRoom(ctx context.Context, id string) (*model.Room, error)
	IncrementTimesBooked(ctx context.Context, roomID string) error

	CreateLock(ctx context.Context, lock *model.RoomLock) error
	FindLockByID(ctx context.Context, id string) (*model.RoomLock, error)
	FindLockByToken(ctx context.Context, token string) (*model.RoomLock, error)
	CountBlocking(ctx context.Context, filter BlockingFilter) (int64, error)

	ConfirmPending(ctx context.Context, lockID string, now time.Time) (bool, error)
	CancelPending(ctx context.Context, lockID string) (bool, error)
	ReactivateCancelled(ctx context.Context, lock *model.RoomLock) (bool, error)
	ReleaseByToken(ctx context.Context, token string) (int64, error)
	ExpirePending(ctx context.Context, now time.Time, limit int) ([]model.RoomLock, error)

	ListAvailable(ctx context.Context, rng model.DateRange, pendingAliveAt *time.Time) ([]model.AvailableRoom, error)

	ExecuteTransaction(ctx context.Context, fn func(tx LockRepository) error) error
}

type gormLockRepository struct {
	db *gorm.DB
}

func NewGormLockRepository(db *gorm.DB) LockRepository {
	return &gormLockRepository{db: db}
}

func (r *gormLockRepository) CreateRoom(ctx context.Context, room *model.Room) error {
	if err := r.db.WithContext(ctx).Create(room).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return inventoryerrors.ErrRoomExists
		}
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

func (r *gormLockRepository) FindRoom(ctx context.Context, id string) (*model.Room, error) {
	var room model.Room
	if err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventoryerrors.ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return &room, nil
}

// LockRoom reads the room with a row lock. Only meaningful inside
// ExecuteTransaction; sqlite ignores the locking clause.
func (r *gormLockRepository) LockRoom(ctx context.Context, id string) (*model.Room, error) {
	var room model.Room
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&room, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventoryerrors.ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to lock room: %w", err)
	}
	return &room, nil
}

func (r *gormLockRepository) IncrementTimesBooked(ctx context.Context, roomID string) error {
	err := r.db.WithContext(ctx).
		Model(&model.Room{}).
		Where("id = ?", roomID).
		UpdateColumn("times_booked", gorm.Expr("times_booked + ?", 1)).Error
	if err != nil {
		return fmt.Errorf("failed to increment booking counter: %w", err)
	}
	return nil
}

func (r *gormLockRepository) CreateLock(ctx context.Context, lock *model.RoomLock) error {
	if err := r.db.WithContext(ctx).Create(lock).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return inventoryerrors.ErrDuplicateToken
		}
		return fmt.Errorf("failed to create room lock: %w", err)
	}
	return nil
}

func (r *gormLockRepository) FindLockByID(ctx context.Context, id string) (*model.RoomLock, error) {
	return r.findLock(ctx, "id = ?", id)
}

func (r *gormLockRepository) FindLockByToken(ctx context.Context, token string) (*model.RoomLock, error) {
	return r.findLock(ctx, "idempotency_token = ?", token)
}

func (r *gormLockRepository) findLock(ctx context.Context, query string, arg string) (*model.RoomLock, error) {
	var lock model.RoomLock
	if err := r.db.WithContext(ctx).Where(query, arg).First(&lock).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventoryerrors.ErrLockNotFound
		}
		return nil, fmt.Errorf("failed to find room lock: %w", err)
	}
	return &lock, nil
}

func (r *gormLockRepository) CountBlocking(ctx context.Context, filter BlockingFilter) (int64, error) {
	var count int64
	q := r.db.WithContext(ctx).
		Model(&model.RoomLock{}).
		Where("room_id = ?", filter.RoomID).
		Where("start_date < ? AND ? < end_date", datatypes.Date(filter.Range.End), datatypes.Date(filter.Range.Start)).
		Where(blockingStatus(r.db, filter.PendingAliveAt))
	if filter.ExcludeLockID != "" {
		q = q.Where("id <> ?", filter.ExcludeLockID)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count overlapping locks: %w", err)
	}
	return count, nil
}

func blockingStatus(db *gorm.DB, pendingAliveAt *time.Time) *gorm.DB {
	if pendingAliveAt == nil {
		return db.Where("status = ?", model.LockConfirmed)
	}
	return db.Where("status = ?", model.LockConfirmed).
		Or("status = ? AND expires_at > ?", model.LockPending, *pendingAliveAt)
}

// ConfirmPending promotes a PENDING lock whose TTL has not elapsed at now.
// False means another writer changed the row first or the TTL ran out.
func (r *gormLockRepository) ConfirmPending(ctx context.Context, lockID string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.RoomLock{}).
		Where("id = ? AND status = ? AND expires_at > ?", lockID, model.LockPending, now).
		Updates(map[string]any{
			"status":     model.LockConfirmed,
			"expires_at": nil,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to confirm room lock: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *gormLockRepository) CancelPending(ctx context.Context, lockID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.RoomLock{}).
		Where("id = ? AND status = ?", lockID, model.LockPending).
		Update("status", model.LockCancelled)
	if res.Error != nil {
		return false, fmt.Errorf("failed to cancel room lock: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ReactivateCancelled turns the CANCELLED lock lock.ID back into a PENDING
// hold with lock's room, range, correlation id and expiry. The row keeps its
// id and token. False means the row is no longer CANCELLED.
func (r *gormLockRepository) ReactivateCancelled(ctx context.Context, lock *model.RoomLock) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.RoomLock{}).
		Where("id = ? AND status = ?", lock.ID, model.LockCancelled).
		Updates(map[string]any{
			"room_id":        lock.RoomID,
			"start_date":     lock.StartDate,
			"end_date":       lock.EndDate,
			"status":         model.LockPending,
			"correlation_id": lock.CorrelationID,
			"expires_at":     lock.ExpiresAt,
			"updated_at":     lock.UpdatedAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to reactivate room lock: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *gormLockRepository) ReleaseByToken(ctx context.Context, token string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.RoomLock{}).
		Where("idempotency_token = ? AND status <> ?", token, model.LockCancelled).
		Update("status", model.LockCancelled)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to release room lock: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ExpirePending cancels up to limit PENDING locks whose TTL elapsed at now in
// one statement and returns them. Rows locked by an in-flight confirmation are
// skipped and picked up by a later sweep if they are still PENDING.
func (r *gormLockRepository) ExpirePending(ctx context.Context, now time.Time, limit int) ([]model.RoomLock, error) {
	var expired []model.RoomLock
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND expires_at <= ?", model.LockPending, now).
			Order("expires_at ASC")
		if limit > 0 {
			q = q.Limit(limit)
		}
		if err := q.Find(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}

		ids := make([]string, 0, len(expired))
		for _, l := range expired {
			ids = append(ids, l.ID)
		}
		return tx.Model(&model.RoomLock{}).
			Where("id IN ? AND status = ?", ids, model.LockPending).
			Updates(map[string]any{
				"status":     model.LockCancelled,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to expire pending locks: %w", err)
	}
	for i := range expired {
		expired[i].Status = model.LockCancelled
	}
	return expired, nil
}

func (r *gormLockRepository) ListAvailable(ctx context.Context, rng model.DateRange, pendingAliveAt *time.Time) ([]model.AvailableRoom, error) {
	blocking := r.db.Model(&model.RoomLock{}).
		Select("1").
		Where("room_locks.room_id = rooms.id").
		Where("room_locks.start_date < ? AND ? < room_locks.end_date", datatypes.Date(rng.End), datatypes.Date(rng.Start)).
		Where(blockingStatus(r.db, pendingAliveAt))

	var rooms []model.Room
	err := r.db.WithContext(ctx).
		Where("available = ?", true).
		Where("NOT EXISTS (?)", blocking).
		Order("times_booked ASC").
		Order("id ASC").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list available rooms: %w", err)
	}

	result := make([]model.AvailableRoom, 0, len(rooms))
	for _, room := range rooms {
		result = append(result, model.AvailableRoom{
			RoomID:            room.ID,
			PriorBookingCount: room.TimesBooked,
		})
	}
	return result, nil
}

func (r *gormLockRepository) ExecuteTransaction(ctx context.Context, fn func(tx LockRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormLockRepository{db: tx})
	})
}
