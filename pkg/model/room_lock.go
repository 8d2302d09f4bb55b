package model

import (
	"time"

	"gorm.io/datatypes"
)

type LockStatus string

const (
	LockPending   LockStatus = "PENDING"
	LockConfirmed LockStatus = "CONFIRMED"
	LockCancelled LockStatus = "CANCELLED"
)

// RoomLock is a hold on a room for [StartDate, EndDate). PENDING locks carry
// ExpiresAt; CONFIRMED ranges of one room never overlap.
type RoomLock struct {
	ID               string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	RoomID           string         `json:"room_id" gorm:"type:varchar(64);not null;index:idx_room_locks_room_status,priority:1"`
	StartDate        datatypes.Date `json:"start_date" gorm:"type:date;not null"`
	EndDate          datatypes.Date `json:"end_date" gorm:"type:date;not null"`
	Status           LockStatus     `json:"status" gorm:"type:varchar(16);not null;index:idx_room_locks_room_status,priority:2"`
	IdempotencyToken string         `json:"idempotency_token" gorm:"type:varchar(128);not null;uniqueIndex"`
	CorrelationID    string         `json:"correlation_id,omitempty" gorm:"type:varchar(128)"`
	ExpiresAt        *time.Time     `json:"expires_at,omitempty" gorm:"index"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (RoomLock) TableName() string {
	return "room_locks"
}

func (l *RoomLock) Range() DateRange {
	return DateRange{Start: time.Time(l.StartDate), End: time.Time(l.EndDate)}
}

// Expired reports whether a PENDING lock's TTL has elapsed at now.
func (l *RoomLock) Expired(now time.Time) bool {
	return l.Status == LockPending && l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

type HoldOutcome string

const (
	HoldGranted      HoldOutcome = "GRANTED"
	HoldDenied       HoldOutcome = "DENIED"
	HoldRoomNotFound HoldOutcome = "ROOM_NOT_FOUND"
)

type HoldResult struct {
	Outcome HoldOutcome `json:"outcome"`
	LockID  string      `json:"lock_id,omitempty"`
}

type ConfirmOutcome string

const (
	ConfirmConfirmed ConfirmOutcome = "CONFIRMED"
	ConfirmExpired   ConfirmOutcome = "EXPIRED"
	ConfirmNotFound  ConfirmOutcome = "NOT_FOUND"
)

type ConfirmResult struct {
	Outcome ConfirmOutcome `json:"outcome"`
}

type HoldRequest struct {
	StartDate        string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate          string `json:"end_date" validate:"required,datetime=2006-01-02"`
	IdempotencyToken string `json:"idempotency_token" validate:"required,max=128"`
}
