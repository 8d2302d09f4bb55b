package model

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// Booking is owned by the bookings service. A CONFIRMED booking always has a
// CONFIRMED room lock with the same idempotency token and date range.
type Booking struct {
	ID               string        `json:"id,omitempty" bson:"_id,omitempty"`
	UserID           string        `json:"user_id" bson:"user_id"`
	RoomID           string        `json:"room_id" bson:"room_id"`
	StartDate        time.Time     `json:"start_date" bson:"start_date"`
	EndDate          time.Time     `json:"end_date" bson:"end_date"`
	Status           BookingStatus `json:"status" bson:"status"`
	IdempotencyToken string        `json:"idempotency_token" bson:"idempotency_token"`
	LockID           string        `json:"lock_id,omitempty" bson:"lock_id,omitempty"`
	CorrelationID    string        `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	FailureReason    string        `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	CreatedAt        time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" bson:"updated_at"`
}

func (b *Booking) Range() DateRange {
	return DateRange{Start: b.StartDate, End: b.EndDate}
}

func (b *Booking) IsTerminal() bool {
	return b.Status == BookingConfirmed || b.Status == BookingCancelled
}

// CreateBookingRequest is the public create payload. RoomID is optional: when
// empty the first available room for the range is selected.
type CreateBookingRequest struct {
	RoomID    string `json:"room_id,omitempty" validate:"omitempty,max=64,room_id"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}
