package model

import "time"

// Room is the inventory view of a room. Available is the static flag owned by
// the hotel catalogue; date-scoped occupancy lives in RoomLock records.
type Room struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Number      string    `json:"number" gorm:"type:varchar(32)"`
	Available   bool      `json:"available" gorm:"not null"`
	TimesBooked int64     `json:"times_booked" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Room) TableName() string {
	return "rooms"
}

type CreateRoomRequest struct {
	ID        string `json:"id" validate:"required,max=64"`
	Number    string `json:"number" validate:"omitempty,max=32"`
	Available *bool  `json:"available,omitempty"`
}

// AvailableRoom is one entry of the ordered candidate list returned to the
// booking side for auto-selection.
type AvailableRoom struct {
	RoomID            string `json:"room_id"`
	PriorBookingCount int64  `json:"prior_booking_count"`
}
