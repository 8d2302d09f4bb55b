package service

import (
	"context"
	"sort"
	"sync"
	"time"

	bookingserrors "roomsaga/internal/bookings/errors"
	"roomsaga/internal/bookings/repository"
	"roomsaga/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memoryRepository mirrors the mongo repository semantics: unique tokens and
// conditional status transitions.
type memoryRepository struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking
	tokens   map[string]string

	createErr     error
	transitionErr error
	// beforeCreate runs after the token check, used to simulate a concurrent insert.
	beforeCreate func(b *model.Booking)
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		bookings: make(map[string]*model.Booking),
		tokens:   make(map[string]string),
	}
}

func (r *memoryRepository) Create(_ context.Context, booking *model.Booking) error {
	if r.beforeCreate != nil {
		hook := r.beforeCreate
		r.beforeCreate = nil
		hook(booking)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.tokens[booking.IdempotencyToken]; ok {
		return bookingserrors.ErrDuplicateToken
	}

	now := time.Now().UTC()
	booking.ID = primitive.NewObjectID().Hex()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	stored := *booking
	r.bookings[booking.ID] = &stored
	r.tokens[booking.IdempotencyToken] = booking.ID
	return nil
}

func (r *memoryRepository) put(b model.Booking) *model.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == "" {
		b.ID = primitive.NewObjectID().Hex()
	}
	r.bookings[b.ID] = &b
	r.tokens[b.IdempotencyToken] = b.ID
	out := b
	return &out
}

func (r *memoryRepository) get(id string) *model.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil
	}
	out := *b
	return &out
}

func (r *memoryRepository) byToken(token string) *model.Booking {
	r.mu.Lock()
	id, ok := r.tokens[token]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return r.get(id)
}

func (r *memoryRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bookings)
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (*model.Booking, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, bookingserrors.ErrInvalidID
	}
	if b := r.get(id); b != nil {
		return b, nil
	}
	return nil, bookingserrors.ErrNotFound
}

func (r *memoryRepository) FindByToken(_ context.Context, token string) (*model.Booking, error) {
	if b := r.byToken(token); b != nil {
		return b, nil
	}
	return nil, bookingserrors.ErrNotFound
}

func (r *memoryRepository) ListByUser(_ context.Context, userID string, limit int, offset int64) ([]*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Booking
	for _, b := range r.bookings {
		if b.UserID == userID {
			c := *b
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if offset >= int64(len(out)) {
		return []*model.Booking{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepository) CountByUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, b := range r.bookings {
		if b.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *memoryRepository) Transition(_ context.Context, id string, from, to model.BookingStatus, update repository.StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.transitionErr != nil {
		return r.transitionErr
	}
	b, ok := r.bookings[id]
	if !ok || b.Status != from {
		return bookingserrors.ErrStatusConflict
	}

	b.Status = to
	b.UpdatedAt = time.Now().UTC()
	if update.LockID != "" {
		b.LockID = update.LockID
	}
	if update.RoomID != "" {
		b.RoomID = update.RoomID
	}
	if update.FailureReason != "" {
		b.FailureReason = update.FailureReason
	}
	return nil
}
