package reaper

import (
	"context"
	"time"

	"roomsaga/internal/inventory/repository"
	"roomsaga/pkg/config"
	"roomsaga/pkg/events"
	"roomsaga/pkg/metrics"
)

const DefaultBatchSize = 500

// Reaper periodically cancels PENDING locks whose TTL has elapsed. It never
// touches CONFIRMED locks.
type Reaper struct {
	repo      repository.LockRepository
	cfg       *config.Config
	publisher events.Publisher
	metrics   *metrics.InventoryMetrics
	lease     Lease
	batchSize int
	now       func() time.Time
}

type Option func(*Reaper)

func WithLease(lease Lease) Option {
	return func(r *Reaper) { r.lease = lease }
}

func WithPublisher(p events.Publisher) Option {
	return func(r *Reaper) { r.publisher = p }
}

func WithMetrics(m *metrics.InventoryMetrics) Option {
	return func(r *Reaper) { r.metrics = m }
}

func New(repo repository.LockRepository, cfg *config.Config, opts ...Option) *Reaper {
	r := &Reaper{
		repo:      repo,
		cfg:       cfg,
		publisher: events.NopPublisher{},
		batchSize: DefaultBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run sweeps every ReaperInterval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) error {
	r.cfg.Log.Info("Lock reaper started", "interval", r.cfg.ReaperInterval.String())
	ticker := time.NewTicker(r.cfg.ReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.cfg.Log.Error("Lock reaper sweep failed", "error", err)
			}
		case <-ctx.Done():
			r.cfg.Log.Info("Lock reaper stopped")
			return nil
		}
	}
}

// Sweep runs one pass and returns the number of locks it cancelled. A pass
// is skipped when another replica holds the lease.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	if r.lease != nil {
		acquired, err := r.lease.Acquire(ctx, r.cfg.ReaperInterval)
		if err != nil {
			return 0, err
		}
		if !acquired {
			r.cfg.Log.Debug("Lock reaper lease held elsewhere, skipping sweep")
			return 0, nil
		}
	}

	started := time.Now()
	now := r.now()
	expired, err := r.repo.ExpirePending(ctx, now, r.batchSize)
	if err != nil {
		return 0, err
	}
	r.metrics.ObserveSweep(len(expired), time.Since(started))

	for _, lock := range expired {
		event := events.Event{
			Type:          events.TypeHoldExpired,
			Key:           lock.ID,
			CorrelationID: lock.CorrelationID,
			Payload: events.HoldExpiredEvent{
				LockID:           lock.ID,
				RoomID:           lock.RoomID,
				IdempotencyToken: lock.IdempotencyToken,
				At:               now,
			},
		}
		if err := r.publisher.Publish(ctx, event); err != nil {
			r.cfg.Log.WithCorrelationID(lock.CorrelationID).Warn("Failed to publish hold expiry", "lock_id", lock.ID, "error", err)
		}
	}

	if len(expired) > 0 {
		r.cfg.Log.Info("Expired pending locks cancelled", "count", len(expired))
	}
	return len(expired), nil
}
