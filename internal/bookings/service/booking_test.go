package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"roomsaga/internal/bookings/repository"
	"roomsaga/pkg/config"
	apperrors "roomsaga/pkg/errors"
	"roomsaga/pkg/events"
	"roomsaga/pkg/gateway"
	"roomsaga/pkg/logger"
	"roomsaga/pkg/metrics"
	"roomsaga/pkg/model"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type mockInventory struct {
	mu    sync.Mutex
	calls []string

	requestHoldFunc   func(ctx context.Context, req gateway.HoldRequest) (model.HoldResult, error)
	confirmHoldFunc   func(ctx context.Context, lockID, correlationID string) (model.ConfirmOutcome, error)
	releaseFunc       func(ctx context.Context, token, correlationID string) error
	listAvailableFunc func(ctx context.Context, rng model.DateRange, correlationID string) ([]model.AvailableRoom, error)
}

func (m *mockInventory) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockInventory) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockInventory) RequestHold(ctx context.Context, req gateway.HoldRequest) (model.HoldResult, error) {
	m.record("request_hold")
	if m.requestHoldFunc != nil {
		return m.requestHoldFunc(ctx, req)
	}
	return model.HoldResult{Outcome: model.HoldGranted, LockID: "lock-1"}, nil
}

func (m *mockInventory) ConfirmHold(ctx context.Context, lockID, correlationID string) (model.ConfirmOutcome, error) {
	m.record("confirm_hold")
	if m.confirmHoldFunc != nil {
		return m.confirmHoldFunc(ctx, lockID, correlationID)
	}
	return model.ConfirmConfirmed, nil
}

func (m *mockInventory) Release(ctx context.Context, token, correlationID string) error {
	m.record("release")
	if m.releaseFunc != nil {
		return m.releaseFunc(ctx, token, correlationID)
	}
	return nil
}

func (m *mockInventory) ListAvailable(ctx context.Context, rng model.DateRange, correlationID string) ([]model.AvailableRoom, error) {
	m.record("list_available")
	if m.listAvailableFunc != nil {
		return m.listAvailableFunc(ctx, rng, correlationID)
	}
	return []model.AvailableRoom{{RoomID: "r1"}}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc       *bookingService
	repo      *memoryRepository
	inv       *mockInventory
	publisher *recordingPublisher
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:      newMemoryRepository(),
		inv:       &mockInventory{},
		publisher: &recordingPublisher{},
		now:       time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
	}
	cfg := &config.Config{
		Log:                logger.Discard(),
		MaxAdvanceDays:     365,
		MaxStayDays:        30,
		CancellationCutoff: 24 * time.Hour,
	}
	f.svc = NewBookingService(f.repo, f.inv, f.publisher, cfg, metrics.NewBookingMetrics(prometheus.NewRegistry())).(*bookingService)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func days(from time.Time, offset, nights int) model.DateRange {
	start := model.Day(from).AddDate(0, 0, offset)
	return model.DateRange{Start: start, End: start.AddDate(0, 0, nights)}
}

func (f *fixture) cmd(user, room, token string) CreateBookingCommand {
	return CreateBookingCommand{
		UserID:        user,
		RoomID:        room,
		Range:         days(f.now, 5, 3),
		Token:         token,
		CorrelationID: "corr-" + token,
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func assertCalls(t *testing.T, got []string, want ...string) {
	t.Helper()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("inventory calls = %v, want %v", got, want)
	}
}

func TestCreateBooking_Confirmed(t *testing.T) {
	f := newFixture(t)
	var holdReq gateway.HoldRequest
	f.inv.requestHoldFunc = func(_ context.Context, req gateway.HoldRequest) (model.HoldResult, error) {
		holdReq = req
		return model.HoldResult{Outcome: model.HoldGranted, LockID: "lock-7"}, nil
	}

	booking, replayed, err := f.svc.CreateBooking(context.Background(), f.cmd("u1", "r1", "tok-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if replayed {
		t.Error("first request must not be reported as replay")
	}
	if booking.Status != model.BookingConfirmed || booking.LockID != "lock-7" {
		t.Fatalf("unexpected booking %+v", booking)
	}
	if holdReq.Token != "tok-1" || holdReq.CorrelationID != "corr-tok-1" || holdReq.RoomID != "r1" {
		t.Errorf("unexpected hold request %+v", holdReq)
	}

	stored := f.repo.byToken("tok-1")
	if stored.Status != model.BookingConfirmed || stored.LockID != "lock-7" {
		t.Errorf("stored booking not confirmed: %+v", stored)
	}
	assertCalls(t, f.inv.Calls(), "request_hold", "confirm_hold")
	if types := f.publisher.Types(); len(types) != 1 || types[0] != events.TypeBookingConfirmed {
		t.Errorf("unexpected events %v", types)
	}
}

func TestCreateBooking_InvalidRange(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		rng     model.DateRange
		wantErr bool
	}{
		{name: "reversed", rng: model.DateRange{Start: days(now, 5, 0).Start, End: days(now, 3, 0).Start}, wantErr: true},
		{name: "empty", rng: days(now, 5, 0), wantErr: true},
		{name: "start in the past", rng: days(now, -1, 3), wantErr: true},
		{name: "start today", rng: days(now, 0, 1)},
		{name: "start exactly one year ahead", rng: days(now, 365, 1)},
		{name: "start beyond one year", rng: days(now, 366, 1), wantErr: true},
		{name: "thirty nights", rng: days(now, 1, 30)},
		{name: "thirty one nights", rng: days(now, 1, 31), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			cmd := f.cmd("u1", "r1", "tok")
			cmd.Range = tt.rng

			_, _, err := f.svc.CreateBooking(context.Background(), cmd)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			assertCode(t, err, apperrors.CodeInvalidInput)
			assertCalls(t, f.inv.Calls())
			if f.repo.count() != 0 {
				t.Error("invalid request must not create a booking")
			}
		})
	}
}

func TestCreateBooking_HoldNotGranted(t *testing.T) {
	tests := []struct {
		name    string
		outcome model.HoldOutcome
		reason  string
	}{
		{name: "denied", outcome: model.HoldDenied, reason: reasonHoldDenied},
		{name: "room not found", outcome: model.HoldRoomNotFound, reason: reasonRoomNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.inv.requestHoldFunc = func(context.Context, gateway.HoldRequest) (model.HoldResult, error) {
				return model.HoldResult{Outcome: tt.outcome}, nil
			}

			booking, _, err := f.svc.CreateBooking(context.Background(), f.cmd("u1", "r1", "tok-1"))
			assertCode(t, err, apperrors.CodeRoomNotAvailable)
			if booking != nil {
				t.Errorf("expected no booking on failure, got %+v", booking)
			}

			stored := f.repo.byToken("tok-1")
			if stored.Status != model.BookingCancelled || stored.FailureReason != tt.reason {
				t.Errorf("stored booking = %+v", stored)
			}
			assertCalls(t, f.inv.Calls(), "request_hold")
			if types := f.publisher.Types(); len(types) != 1 || types[0] != events.TypeBookingFailed {
				t.Errorf("unexpected events %v", types)
			}
		})
	}
}

func TestCreateBooking_HoldUnavailableKeepsPending(t *testing.T) {
	f := newFixture(t)
	f.inv.requestHoldFunc = func(context.Context, gateway.HoldRequest) (model.HoldResult, error) {
		return model.HoldResult{}, fmt.Errorf("%w: timeout", gateway.ErrUnavailable)
	}

	_, _, err := f.svc.CreateBooking(context.Background(), f.cmd("u1", "r1", "tok-1"))
	assertCode(t, err, apperrors.CodeUpstreamUnavailable)

	if stored := f.repo.byToken("tok-1"); stored.Status != model.BookingPending {
		t.Errorf("expected PENDING, got %s", stored.Status)
	}
	if len(f.publisher.Types()) != 0 {
		t.Errorf("no event expected, got %v", f.publisher.Types())
	}
}

func TestCreateBooking_ConfirmFailureCompensates(t *testing.T) {
	tests := []struct {
		name    string
		outcome model.ConfirmOutcome
		err     error
	}{
		{name: "expired", outcome: model.ConfirmExpired},
		{name: "not found", outcome: model.ConfirmNotFound},
		{name: "transport error", err: fmt.Errorf("%w: reset", gateway.ErrUnavailable)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.inv.confirmHoldFunc = func(context.Context, string, string) (model.ConfirmOutcome, error) {
				return tt.outcome, tt.err
			}
			var released string
			f.inv.releaseFunc = func(_ context.Context, token, _ string) error {
				released = token
				return nil
			}

			_, _, err := f.svc.CreateBooking(context.Background(), f.cmd("u1", "r1", "tok-1"))
			assertCode(t, err, apperrors.CodeBookingFailed)

			if released != "tok-1" {
				t.Errorf("expected release of tok-1, got %q", released)
			}
			stored := f.repo.byToken("tok-1")
			if stored.Status != model.BookingCancelled || stored.FailureReason != reasonConfirmFailed {
				t.Errorf("stored booking = %+v", stored)
			}
			assertCalls(t, f.inv.Calls(), "request_hold", "confirm_hold", "release")
		})
	}
}

func TestCreateBooking_CompensationFailureQueuesRetry(t *testing.T) {
	f := newFixture(t)
	f.inv.confirmHoldFunc = func(context.Context, string, string) (model.ConfirmOutcome, error) {
		return model.ConfirmExpired, nil
	}
	f.inv.releaseFunc = func(context.Context, string, string) error {
		return gateway.ErrUnavailable
	}

	_, _, err := f.svc.CreateBooking(context.Background(), f.cmd("u1", "r1", "tok-1"))
	assertCode(t, err, apperrors.CodeBookingFailed)

	if stored := f.repo.byToken("tok-1"); stored.Status != model.BookingCancelled {
		t.Errorf("booking must be cancelled even when release fails, got %s", stored.Status)
	}

	var retry *events.ReleaseRetry
	for _, e := range f.publisher.events {
		if e.Type == events.TypeReleaseRetry {
			r := e.Payload.(events.ReleaseRetry)
			retry = &r
			if e.Key != "tok-1" {
				t.Errorf("retry keyed by %q", e.Key)
			}
		}
	}
	if retry == nil || retry.IdempotencyToken != "tok-1" {
		t.Fatalf("expected release retry for tok-1, got %v", f.publisher.Types())
	}
}

func TestCreateBooking_ConfirmAfterCancellationReleases(t *testing.T) {
	f := newFixture(t)
	f.inv.confirmHoldFunc = func(context.Context, string, string) (model.ConfirmOutcome, error) {
		b := f.repo.byToken("tok-1")
		f.repo.mu.Lock()
		f.repo.bookings[b.ID].Status = model.BookingCancelled
		f.repo.mu.Unlock()
		return model.ConfirmConfirmed, nil
	}

	_, _, err := f.svc.CreateBooking(context.Background(), f.cmd("u1", "r1", "tok-1"))
	assertCode(t, err, apperrors.CodeBookingFailed)
	assertCalls(t, f.inv.Calls(), "request_hold", "confirm_hold", "release")
}

func TestCreateBooking_Replay(t *testing.T) {
	ctx := context.Background()

	t.Run("terminal booking returned unchanged", func(t *testing.T) {
		f := newFixture(t)
		first, _, err := f.svc.CreateBooking(ctx, f.cmd("u1", "r1", "tok-1"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		second, replayed, err := f.svc.CreateBooking(ctx, f.cmd("u1", "r1", "tok-1"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !replayed || second.ID != first.ID || second.Status != model.BookingConfirmed {
			t.Errorf("expected replay of %s, got %+v (replayed=%v)", first.ID, second, replayed)
		}
		assertCalls(t, f.inv.Calls(), "request_hold", "confirm_hold")
		if f.repo.count() != 1 {
			t.Errorf("expected a single booking, got %d", f.repo.count())
		}
	})

	t.Run("cancelled booking returned unchanged", func(t *testing.T) {
		f := newFixture(t)
		f.inv.requestHoldFunc = func(context.Context, gateway.HoldRequest) (model.HoldResult, error) {
			return model.HoldResult{Outcome: model.HoldDenied}, nil
		}
		_, _, _ = f.svc.CreateBooking(ctx, f.cmd("u1", "r1", "tok-1"))

		booking, replayed, err := f.svc.CreateBooking(ctx, f.cmd("u1", "r1", "tok-1"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !replayed || booking.Status != model.BookingCancelled {
			t.Errorf("unexpected replay %+v", booking)
		}
		assertCalls(t, f.inv.Calls(), "request_hold")
	})

	t.Run("pending booking resumes the saga", func(t *testing.T) {
		f := newFixture(t)
		calls := 0
		f.inv.requestHoldFunc = func(_ context.Context, req gateway.HoldRequest) (model.HoldResult, error) {
			calls++
			if calls == 1 {
				return model.HoldResult{}, gateway.ErrUnavailable
			}
			return model.HoldResult{Outcome: model.HoldGranted, LockID: "lock-1"}, nil
		}

		_, _, err := f.svc.CreateBooking(ctx, f.cmd("u1", "r1", "tok-1"))
		assertCode(t, err, apperrors.CodeUpstreamUnavailable)

		booking, replayed, err := f.svc.CreateBooking(ctx, f.cmd("u1", "r1", "tok-1"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !replayed || booking.Status != model.BookingConfirmed {
			t.Errorf("expected resumed confirmation, got %+v", booking)
		}
		if f.repo.count() != 1 {
			t.Errorf("expected a single booking, got %d", f.repo.count())
		}
	})

	t.Run("token of another user is forbidden", func(t *testing.T) {
		f := newFixture(t)
		if _, _, err := f.svc.CreateBooking(ctx, f.cmd("u1", "r1", "tok-1")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, _, err := f.svc.CreateBooking(ctx, f.cmd("u2", "r1", "tok-1"))
		assertCode(t, err, apperrors.CodeForbidden)
	})

	t.Run("concurrent insert resolved by re-read", func(t *testing.T) {
		f := newFixture(t)
		f.repo.beforeCreate = func(b *model.Booking) {
			winner := *b
			winner.Status = model.BookingConfirmed
			winner.LockID = "lock-winner"
			f.repo.put(winner)
		}

		booking, replayed, err := f.svc.CreateBooking(ctx, f.cmd("u1", "r1", "tok-1"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !replayed || booking.LockID != "lock-winner" {
			t.Errorf("expected winner's booking, got %+v", booking)
		}
		assertCalls(t, f.inv.Calls())
	})
}

func TestCreateBooking_AutoSelect(t *testing.T) {
	ctx := context.Background()

	t.Run("picks first available room", func(t *testing.T) {
		f := newFixture(t)
		f.inv.listAvailableFunc = func(context.Context, model.DateRange, string) ([]model.AvailableRoom, error) {
			return []model.AvailableRoom{{RoomID: "r2"}, {RoomID: "r3", PriorBookingCount: 4}}, nil
		}

		booking, _, err := f.svc.CreateBooking(ctx, f.cmd("u1", "", "tok-1"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if booking.RoomID != "r2" {
			t.Errorf("expected r2, got %s", booking.RoomID)
		}
		assertCalls(t, f.inv.Calls(), "list_available", "request_hold", "confirm_hold")
	})

	t.Run("no room leaves no record", func(t *testing.T) {
		f := newFixture(t)
		f.inv.listAvailableFunc = func(context.Context, model.DateRange, string) ([]model.AvailableRoom, error) {
			return []model.AvailableRoom{}, nil
		}

		_, _, err := f.svc.CreateBooking(ctx, f.cmd("u1", "", "tok-1"))
		assertCode(t, err, apperrors.CodeRoomNotAvailable)
		assertCalls(t, f.inv.Calls(), "list_available")
		if f.repo.count() != 0 {
			t.Error("no booking expected")
		}
	})

	t.Run("listing failure is upstream unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.inv.listAvailableFunc = func(context.Context, model.DateRange, string) ([]model.AvailableRoom, error) {
			return nil, gateway.ErrUnavailable
		}

		_, _, err := f.svc.CreateBooking(ctx, f.cmd("u1", "", "tok-1"))
		assertCode(t, err, apperrors.CodeUpstreamUnavailable)
	})
}

func TestCreateBooking_GeneratesToken(t *testing.T) {
	f := newFixture(t)

	booking, _, err := f.svc.CreateBooking(context.Background(), f.cmd("u1", "r1", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.IdempotencyToken == "" {
		t.Error("expected generated idempotency token")
	}
}

func (f *fixture) confirmed(user string, startOffset int) *model.Booking {
	rng := days(f.now, startOffset, 2)
	return f.repo.put(model.Booking{
		UserID:           user,
		RoomID:           "r1",
		StartDate:        rng.Start,
		EndDate:          rng.End,
		Status:           model.BookingConfirmed,
		IdempotencyToken: primitive.NewObjectID().Hex(),
		LockID:           "lock-1",
		CreatedAt:        f.now,
	})
}

func (f *fixture) pending(user string, startOffset int) *model.Booking {
	rng := days(f.now, startOffset, 2)
	return f.repo.put(model.Booking{
		UserID:           user,
		RoomID:           "r1",
		StartDate:        rng.Start,
		EndDate:          rng.End,
		Status:           model.BookingPending,
		IdempotencyToken: primitive.NewObjectID().Hex(),
		CreatedAt:        f.now,
	})
}

func TestCancelBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("releases then cancels", func(t *testing.T) {
		f := newFixture(t)
		b := f.confirmed("u1", 10)
		var released string
		f.inv.releaseFunc = func(_ context.Context, token, _ string) error {
			released = token
			return nil
		}

		got, err := f.svc.CancelBooking(ctx, b.ID, "u1", "corr")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Status != model.BookingCancelled {
			t.Errorf("expected CANCELLED, got %s", got.Status)
		}
		if released != b.IdempotencyToken {
			t.Errorf("released %q, want %q", released, b.IdempotencyToken)
		}
		if f.repo.get(b.ID).Status != model.BookingCancelled {
			t.Error("stored booking not cancelled")
		}
		if types := f.publisher.Types(); len(types) != 1 || types[0] != events.TypeBookingCancelled {
			t.Errorf("unexpected events %v", types)
		}
	})

	t.Run("release failure keeps booking", func(t *testing.T) {
		f := newFixture(t)
		b := f.confirmed("u1", 10)
		f.inv.releaseFunc = func(context.Context, string, string) error {
			return gateway.ErrUnavailable
		}

		_, err := f.svc.CancelBooking(ctx, b.ID, "u1", "corr")
		assertCode(t, err, apperrors.CodeUpstreamUnavailable)
		if f.repo.get(b.ID).Status != model.BookingConfirmed {
			t.Error("booking must stay CONFIRMED")
		}
	})

	t.Run("pending booking confirmed during release ends cancelled", func(t *testing.T) {
		f := newFixture(t)
		b := f.pending("u1", 10)
		f.inv.releaseFunc = func(ctx context.Context, _, _ string) error {
			return f.repo.Transition(ctx, b.ID, model.BookingPending, model.BookingConfirmed, repository.StatusUpdate{LockID: "lock-9"})
		}

		got, err := f.svc.CancelBooking(ctx, b.ID, "u1", "corr")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Status != model.BookingCancelled {
			t.Errorf("returned status = %s, want CANCELLED", got.Status)
		}
		if stored := f.repo.get(b.ID); stored.Status != model.BookingCancelled {
			t.Errorf("stored status = %s, want CANCELLED", stored.Status)
		}
		if types := f.publisher.Types(); len(types) != 1 || types[0] != events.TypeBookingCancelled {
			t.Errorf("unexpected events %v", types)
		}
	})

	t.Run("pending booking failed during release is returned cancelled", func(t *testing.T) {
		f := newFixture(t)
		b := f.pending("u1", 10)
		f.inv.releaseFunc = func(ctx context.Context, _, _ string) error {
			return f.repo.Transition(ctx, b.ID, model.BookingPending, model.BookingCancelled, repository.StatusUpdate{FailureReason: reasonConfirmFailed})
		}

		got, err := f.svc.CancelBooking(ctx, b.ID, "u1", "corr")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Status != model.BookingCancelled || got.FailureReason != reasonConfirmFailed {
			t.Errorf("got %s (%s), want saga cancellation", got.Status, got.FailureReason)
		}
		if types := f.publisher.Types(); len(types) != 0 {
			t.Errorf("unexpected events %v", types)
		}
	})

	guards := []struct {
		name  string
		setup func(f *fixture) (id, user string)
		code  string
	}{
		{
			name: "unknown booking",
			setup: func(f *fixture) (string, string) {
				return primitive.NewObjectID().Hex(), "u1"
			},
			code: apperrors.CodeNotFound,
		},
		{
			name: "malformed id",
			setup: func(f *fixture) (string, string) {
				return "not-an-id", "u1"
			},
			code: apperrors.CodeNotFound,
		},
		{
			name: "other user",
			setup: func(f *fixture) (string, string) {
				return f.confirmed("u1", 10).ID, "u2"
			},
			code: apperrors.CodeForbidden,
		},
		{
			name: "already cancelled",
			setup: func(f *fixture) (string, string) {
				b := f.confirmed("u1", 10)
				f.repo.mu.Lock()
				f.repo.bookings[b.ID].Status = model.BookingCancelled
				f.repo.mu.Unlock()
				return b.ID, "u1"
			},
			code: apperrors.CodeInvalidState,
		},
		{
			name: "starts within cutoff",
			setup: func(f *fixture) (string, string) {
				return f.confirmed("u1", 1).ID, "u1"
			},
			code: apperrors.CodeInvalidState,
		},
		{
			name: "starts exactly at cutoff",
			setup: func(f *fixture) (string, string) {
				f.now = model.Day(f.now)
				return f.confirmed("u1", 1).ID, "u1"
			},
			code: apperrors.CodeInvalidState,
		},
	}

	for _, tt := range guards {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			id, user := tt.setup(f)

			_, err := f.svc.CancelBooking(ctx, id, user, "corr")
			assertCode(t, err, tt.code)
			assertCalls(t, f.inv.Calls())
		})
	}
}

func TestGetBooking(t *testing.T) {
	f := newFixture(t)
	b := f.confirmed("u1", 10)

	got, err := f.svc.GetBooking(context.Background(), b.ID, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != b.ID {
		t.Errorf("got %s, want %s", got.ID, b.ID)
	}

	_, err = f.svc.GetBooking(context.Background(), b.ID, "u2")
	assertCode(t, err, apperrors.CodeForbidden)

	_, err = f.svc.GetBooking(context.Background(), "", "u1")
	assertCode(t, err, apperrors.CodeInvalidInput)
}

func TestListBookings(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		b := f.confirmed("u1", 10+i)
		f.repo.mu.Lock()
		f.repo.bookings[b.ID].CreatedAt = f.now.Add(time.Duration(i) * time.Minute)
		f.repo.mu.Unlock()
	}
	f.confirmed("u2", 10)

	bookings, total, err := f.svc.ListBookings(context.Background(), "u1", 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(bookings) != 2 {
		t.Fatalf("expected 2 bookings, got %d", len(bookings))
	}
	if !bookings[0].CreatedAt.After(bookings[1].CreatedAt) {
		t.Error("expected newest first")
	}
	for _, b := range bookings {
		if b.UserID != "u1" {
			t.Errorf("listed booking of %s", b.UserID)
		}
	}
}

func TestListBookings_RepositoryError(t *testing.T) {
	f := newFixture(t)
	f.svc.repo = &failingCountRepository{memoryRepository: f.repo}

	_, _, err := f.svc.ListBookings(context.Background(), "u1", 10, 0)
	assertCode(t, err, apperrors.CodeInternal)
}

type failingCountRepository struct {
	*memoryRepository
}

func (r *failingCountRepository) CountByUser(context.Context, string) (int64, error) {
	return 0, errors.New("connection reset")
}
