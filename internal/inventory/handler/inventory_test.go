package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"roomsaga/internal/inventory/validator"
	apperrors "roomsaga/pkg/errors"
	"roomsaga/pkg/logger"
	"roomsaga/pkg/middleware"
	"roomsaga/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockLockService struct {
	requestHoldFunc   func(ctx context.Context, roomID string, rng model.DateRange, token, correlationID string) (model.HoldResult, error)
	confirmHoldFunc   func(ctx context.Context, lockID, correlationID string) (model.ConfirmOutcome, error)
	releaseFunc       func(ctx context.Context, token, correlationID string) error
	listAvailableFunc func(ctx context.Context, rng model.DateRange, correlationID string) ([]model.AvailableRoom, error)
}

func (m *mockLockService) RegisterRoom(ctx context.Context, req *model.CreateRoomRequest) (*model.Room, error) {
	return &model.Room{ID: req.ID, Available: true}, nil
}

func (m *mockLockService) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	return nil, apperrors.RoomNotFound(id)
}

func (m *mockLockService) RequestHold(ctx context.Context, roomID string, rng model.DateRange, token, correlationID string) (model.HoldResult, error) {
	if m.requestHoldFunc != nil {
		return m.requestHoldFunc(ctx, roomID, rng, token, correlationID)
	}
	return model.HoldResult{Outcome: model.HoldGranted, LockID: "lock-1"}, nil
}

func (m *mockLockService) ConfirmHold(ctx context.Context, lockID, correlationID string) (model.ConfirmOutcome, error) {
	if m.confirmHoldFunc != nil {
		return m.confirmHoldFunc(ctx, lockID, correlationID)
	}
	return model.ConfirmConfirmed, nil
}

func (m *mockLockService) Release(ctx context.Context, token, correlationID string) error {
	if m.releaseFunc != nil {
		return m.releaseFunc(ctx, token, correlationID)
	}
	return nil
}

func (m *mockLockService) ListAvailable(ctx context.Context, rng model.DateRange, correlationID string) ([]model.AvailableRoom, error) {
	if m.listAvailableFunc != nil {
		return m.listAvailableFunc(ctx, rng, correlationID)
	}
	return []model.AvailableRoom{}, nil
}

func (m *mockLockService) GetLock(ctx context.Context, id string) (*model.RoomLock, error) {
	return nil, apperrors.NotFoundWithID("Room lock", id)
}

func newTestRouter(svc *mockLockService) http.Handler {
	log := logger.Discard()
	h := NewInventoryHandler(svc, validator.NewInventoryValidator(log), log)
	router := httprouter.New()
	h.RegisterRoutes(router)
	return middleware.Correlation()(router)
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestRequestHold_PassesParameters(t *testing.T) {
	var gotRoom, gotToken, gotCorrelation string
	var gotRange model.DateRange
	svc := &mockLockService{
		requestHoldFunc: func(_ context.Context, roomID string, rng model.DateRange, token, correlationID string) (model.HoldResult, error) {
			gotRoom, gotRange, gotToken, gotCorrelation = roomID, rng, token, correlationID
			return model.HoldResult{Outcome: model.HoldGranted, LockID: "lock-9"}, nil
		},
	}

	body := `{"start_date":"2026-02-01","end_date":"2026-02-05","idempotency_token":"tok-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms/id/r1/holds", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderCorrelationID, "corr-7")
	w := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if gotRoom != "r1" || gotToken != "tok-1" || gotCorrelation != "corr-7" {
		t.Errorf("service got room=%s token=%s corr=%s", gotRoom, gotToken, gotCorrelation)
	}
	if gotRange.String() != "[2026-02-01, 2026-02-05)" {
		t.Errorf("range = %s", gotRange)
	}

	var result model.HoldResult
	decodeData(t, w, &result)
	if result.Outcome != model.HoldGranted || result.LockID != "lock-9" {
		t.Errorf("result = %+v", result)
	}
}

func TestRequestHold_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{"invalid json", `{`, nil, http.StatusBadRequest, apperrors.CodeInvalidInput},
		{"missing token", `{"start_date":"2026-02-01","end_date":"2026-02-05"}`, nil, http.StatusUnprocessableEntity, apperrors.CodeValidation},
		{"reversed range", `{"start_date":"2026-02-05","end_date":"2026-02-01","idempotency_token":"t"}`, nil, http.StatusUnprocessableEntity, apperrors.CodeValidation},
		{"unknown room", `{"start_date":"2026-02-01","end_date":"2026-02-05","idempotency_token":"t"}`, apperrors.RoomNotFound("r1"), http.StatusNotFound, apperrors.CodeRoomNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockLockService{
				requestHoldFunc: func(context.Context, string, model.DateRange, string, string) (model.HoldResult, error) {
					return model.HoldResult{}, tt.svcErr
				},
			}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms/id/r1/holds", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			newTestRouter(svc).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			var body apperrors.ErrorResponse
			_ = json.NewDecoder(w.Body).Decode(&body)
			if body.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", body.Code, tt.wantCode)
			}
		})
	}
}

func TestConfirmHold(t *testing.T) {
	tests := []struct {
		name       string
		outcome    model.ConfirmOutcome
		wantStatus int
	}{
		{"confirmed", model.ConfirmConfirmed, http.StatusOK},
		{"expired", model.ConfirmExpired, http.StatusOK},
		{"not found", model.ConfirmNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockLockService{
				confirmHoldFunc: func(_ context.Context, lockID, _ string) (model.ConfirmOutcome, error) {
					if lockID != "lock-1" {
						t.Errorf("lock id = %s", lockID)
					}
					return tt.outcome, nil
				},
			}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/holds/id/lock-1/confirm", nil)
			w := httptest.NewRecorder()
			newTestRouter(svc).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				var result model.ConfirmResult
				decodeData(t, w, &result)
				if result.Outcome != tt.outcome {
					t.Errorf("outcome = %s, want %s", result.Outcome, tt.outcome)
				}
			}
		})
	}
}

func TestRelease(t *testing.T) {
	var gotToken string
	svc := &mockLockService{
		releaseFunc: func(_ context.Context, token, _ string) error {
			gotToken = token
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/holds/token/tok-42", nil)
	w := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if gotToken != "tok-42" {
		t.Errorf("token = %s", gotToken)
	}
}

func TestListAvailable(t *testing.T) {
	svc := &mockLockService{
		listAvailableFunc: func(_ context.Context, rng model.DateRange, _ string) ([]model.AvailableRoom, error) {
			return []model.AvailableRoom{{RoomID: "r2"}, {RoomID: "r1", PriorBookingCount: 3}}, nil
		},
	}

	t.Run("ordered list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms/available?start_date=2026-02-01&end_date=2026-02-03", nil)
		w := httptest.NewRecorder()
		newTestRouter(svc).ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var rooms []model.AvailableRoom
		decodeData(t, w, &rooms)
		if len(rooms) != 2 || rooms[0].RoomID != "r2" {
			t.Errorf("rooms = %+v", rooms)
		}
	})

	t.Run("missing range", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms/available", nil)
		w := httptest.NewRecorder()
		newTestRouter(svc).ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
	})
}

func TestRoomEndpoints(t *testing.T) {
	router := newTestRouter(&mockLockService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms", strings.NewReader(`{"id":"r1"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/rooms/id/ghost", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get status = %d, want 404", w.Code)
	}
}
