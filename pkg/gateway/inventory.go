package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"roomsaga/pkg/client"
	"roomsaga/pkg/model"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrUnavailable marks transport failures, timeouts and unexpected responses.
// The outcome of the call is unknown and the caller may retry with the same token.
var ErrUnavailable = errors.New("inventory unavailable")

const (
	headerCorrelationID = "X-Correlation-ID"
	codeRoomNotFound    = "ROOM_NOT_FOUND"
	tracerName          = "roomsaga/gateway"
)

type HoldRequest struct {
	RoomID        string
	Range         model.DateRange
	Token         string
	CorrelationID string
}

// Inventory is the booking side's view of the inventory service.
type Inventory interface {
	RequestHold(ctx context.Context, req HoldRequest) (model.HoldResult, error)
	ConfirmHold(ctx context.Context, lockID, correlationID string) (model.ConfirmOutcome, error)
	Release(ctx context.Context, token, correlationID string) error
	ListAvailable(ctx context.Context, rng model.DateRange, correlationID string) ([]model.AvailableRoom, error)
}

type HTTPInventory struct {
	client  *client.HttpClient
	timeout time.Duration
	tracer  trace.Tracer
}

func NewHTTPInventory(baseURL string, timeout time.Duration) *HTTPInventory {
	return &HTTPInventory{
		client:  client.NewHttpClient(baseURL),
		timeout: timeout,
		tracer:  otel.Tracer(tracerName),
	}
}

type envelope[T any] struct {
	Data T `json:"data"`
}

func (g *HTTPInventory) RequestHold(ctx context.Context, req HoldRequest) (model.HoldResult, error) {
	ctx, span, cancel := g.start(ctx, "RequestHold", attribute.String("room.id", req.RoomID))
	defer cancel()
	defer span.End()

	body := model.HoldRequest{
		StartDate:        req.Range.Start.Format(model.DateLayout),
		EndDate:          req.Range.End.Format(model.DateLayout),
		IdempotencyToken: req.Token,
	}
	resp, err := g.client.POST(ctx, "/api/v1/rooms/id/"+url.PathEscape(req.RoomID)+"/holds", body, correlationHeader(req.CorrelationID))
	if err != nil {
		return model.HoldResult{}, fail(span, "request hold", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var out envelope[model.HoldResult]
		if err := resp.DecodeJSON(&out); err != nil {
			return model.HoldResult{}, fail(span, "request hold", err)
		}
		span.SetAttributes(attribute.String("hold.outcome", string(out.Data.Outcome)))
		return out.Data, nil
	case resp.StatusCode == http.StatusNotFound && client.GetErrorCode(resp) == codeRoomNotFound:
		return model.HoldResult{Outcome: model.HoldRoomNotFound}, nil
	default:
		return model.HoldResult{}, fail(span, "request hold", unexpected(resp))
	}
}

func (g *HTTPInventory) ConfirmHold(ctx context.Context, lockID, correlationID string) (model.ConfirmOutcome, error) {
	ctx, span, cancel := g.start(ctx, "ConfirmHold", attribute.String("lock.id", lockID))
	defer cancel()
	defer span.End()

	resp, err := g.client.POST(ctx, "/api/v1/holds/id/"+url.PathEscape(lockID)+"/confirm", nil, correlationHeader(correlationID))
	if err != nil {
		return "", fail(span, "confirm hold", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var out envelope[model.ConfirmResult]
		if err := resp.DecodeJSON(&out); err != nil {
			return "", fail(span, "confirm hold", err)
		}
		span.SetAttributes(attribute.String("confirm.outcome", string(out.Data.Outcome)))
		return out.Data.Outcome, nil
	case http.StatusNotFound:
		return model.ConfirmNotFound, nil
	default:
		return "", fail(span, "confirm hold", unexpected(resp))
	}
}

func (g *HTTPInventory) Release(ctx context.Context, token, correlationID string) error {
	ctx, span, cancel := g.start(ctx, "Release")
	defer cancel()
	defer span.End()

	resp, err := g.client.DELETE(ctx, "/api/v1/holds/token/"+url.PathEscape(token), correlationHeader(correlationID))
	if err != nil {
		return fail(span, "release", err)
	}
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fail(span, "release", unexpected(resp))
	}
	return nil
}

func (g *HTTPInventory) ListAvailable(ctx context.Context, rng model.DateRange, correlationID string) ([]model.AvailableRoom, error) {
	ctx, span, cancel := g.start(ctx, "ListAvailable")
	defer cancel()
	defer span.End()

	query := url.Values{}
	query.Set("start_date", rng.Start.Format(model.DateLayout))
	query.Set("end_date", rng.End.Format(model.DateLayout))

	resp, err := g.client.GET(ctx, "/api/v1/rooms/available?"+query.Encode(), correlationHeader(correlationID))
	if err != nil {
		return nil, fail(span, "list available", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fail(span, "list available", unexpected(resp))
	}

	var out envelope[[]model.AvailableRoom]
	if err := resp.DecodeJSON(&out); err != nil {
		return nil, fail(span, "list available", err)
	}
	return out.Data, nil
}

func (g *HTTPInventory) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	ctx, span := g.tracer.Start(ctx, "inventory."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, span, cancel
}

func correlationHeader(correlationID string) map[string]string {
	return map[string]string{headerCorrelationID: correlationID}
}

func unexpected(resp *client.Response) error {
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, client.GetErrorMessage(resp))
}

func fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
