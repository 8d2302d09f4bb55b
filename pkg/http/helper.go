package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"roomsaga/pkg/config"
	apperrors "roomsaga/pkg/errors"
	"roomsaga/pkg/model"
	"strconv"
)

const (
	HeaderUserID         = "X-User-ID"
	HeaderCorrelationID  = "X-Correlation-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

func ExtractLimitOffset(r *http.Request) (int, int64, error) {
	query := r.URL.Query()

	limit := 0
	if s := query.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid limit parameter: " + s)
		}
		limit = v
	}

	var offset int64 = 0
	if s := query.Get("offset"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, 0, apperrors.InvalidInput("invalid offset parameter: " + s)
		}
		offset = v
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return limit, offset, nil
}

// ExtractDateRange reads start_date and end_date query parameters.
func ExtractDateRange(r *http.Request) (model.DateRange, error) {
	query := r.URL.Query()
	start, end := query.Get("start_date"), query.Get("end_date")
	if start == "" || end == "" {
		return model.DateRange{}, apperrors.InvalidInput("start_date and end_date query parameters are required")
	}

	rng, err := model.ParseDateRange(start, end)
	if err != nil {
		return model.DateRange{}, apperrors.InvalidInput(err.Error())
	}
	if !rng.Valid() {
		return model.DateRange{}, apperrors.InvalidInput("start_date must be before end_date")
	}
	return rng, nil
}

// DecodeJSON decodes the request body into v. An empty body is an error.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.InvalidInput("Request body cannot be empty")
		}
		return apperrors.InvalidInput("Invalid JSON format")
	}
	return nil
}

// UserID returns the caller identity set by the authentication layer.
func UserID(r *http.Request) (string, error) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		return "", apperrors.Unauthorized("Missing " + HeaderUserID + " header")
	}
	return userID, nil
}
