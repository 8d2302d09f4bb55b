package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const HeaderCorrelationID = "X-Correlation-ID"

const maxCorrelationIDLength = 128

// Correlation reads X-Correlation-ID, generating one when it is missing or
// oversized, stores it in the request context and echoes it on the response.
func Correlation() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderCorrelationID)
			if id == "" || len(id) > maxCorrelationIDLength {
				id = uuid.New().String()
			}

			w.Header().Set(HeaderCorrelationID, id)
			ctx := context.WithValue(r.Context(), CorrelationIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}
