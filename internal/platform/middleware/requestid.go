package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"caretrail/pkg/requestcontext"
)

const requestIDHeader = "X-Request-Id"

// RequestID propagates the caller's correlation ID or mints one, making every
// log line and error traceable to a single request.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
