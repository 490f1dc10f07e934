package middleware

import (
	"net/http"
	"time"

	"caretrail/pkg/requestcontext"
)

// RequestTime pins one clock reading per request so every service touched by
// the same request observes the same "now".
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
