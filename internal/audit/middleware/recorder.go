// Package middleware adapts authenticated HTTP traffic into audit events.
// Domain services own their rich events; this recorder is the fallback that
// guarantees mutations and sensitive reads leave a trace even when a handler
// forgets to emit one.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"caretrail/internal/audit/models"
	"caretrail/pkg/requestcontext"
)

// Ingestor is the slice of the audit service the recorder needs.
type Ingestor interface {
	Ingest(ctx context.Context, ev models.RawEvent) (*models.AuditRecord, error)
}

// Route maps a path prefix to the entity type its resources represent.
type Route struct {
	Prefix     string
	EntityType models.EntityType
}

// Recorder emits one audit event per matched request, after the response is
// written. Emission is best effort: Ingest absorbs its own failures, and the
// recorder never alters the response.
type Recorder struct {
	ingestor Ingestor
	logger   *slog.Logger
	routes   []Route
}

func NewRecorder(ingestor Ingestor, logger *slog.Logger, routes []Route) *Recorder {
	return &Recorder{ingestor: ingestor, logger: logger, routes: routes}
}

func (rec *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entityType, matched := rec.match(r.URL.Path)
		if !matched {
			next.ServeHTTP(w, r)
			return
		}

		sw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)

		ctx := r.Context()
		if requestcontext.TenantID(ctx).IsNil() {
			// Unauthenticated requests carry no tenant scope to record under.
			return
		}

		ev := models.RawEvent{
			TenantID:    requestcontext.TenantID(ctx),
			UserID:      requestcontext.UserID(ctx),
			Email:       requestcontext.Email(ctx),
			Role:        requestcontext.Role(ctx),
			Action:      actionFor(r.Method),
			EntityType:  entityType,
			EntityID:    entityIDFromPath(r.URL.Path),
			Method:      r.Method,
			Endpoint:    r.URL.Path,
			StatusCode:  sw.status,
			DurationMs:  time.Since(start).Milliseconds(),
			IPAddress:   requestcontext.ClientIP(ctx),
			UserAgent:   requestcontext.UserAgent(ctx),
		}

		if _, err := rec.ingestor.Ingest(ctx, ev); err != nil {
			rec.logger.WarnContext(ctx, "request audit emission rejected",
				"error", err.Error(),
				"endpoint", r.URL.Path,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	})
}

func (rec *Recorder) match(path string) (models.EntityType, bool) {
	for _, route := range rec.routes {
		if strings.HasPrefix(path, route.Prefix) {
			return route.EntityType, true
		}
	}
	return "", false
}

// actionFor maps the HTTP verb onto the audit action vocabulary. Actions the
// verb cannot express (LOGIN_FAILED, EXPORT, ...) come from domain services
// emitting their own events.
func actionFor(method string) models.Action {
	switch method {
	case http.MethodPost:
		return models.ActionCreate
	case http.MethodPut, http.MethodPatch:
		return models.ActionUpdate
	case http.MethodDelete:
		return models.ActionDelete
	default:
		return models.ActionRead
	}
}

// entityIDFromPath pulls the trailing path segment when it looks like a
// resource ID rather than a collection or verb segment.
func entityIDFromPath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 2 {
		return ""
	}
	last := segments[len(segments)-1]
	if strings.Contains(last, "-") && len(last) >= 32 {
		return last
	}
	return ""
}

type captureWriter struct {
	http.ResponseWriter
	status int
}

func (w *captureWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
