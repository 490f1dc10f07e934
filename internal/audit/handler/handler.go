// Package handler exposes the audit trail over HTTP for the operations
// dashboard. All routes require an authenticated tenant context.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"caretrail/internal/audit/models"
	"caretrail/internal/transport/http/shared"
	id "caretrail/pkg/domain"
	dErrors "caretrail/pkg/domain-errors"
	"caretrail/pkg/requestcontext"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

// Service is the slice of the audit engine the HTTP layer needs.
type Service interface {
	List(ctx context.Context, filter models.ListFilter, page, limit int) (*models.Page, error)
	Get(ctx context.Context, recordID id.RecordID) (*models.AuditRecord, error)
	Statistics(ctx context.Context, start, end *time.Time) (*models.Statistics, error)
	MarkReviewed(ctx context.Context, recordID id.RecordID, reviewer id.UserID) (*models.AuditRecord, error)
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the audit routes onto r. The caller applies auth.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/audit-logs", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/statistics", h.handleStatistics)
		r.Get("/{id}", h.handleGet)
		r.Post("/{id}/review", h.handleReview)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	page, err := h.service.List(r.Context(), params.filter, params.page, params.limit)
	if err != nil {
		h.logError(r, "list audit records", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toPageResponse(page))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	recordID, err := id.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	record, err := h.service.Get(r.Context(), recordID)
	if err != nil {
		h.logError(r, "get audit record", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseStatisticsParams(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	stats, err := h.service.Statistics(r.Context(), start, end)
	if err != nil {
		h.logError(r, "aggregate audit statistics", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toStatisticsResponse(stats))
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	recordID, err := id.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	reviewer, err := reviewerFrom(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	record, err := h.service.MarkReviewed(r.Context(), recordID, reviewer)
	if err != nil {
		h.logError(r, "mark audit record reviewed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

// reviewerFrom resolves review attribution. An explicit reviewedBy in the
// body wins, so an operator console can review on a supervisor's behalf;
// otherwise the authenticated actor is the reviewer.
func reviewerFrom(r *http.Request) (id.UserID, error) {
	var body reviewRequest
	if err := decodeOptionalBody(r, &body); err != nil {
		return id.UserID{}, err
	}
	if body.ReviewedBy != "" {
		return id.ParseUserID(body.ReviewedBy)
	}

	reviewer := requestcontext.UserID(r.Context())
	if reviewer.IsNil() {
		return id.UserID{}, dErrors.New(dErrors.CodeInvalidInput, "reviewer is required")
	}
	return reviewer, nil
}

func (h *Handler) logError(r *http.Request, op string, err error) {
	// Client-caused failures are visible in the access log already.
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeUnavailable || code == dErrors.CodeInternal {
		h.logger.ErrorContext(r.Context(), op+" failed",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(r.Context()),
		)
	}
}
