package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"caretrail/internal/audit/models"
	id "caretrail/pkg/domain"
	dErrors "caretrail/pkg/domain-errors"
)

type listParams struct {
	filter models.ListFilter
	page   int
	limit  int
}

type reviewRequest struct {
	ReviewedBy string `json:"reviewedBy"`
}

// parseListParams builds the ANDed predicate set from query parameters.
// Unknown enum values and malformed dates are rejected rather than ignored.
func parseListParams(r *http.Request) (listParams, error) {
	q := r.URL.Query()
	params := listParams{page: 1, limit: 0}

	var err error
	if params.page, err = parseIntParam(q.Get("page"), 1); err != nil {
		return params, dErrors.New(dErrors.CodeInvalidInput, "page must be a positive integer")
	}
	if params.limit, err = parseIntParam(q.Get("limit"), 0); err != nil {
		return params, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer")
	}

	if raw := q.Get("action"); raw != "" {
		action, err := models.ParseAction(raw)
		if err != nil {
			return params, err
		}
		params.filter.Action = &action
	}
	if raw := q.Get("entityType"); raw != "" {
		entityType, err := models.ParseEntityType(raw)
		if err != nil {
			return params, err
		}
		params.filter.EntityType = &entityType
	}
	if raw := q.Get("userId"); raw != "" {
		userID, err := id.ParseUserID(raw)
		if err != nil {
			return params, err
		}
		params.filter.UserID = &userID
	}

	if params.filter.StartDate, err = parseTimeParam(q.Get("startDate")); err != nil {
		return params, err
	}
	if params.filter.EndDate, err = parseTimeParam(q.Get("endDate")); err != nil {
		return params, err
	}
	if params.filter.StartDate != nil && params.filter.EndDate != nil &&
		!params.filter.StartDate.Before(*params.filter.EndDate) {
		return params, dErrors.New(dErrors.CodeInvalidInput, "startDate must be before endDate")
	}

	if params.filter.IsSuspicious, err = parseBoolParam(q.Get("isSuspicious"), "isSuspicious"); err != nil {
		return params, err
	}
	if params.filter.IsSensitive, err = parseBoolParam(q.Get("isSensitive"), "isSensitive"); err != nil {
		return params, err
	}
	if params.filter.RequiresReview, err = parseBoolParam(q.Get("requiresReview"), "requiresReview"); err != nil {
		return params, err
	}

	params.filter.Search = q.Get("search")
	return params, nil
}

func parseStatisticsParams(r *http.Request) (start, end *time.Time, err error) {
	q := r.URL.Query()
	if start, err = parseTimeParam(q.Get("startDate")); err != nil {
		return nil, nil, err
	}
	if end, err = parseTimeParam(q.Get("endDate")); err != nil {
		return nil, nil, err
	}
	return start, end, nil
}

func parseIntParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("not a positive integer")
	}
	return n, nil
}

// parseTimeParam accepts RFC 3339 timestamps and bare dates. A bare date
// means midnight UTC, which pairs with the exclusive end bound to give
// natural day ranges.
func parseTimeParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}
	return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid timestamp %q, want RFC 3339 or YYYY-MM-DD", raw)
}

func parseBoolParam(raw, name string) (*bool, error) {
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must be true or false", name)
	}
	return &b, nil
}

// decodeOptionalBody tolerates an absent or empty body but rejects malformed
// JSON.
func decodeOptionalBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return dErrors.New(dErrors.CodeInvalidInput, "invalid request body")
}
