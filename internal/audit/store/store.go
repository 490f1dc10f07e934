// Package store defines the persistence ports of the audit trail. The ledger
// is append-only: besides Append, the only mutation any implementation may
// expose is the one-shot review annotation.
package store

import (
	"context"
	"time"

	"caretrail/internal/audit/classify"
	"caretrail/internal/audit/models"
	id "caretrail/pkg/domain"
)

// Store is the log store port. Implementations return sentinel errors
// (pkg/platform/sentinel) for resource facts; services translate them.
//
// Every read and the review mutation is tenant-scoped: a record is not
// reachable through the wrong tenant, not merely filtered out.
type Store interface {
	// Append persists a fully-built record. The record's ID, timestamps,
	// sequence and classification are already assigned by the caller.
	Append(ctx context.Context, record *models.AuditRecord) error

	// Get returns one record within the tenant's scope.
	Get(ctx context.Context, tenantID id.TenantID, recordID id.RecordID) (*models.AuditRecord, error)

	// AnnotateReview atomically transitions PENDING_REVIEW to REVIEWED,
	// touching only the review sub-object and UpdatedAt. It compares
	// against the current state: a record that is already reviewed or was
	// never review-required yields sentinel.ErrConflict.
	AnnotateReview(ctx context.Context, tenantID id.TenantID, recordID id.RecordID, reviewer id.UserID, at time.Time) (*models.AuditRecord, error)

	// List returns one page of records matching the ANDed filter, newest
	// first with the insertion sequence as tiebreaker, plus the total over
	// the same predicate set.
	List(ctx context.Context, tenantID id.TenantID, filter models.ListFilter, page, limit int) (*models.Page, error)

	// Statistics aggregates over the same (tenant, time-range) predicate
	// List would use. Cost scales with the selected range, not with total
	// tenant history.
	Statistics(ctx context.Context, tenantID id.TenantID, start, end *time.Time) (*models.Statistics, error)

	// CountRecent is the classifier's bounded history lookback.
	CountRecent(ctx context.Context, tenantID id.TenantID, q classify.HistoryQuery) (int, error)
}

// Store implementations double as the classifier's history port.
var _ classify.HistoryPort = (Store)(nil)
