package models

import (
	"time"

	id "caretrail/pkg/domain"
)

// ListFilter is the ANDed predicate set for paginated retrieval. All fields
// are optional; nil means "don't constrain". Tenant scope is deliberately
// absent: it comes from the caller's authenticated context, never a filter.
type ListFilter struct {
	Action     *Action
	EntityType *EntityType
	UserID     *id.UserID

	// StartDate is inclusive, EndDate exclusive.
	StartDate *time.Time
	EndDate   *time.Time

	IsSuspicious   *bool
	IsSensitive    *bool
	RequiresReview *bool

	// Search is a case-insensitive substring match over description, email,
	// entity ID and action.
	Search string
}

// Matches evaluates the predicate set against one record. Stores that cannot
// push predicates down (the in-memory store) use it directly; the SQL store
// mirrors it in WHERE clauses, and tests hold the two to the same answers.
func (f ListFilter) Matches(r *AuditRecord) bool {
	if f.Action != nil && r.Action != *f.Action {
		return false
	}
	if f.EntityType != nil && r.EntityType != *f.EntityType {
		return false
	}
	if f.UserID != nil && r.UserID != *f.UserID {
		return false
	}
	if f.StartDate != nil && r.CreatedAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && !r.CreatedAt.Before(*f.EndDate) {
		return false
	}
	if f.IsSuspicious != nil && r.IsSuspicious != *f.IsSuspicious {
		return false
	}
	if f.IsSensitive != nil && r.IsSensitive != *f.IsSensitive {
		return false
	}
	if f.RequiresReview != nil && r.RequiresReview() != *f.RequiresReview {
		return false
	}
	if f.Search != "" && !matchesSearch(r, f.Search) {
		return false
	}
	return true
}

// Page is one page of filtered results plus the total over the same
// predicate set.
type Page struct {
	Items []*AuditRecord
	Total int
	Page  int
	Limit int
	Pages int
}

// Statistics is the windowed aggregate shape consumed by the dashboard.
// Grouping runs over the same (tenant, time-range) predicate List would use,
// so sum(ByAction) == TotalLogs == sum(ByEntityType) always holds.
type Statistics struct {
	TotalLogs            int
	ByAction             map[Action]int
	ByEntityType         map[EntityType]int
	SuspiciousCount      int
	SensitiveAccessCount int
}
