// Package models holds the audit trail's value types. The record is an
// append-only ledger entry: once appended, only the review annotation and
// UpdatedAt may change.
package models

import (
	"time"

	id "caretrail/pkg/domain"
)

// ReviewPhase is the record's position in the review workflow.
type ReviewPhase string

const (
	// ReviewNotRequired is terminal: the record never enters review.
	ReviewNotRequired ReviewPhase = "NOT_REQUIRED"
	// ReviewPending means a reviewer must look at the record.
	ReviewPending ReviewPhase = "PENDING_REVIEW"
	// ReviewReviewed means exactly one reviewer has annotated the record.
	ReviewReviewed ReviewPhase = "REVIEWED"
)

// ReviewState is the tagged variant behind the dashboard's flat
// {requiresReview, reviewedBy, reviewedAt} shape. ReviewedBy/ReviewedAt are
// populated iff Phase == ReviewReviewed.
type ReviewState struct {
	Phase      ReviewPhase
	ReviewedBy *id.UserID
	ReviewedAt *time.Time
}

// RequiresReview reports the flat boolean the external contract exposes.
func (s ReviewState) RequiresReview() bool {
	return s.Phase != ReviewNotRequired
}

// Classification is the write-time derivation attached to every record.
// RiskScore is advisory, used only for sort/priority, never as a hard gate.
type Classification struct {
	IsSensitive    bool
	IsSuspicious   bool
	RequiresReview bool
	RiskScore      int
	// Reasons names the heuristics that fired, for the reviewer's benefit.
	Reasons []string
}

// AuditRecord is the sole entity of the subsystem.
//
// Invariants:
//   - every field except Review and UpdatedAt is immutable once appended
//   - IsSuspicious implies Review.RequiresReview()
//   - Review stays NOT_REQUIRED forever when classification said so
//   - records are never deleted by this subsystem
type AuditRecord struct {
	ID       id.RecordID
	TenantID id.TenantID

	// Seq is a per-process monotonically increasing insertion sequence.
	// It breaks ties between records created in the same millisecond so
	// per-actor causal order survives pagination.
	Seq uint64

	// Actor.
	UserID id.UserID
	Email  string
	Role   string

	// Action context.
	Action      Action
	EntityType  EntityType
	EntityID    string
	Description string

	// Request context.
	Method     string
	Endpoint   string
	StatusCode int
	DurationMs int64

	// Client context.
	IPAddress string
	UserAgent string
	Device    string
	Browser   string
	Location  string

	// Change payload, redacted at ingestion. Keys survive redaction; only
	// values of sensitive fields are replaced.
	OldValues map[string]any
	NewValues map[string]any
	Metadata  map[string]any

	// Derived flags.
	IsSensitive  bool
	IsSuspicious bool
	RiskScore    int
	RiskReasons  []string

	Review ReviewState

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RequiresReview is a convenience over the review variant.
func (r *AuditRecord) RequiresReview() bool { return r.Review.RequiresReview() }

// ApplyClassification stamps the derived flags onto a record being built.
func (r *AuditRecord) ApplyClassification(c Classification) {
	r.IsSensitive = c.IsSensitive
	r.IsSuspicious = c.IsSuspicious
	r.RiskScore = c.RiskScore
	r.RiskReasons = c.Reasons
	if c.RequiresReview {
		r.Review = ReviewState{Phase: ReviewPending}
	} else {
		r.Review = ReviewState{Phase: ReviewNotRequired}
	}
}

// MarkReviewed transitions the review variant. It is pure state accounting;
// stores are responsible for making the transition atomic.
func (r *AuditRecord) MarkReviewed(reviewer id.UserID, at time.Time) {
	r.Review = ReviewState{
		Phase:      ReviewReviewed,
		ReviewedBy: &reviewer,
		ReviewedAt: &at,
	}
	r.UpdatedAt = at
}
