package models

import (
	"time"

	id "caretrail/pkg/domain"
)

// RawEvent is the narrow, stable ingestion contract. Every domain
// collaborator (patients, staff, inventory, pharmacy, surgery, billing, ...)
// translates its own mutation into this shape at the call site, so the audit
// engine never learns about their internal record types.
//
// Only TenantID, UserID, Action and EntityType are required. Every other
// field may be absent; the classifier treats missing context as "heuristic
// inapplicable", not an error.
type RawEvent struct {
	TenantID id.TenantID

	// Actor. Non-human triggers must use domain.SystemUserID, never omit.
	UserID id.UserID
	Email  string
	Role   string

	Action      Action
	EntityType  EntityType
	EntityID    string
	Description string

	// EntityTenantID is the tenant owning the touched entity, when the
	// collaborator knows it. Upstream isolation should make it equal to
	// TenantID; the classifier flags it when it is not.
	EntityTenantID id.TenantID

	// Request context.
	Method     string
	Endpoint   string
	StatusCode int
	DurationMs int64

	// Client context. Device and browser are derived from UserAgent at
	// ingestion; collaborators only supply the raw header.
	IPAddress string
	UserAgent string
	Location  string

	// Change payload. Redacted before persistence.
	OldValues map[string]any
	NewValues map[string]any
	Metadata  map[string]any

	// OccurredAt overrides the ingestion clock when the collaborator
	// captured the action earlier (e.g. batched emission). Zero means "now".
	OccurredAt time.Time
}
