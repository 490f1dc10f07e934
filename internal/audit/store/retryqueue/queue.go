// Package retryqueue buffers records whose first append failed. Ingestion is
// best-effort toward its caller but not toward the ledger: a dropped record
// is counted, parked here, and re-appended by a background worker once the
// store recovers.
package retryqueue

import (
	"context"

	"caretrail/internal/audit/models"
)

// Queue is the retry buffer port.
type Queue interface {
	// Enqueue parks a record for later re-append. A full or unavailable
	// queue returns sentinel.ErrUnavailable; the caller counts the record
	// as dropped.
	Enqueue(ctx context.Context, record *models.AuditRecord) error

	// Dequeue returns the oldest parked record, or (nil, nil) when none is
	// available within the implementation's poll interval.
	Dequeue(ctx context.Context) (*models.AuditRecord, error)

	// Len reports the number of parked records.
	Len(ctx context.Context) (int, error)
}
