package retryqueue

import (
	"context"

	"caretrail/internal/audit/models"
	"caretrail/pkg/platform/sentinel"
)

// InMemoryQueue is a bounded channel-backed retry buffer for single-process
// deployments and tests.
type InMemoryQueue struct {
	ch chan *models.AuditRecord
}

func NewInMemoryQueue(capacity int) *InMemoryQueue {
	return &InMemoryQueue{ch: make(chan *models.AuditRecord, capacity)}
}

func (q *InMemoryQueue) Enqueue(_ context.Context, record *models.AuditRecord) error {
	select {
	case q.ch <- record:
		return nil
	default:
		return sentinel.ErrUnavailable
	}
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) (*models.AuditRecord, error) {
	select {
	case record := <-q.ch:
		return record, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return nil, nil
	}
}

func (q *InMemoryQueue) Len(_ context.Context) (int, error) {
	return len(q.ch), nil
}
