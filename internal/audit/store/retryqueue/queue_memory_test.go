package retryqueue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caretrail/internal/audit/models"
	id "caretrail/pkg/domain"
	"caretrail/pkg/platform/sentinel"
)

func TestInMemoryQueueFIFO(t *testing.T) {
	ctx := context.Background()
	q := NewInMemoryQueue(4)

	first := &models.AuditRecord{ID: id.NewRecordID()}
	second := &models.AuditRecord{ID: id.NewRecordID()}
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}

func TestInMemoryQueueEmptyDequeue(t *testing.T) {
	q := NewInMemoryQueue(4)

	got, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInMemoryQueueBounded(t *testing.T) {
	ctx := context.Background()
	q := NewInMemoryQueue(1)

	require.NoError(t, q.Enqueue(ctx, &models.AuditRecord{ID: id.NewRecordID()}))

	err := q.Enqueue(ctx, &models.AuditRecord{ID: id.NewRecordID()})
	require.ErrorIs(t, err, sentinel.ErrUnavailable)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
