//go:build integration

package retryqueue_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caretrail/internal/audit/models"
	"caretrail/internal/audit/store/retryqueue"
	id "caretrail/pkg/domain"
	"caretrail/pkg/platform/sentinel"
	"caretrail/pkg/testutil/containers"
)

func newRecord() *models.AuditRecord {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.AuditRecord{
		ID:         id.NewRecordID(),
		TenantID:   id.TenantID(uuid.New()),
		UserID:     id.UserID(uuid.New()),
		Action:     models.ActionCreate,
		EntityType: models.EntityAppointment,
		Metadata:   map[string]any{"source": "integration"},
		Review:     models.ReviewState{Phase: models.ReviewNotRequired},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestRedisQueueRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	q := retryqueue.NewRedisQueue(rc.Client, "caretrail:test:retry", 10)

	first := newRecord()
	second := newRecord()
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, first.TenantID, got.TenantID)
	assert.Equal(t, "integration", got.Metadata["source"])
	assert.True(t, first.CreatedAt.Equal(got.CreatedAt))

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisQueueBounded(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	q := retryqueue.NewRedisQueue(rc.Client, "caretrail:test:retry-bounded", 1)

	require.NoError(t, q.Enqueue(ctx, newRecord()))

	err := q.Enqueue(ctx, newRecord())
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
}
