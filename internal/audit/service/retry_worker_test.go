package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditmetrics "caretrail/internal/audit/metrics"
	"caretrail/internal/audit/models"
	"caretrail/internal/audit/store/memory"
	"caretrail/internal/audit/store/retryqueue"
	id "caretrail/pkg/domain"
)

func parkedRecord(tenantID id.TenantID) *models.AuditRecord {
	now := time.Now()
	return &models.AuditRecord{
		ID:         id.NewRecordID(),
		TenantID:   tenantID,
		UserID:     id.UserID(uuid.New()),
		Action:     models.ActionCreate,
		EntityType: models.EntityAppointment,
		Review:     models.ReviewState{Phase: models.ReviewNotRequired},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestRetryWorkerDrainsQueue(t *testing.T) {
	ctx := context.Background()
	tenant := id.TenantID(uuid.New())
	st := memory.NewInMemoryStore()
	queue := retryqueue.NewInMemoryQueue(8)
	metrics := auditmetrics.NewWith(prometheus.NewRegistry())

	records := []*models.AuditRecord{parkedRecord(tenant), parkedRecord(tenant)}
	for _, r := range records {
		require.NoError(t, queue.Enqueue(ctx, r))
	}

	w := NewRetryWorker(st, queue, slog.New(slog.DiscardHandler), metrics, time.Second)
	w.drain(ctx)

	for _, r := range records {
		found, err := st.Get(ctx, tenant, r.ID)
		require.NoError(t, err)
		assert.Equal(t, r.ID, found.ID)
	}
	n, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRetryWorkerReparksOnFailure(t *testing.T) {
	ctx := context.Background()
	tenant := id.TenantID(uuid.New())
	st := &flakyStore{Store: memory.NewInMemoryStore(), failAppend: true}
	queue := retryqueue.NewInMemoryQueue(8)

	record := parkedRecord(tenant)
	require.NoError(t, queue.Enqueue(ctx, record))

	w := NewRetryWorker(st, queue, slog.New(slog.DiscardHandler), nil, time.Second)
	w.drain(ctx)

	// Still parked, waiting for the next tick.
	n, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRetryWorkerRunStopsOnCancel(t *testing.T) {
	st := memory.NewInMemoryStore()
	queue := retryqueue.NewInMemoryQueue(1)
	w := NewRetryWorker(st, queue, slog.New(slog.DiscardHandler), nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}
