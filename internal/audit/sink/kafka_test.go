package sink

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	auditmetrics "caretrail/internal/audit/metrics"
	"caretrail/internal/audit/models"
	id "caretrail/pkg/domain"
)

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
}

func (f *fakeProducer) Produce(_ context.Context, r *kgo.Record, promise func(*kgo.Record, error)) {
	f.mu.Lock()
	f.records = append(f.records, r)
	f.mu.Unlock()
	if promise != nil {
		promise(r, nil)
	}
}

func (f *fakeProducer) produced() []*kgo.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*kgo.Record{}, f.records...)
}

func securityRecord(tenantID id.TenantID) *models.AuditRecord {
	return &models.AuditRecord{
		ID:           id.NewRecordID(),
		TenantID:     tenantID,
		UserID:       id.UserID(uuid.New()),
		Action:       models.ActionLoginFailed,
		EntityType:   models.EntityUser,
		IsSuspicious: true,
		RiskScore:    40,
		Review:       models.ReviewState{Phase: models.ReviewPending},
	}
}

func TestKafkaSinkProducesPublishedRecords(t *testing.T) {
	producer := &fakeProducer{}
	s := NewKafkaSink(producer, "")
	tenant := id.TenantID(uuid.New())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	record := securityRecord(tenant)
	s.Publish(ctx, record)

	require.Eventually(t, func() bool {
		return len(producer.produced()) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done

	got := producer.produced()[0]
	assert.Equal(t, DefaultTopic, got.Topic)
	assert.Equal(t, tenant.String(), string(got.Key))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(got.Value, &payload))
	assert.Equal(t, true, payload["IsSuspicious"])
}

func TestKafkaSinkOverflowDrops(t *testing.T) {
	producer := &fakeProducer{}
	metrics := auditmetrics.NewWith(prometheus.NewRegistry())
	// Buffer of one and no Run loop draining it.
	s := NewKafkaSink(producer, "", WithBuffer(1), WithMetrics(metrics))
	tenant := id.TenantID(uuid.New())

	ctx := context.Background()
	s.Publish(ctx, securityRecord(tenant))
	s.Publish(ctx, securityRecord(tenant))

	assert.Equal(t, float64(1), promtest.ToFloat64(metrics.SinkDropped))
	assert.Empty(t, producer.produced())
}
