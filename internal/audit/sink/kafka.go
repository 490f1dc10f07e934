// Package sink fans security-relevant audit records out to Kafka for SIEM
// consumption. The sink is fire-and-forget: a full buffer drops the record
// (and counts it) rather than slowing the ingestion path — the ledger, not
// Kafka, is the source of truth.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	auditmetrics "caretrail/internal/audit/metrics"
	"caretrail/internal/audit/models"
)

// DefaultTopic carries suspicious and review-required records.
const DefaultTopic = "caretrail.audit.security"

// Producer is the narrow franz-go surface the sink needs, kept as an
// interface so tests run without a broker.
type Producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

// KafkaSink buffers records and produces them asynchronously.
type KafkaSink struct {
	logger   *slog.Logger
	producer Producer
	topic    string
	metrics  *auditmetrics.Metrics
	buffer   chan *models.AuditRecord
}

// Option configures the sink.
type Option func(*KafkaSink)

func WithLogger(logger *slog.Logger) Option {
	return func(s *KafkaSink) { s.logger = logger }
}

func WithMetrics(m *auditmetrics.Metrics) Option {
	return func(s *KafkaSink) { s.metrics = m }
}

func WithBuffer(size int) Option {
	return func(s *KafkaSink) { s.buffer = make(chan *models.AuditRecord, size) }
}

func NewKafkaSink(producer Producer, topic string, opts ...Option) *KafkaSink {
	if topic == "" {
		topic = DefaultTopic
	}
	s := &KafkaSink{
		logger:   slog.New(slog.DiscardHandler),
		producer: producer,
		topic:    topic,
		buffer:   make(chan *models.AuditRecord, 256),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish hands a record to the sink without blocking. Overflow drops.
func (s *KafkaSink) Publish(_ context.Context, record *models.AuditRecord) {
	select {
	case s.buffer <- record:
	default:
		if s.metrics != nil {
			s.metrics.SinkDropped.Inc()
		}
	}
}

// Run drains the buffer until ctx is cancelled.
func (s *KafkaSink) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case record := <-s.buffer:
			s.produce(ctx, record)
		}
	}
}

func (s *KafkaSink) produce(ctx context.Context, record *models.AuditRecord) {
	payload, err := json.Marshal(record)
	if err != nil {
		s.logger.ErrorContext(ctx, "marshal sink record", "error", err.Error())
		return
	}

	// Keyed by tenant so one tenant's records stay ordered per partition.
	s.producer.Produce(ctx, &kgo.Record{
		Topic: s.topic,
		Key:   []byte(record.TenantID.String()),
		Value: payload,
	}, func(r *kgo.Record, err error) {
		if err != nil {
			s.logger.Warn("sink produce failed",
				"topic", r.Topic,
				"error", err.Error(),
			)
		}
	})
}

// NewClient builds a franz-go client for the given brokers.
func NewClient(brokers []string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

// EnsureTopic creates the sink topic when it does not exist yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, partitions, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, t := range resp {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", t.Topic, t.Err)
		}
	}
	return nil
}
