// Package service orchestrates the audit engine: ingestion with write-time
// classification, filtered retrieval, windowed statistics and the review
// workflow. Tenant scope enters every operation through the request context,
// never as a parameter, so cross-tenant access is unrepresentable at this
// layer.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"caretrail/internal/audit/classify"
	auditmetrics "caretrail/internal/audit/metrics"
	"caretrail/internal/audit/models"
	"caretrail/internal/audit/redact"
	"caretrail/internal/audit/store"
	"caretrail/internal/audit/store/retryqueue"
	id "caretrail/pkg/domain"
	dErrors "caretrail/pkg/domain-errors"
	"caretrail/pkg/platform/sentinel"
	"caretrail/pkg/requestcontext"
)

// Sink receives security-relevant records after a successful append. It must
// never block the ingestion path.
type Sink interface {
	Publish(ctx context.Context, record *models.AuditRecord)
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Service is the audit engine facade.
type Service struct {
	logger   *slog.Logger
	store    store.Store
	engine   *classify.Engine
	redactor *redact.Redactor
	queue    retryqueue.Queue
	sink     Sink
	metrics  *auditmetrics.Metrics
	tracer   trace.Tracer

	// seq is the per-process insertion sequence, the same-millisecond
	// ordering tiebreaker.
	seq atomic.Uint64
}

type serviceConfig struct {
	logger   *slog.Logger
	redactor *redact.Redactor
	queue    retryqueue.Queue
	sink     Sink
	metrics  *auditmetrics.Metrics
}

// Option configures optional collaborators.
type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = logger }
}

func WithRedactor(r *redact.Redactor) Option {
	return func(c *serviceConfig) { c.redactor = r }
}

// WithRetryQueue parks records whose first append failed for background
// re-append.
func WithRetryQueue(q retryqueue.Queue) Option {
	return func(c *serviceConfig) { c.queue = q }
}

// WithSink fans security-relevant records out after append.
func WithSink(s Sink) Option {
	return func(c *serviceConfig) { c.sink = s }
}

func WithMetrics(m *auditmetrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

func New(st store.Store, engine *classify.Engine, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.redactor == nil {
		cfg.redactor = redact.New(nil)
	}
	return &Service{
		logger:   cfg.logger,
		store:    st,
		engine:   engine,
		redactor: cfg.redactor,
		queue:    cfg.queue,
		sink:     cfg.sink,
		metrics:  cfg.metrics,
		tracer:   otel.Tracer("caretrail/audit"),
	}
}

// List returns one page of the tenant's records matching the ANDed filter,
// newest first.
func (s *Service) List(ctx context.Context, filter models.ListFilter, page, limit int) (*models.Page, error) {
	ctx, span := s.tracer.Start(ctx, "audit.List")
	defer span.End()

	tenantID, err := s.tenantScope(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	result, err := s.store.List(ctx, tenantID, filter, page, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "audit store query failed")
	}
	return result, nil
}

// Get returns one record within the caller's tenant scope.
func (s *Service) Get(ctx context.Context, recordID id.RecordID) (*models.AuditRecord, error) {
	tenantID, err := s.tenantScope(ctx)
	if err != nil {
		return nil, err
	}

	record, err := s.store.Get(ctx, tenantID, recordID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "audit record not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "audit store lookup failed")
	}
	return record, nil
}

// Statistics aggregates over the tenant's records in [start, end). The store
// computes the aggregate over the same predicates List uses, so the sums and
// the total always agree.
func (s *Service) Statistics(ctx context.Context, start, end *time.Time) (*models.Statistics, error) {
	ctx, span := s.tracer.Start(ctx, "audit.Statistics")
	defer span.End()

	tenantID, err := s.tenantScope(ctx)
	if err != nil {
		return nil, err
	}
	if start != nil && end != nil && !start.Before(*end) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "startDate must be before endDate")
	}

	stats, err := s.store.Statistics(ctx, tenantID, start, end)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "audit store aggregation failed")
	}
	return stats, nil
}

// MarkReviewed transitions a PENDING_REVIEW record to REVIEWED exactly once.
// A record that is already reviewed, or never required review, yields a
// conflict; review is monotonic and attribution is never overwritten.
func (s *Service) MarkReviewed(ctx context.Context, recordID id.RecordID, reviewer id.UserID) (*models.AuditRecord, error) {
	tenantID, err := s.tenantScope(ctx)
	if err != nil {
		return nil, err
	}
	if reviewer.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "reviewer is required")
	}

	record, err := s.store.AnnotateReview(ctx, tenantID, recordID, reviewer, requestcontext.Now(ctx))
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.New(dErrors.CodeNotFound, "audit record not found")
	case errors.Is(err, sentinel.ErrConflict):
		return nil, dErrors.New(dErrors.CodeConflict, "audit record is not pending review")
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "review annotation failed")
	}

	if s.metrics != nil {
		s.metrics.ReviewsCompleted.Inc()
	}
	return record, nil
}

func (s *Service) tenantScope(ctx context.Context) (id.TenantID, error) {
	tenantID := requestcontext.TenantID(ctx)
	if tenantID.IsNil() {
		return id.TenantID{}, dErrors.New(dErrors.CodeInvalidInput, "tenant scope missing from request context")
	}
	return tenantID, nil
}

// validateFilter rejects unknown enum values instead of silently ignoring
// them: a typo'd dashboard filter must not return an unfiltered result set.
func validateFilter(f models.ListFilter) error {
	if f.Action != nil && !f.Action.Valid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown action %q", string(*f.Action))
	}
	if f.EntityType != nil && !f.EntityType.Valid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown entity type %q", string(*f.EntityType))
	}
	return nil
}
