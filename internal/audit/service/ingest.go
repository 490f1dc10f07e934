package service

import (
	"context"
	"time"

	"caretrail/internal/audit/models"
	id "caretrail/pkg/domain"
	dErrors "caretrail/pkg/domain-errors"
	"caretrail/pkg/requestcontext"
)

// Ingest validates, redacts, classifies and appends one audit record.
//
// Persistence is best-effort toward the caller: a store failure never
// propagates, because audit logging must not gate clinical or operational
// actions. The failed record is counted, parked on the retry queue when one
// is configured, and the built record is still returned.
//
// Validation failures (unknown enums, missing actor) do propagate — they are
// caller bugs, not infrastructure weather.
func (s *Service) Ingest(ctx context.Context, ev models.RawEvent) (*models.AuditRecord, error) {
	ctx, span := s.tracer.Start(ctx, "audit.Ingest")
	defer span.End()

	if err := validateEvent(ev); err != nil {
		return nil, err
	}

	at := ev.OccurredAt
	if at.IsZero() {
		at = requestcontext.Now(ctx)
	}

	record := s.buildRecord(ev, at)

	classifyStart := time.Now()
	record.ApplyClassification(s.engine.Classify(ctx, ev, at))
	if s.metrics != nil {
		s.metrics.ClassifyDuration.Observe(time.Since(classifyStart).Seconds())
		if record.IsSuspicious {
			s.metrics.SuspiciousFlagged.Inc()
		}
	}

	if err := s.store.Append(ctx, record); err != nil {
		s.absorbAppendFailure(ctx, record, err)
		return record, nil
	}

	if s.metrics != nil {
		s.metrics.RecordsIngested.WithLabelValues(string(record.Action)).Inc()
	}
	if s.sink != nil && (record.IsSuspicious || record.RequiresReview()) {
		s.sink.Publish(ctx, record)
	}
	return record, nil
}

func (s *Service) buildRecord(ev models.RawEvent, at time.Time) *models.AuditRecord {
	device, browser := parseUserAgent(ev.UserAgent)

	return &models.AuditRecord{
		ID:       id.NewRecordID(),
		TenantID: ev.TenantID,
		Seq:      s.seq.Add(1),

		UserID: ev.UserID,
		Email:  ev.Email,
		Role:   ev.Role,

		Action:      ev.Action,
		EntityType:  ev.EntityType,
		EntityID:    ev.EntityID,
		Description: ev.Description,

		Method:     ev.Method,
		Endpoint:   ev.Endpoint,
		StatusCode: ev.StatusCode,
		DurationMs: ev.DurationMs,

		IPAddress: ev.IPAddress,
		UserAgent: ev.UserAgent,
		Device:    device,
		Browser:   browser,
		Location:  ev.Location,

		OldValues: s.redactor.Map(ev.OldValues),
		NewValues: s.redactor.Map(ev.NewValues),
		Metadata:  s.redactor.Map(ev.Metadata),

		CreatedAt: at,
		UpdatedAt: at,
	}
}

// absorbAppendFailure implements the best-effort guarantee: count the drop,
// park the record if a retry queue exists, never surface the failure.
func (s *Service) absorbAppendFailure(ctx context.Context, record *models.AuditRecord, err error) {
	if s.metrics != nil {
		s.metrics.RecordsDropped.Inc()
	}
	s.logger.ErrorContext(ctx, "audit append failed, absorbing",
		"record_id", record.ID.String(),
		"action", string(record.Action),
		"error", err.Error(),
		"request_id", requestcontext.RequestID(ctx),
	)

	if s.queue == nil {
		return
	}
	if qErr := s.queue.Enqueue(ctx, record); qErr != nil {
		s.logger.ErrorContext(ctx, "audit retry enqueue failed, record lost",
			"record_id", record.ID.String(),
			"error", qErr.Error(),
		)
	}
}

func validateEvent(ev models.RawEvent) error {
	if ev.TenantID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "tenant id is required")
	}
	if ev.UserID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "actor is required; use the system actor for non-human triggers")
	}
	if !ev.Action.Valid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown action %q", string(ev.Action))
	}
	if !ev.EntityType.Valid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown entity type %q", string(ev.EntityType))
	}
	return nil
}
