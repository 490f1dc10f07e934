// Package postgres is the durable log store. All predicates push down into
// SQL so retrieval and aggregation cost scales with the selected range, not
// total tenant history.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"caretrail/internal/audit/classify"
	"caretrail/internal/audit/models"
	id "caretrail/pkg/domain"
	"caretrail/pkg/platform/sentinel"
)

//go:embed schema.sql
var schemaSQL string

// Store implements store.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema applies the ledger DDL. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply audit schema: %w", err)
	}
	return nil
}

const recordColumns = `
	id, tenant_id, seq, user_id, email, role,
	action, entity_type, entity_id, description,
	method, endpoint, status_code, duration_ms,
	ip_address, user_agent, device, browser, location,
	old_values, new_values, metadata,
	is_sensitive, is_suspicious, requires_review, risk_score, risk_reasons,
	reviewed_by, reviewed_at, created_at, updated_at`

func (s *Store) Append(ctx context.Context, r *models.AuditRecord) error {
	query := `
		INSERT INTO audit_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19,
		        $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31)
		ON CONFLICT (id) DO NOTHING
	`
	var reviewedBy *uuid.UUID
	if r.Review.ReviewedBy != nil {
		u := uuid.UUID(*r.Review.ReviewedBy)
		reviewedBy = &u
	}
	riskReasons := r.RiskReasons
	if riskReasons == nil {
		riskReasons = []string{}
	}
	_, err := s.pool.Exec(ctx, query,
		uuid.UUID(r.ID), uuid.UUID(r.TenantID), r.Seq, uuid.UUID(r.UserID), r.Email, r.Role,
		string(r.Action), string(r.EntityType), r.EntityID, r.Description,
		r.Method, r.Endpoint, r.StatusCode, r.DurationMs,
		r.IPAddress, r.UserAgent, r.Device, r.Browser, r.Location,
		r.OldValues, r.NewValues, r.Metadata,
		r.IsSensitive, r.IsSuspicious, r.RequiresReview(), r.RiskScore, riskReasons,
		reviewedBy, r.Review.ReviewedAt, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	return nil
}

func (s *Store) Get(ctx context.Context, tenantID id.TenantID, recordID id.RecordID) (*models.AuditRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM audit_records WHERE tenant_id = $1 AND id = $2`
	row := s.pool.QueryRow(ctx, query, uuid.UUID(tenantID), uuid.UUID(recordID))
	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get audit record: %w", err)
	}
	return record, nil
}

// AnnotateReview relies on a conditional UPDATE as the compare-and-swap: the
// WHERE clause only matches a currently-pending record, so concurrent
// reviewers race on the row lock and exactly one wins.
func (s *Store) AnnotateReview(ctx context.Context, tenantID id.TenantID, recordID id.RecordID, reviewer id.UserID, at time.Time) (*models.AuditRecord, error) {
	query := `
		UPDATE audit_records
		SET reviewed_by = $3, reviewed_at = $4, updated_at = $4
		WHERE tenant_id = $1 AND id = $2
		  AND requires_review AND reviewed_by IS NULL
		RETURNING ` + recordColumns
	row := s.pool.QueryRow(ctx, query,
		uuid.UUID(tenantID), uuid.UUID(recordID), uuid.UUID(reviewer), at)
	record, err := scanRecord(row)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("annotate review: %w", err)
	}

	// No row transitioned: missing record or wrong state.
	if _, err := s.Get(ctx, tenantID, recordID); err != nil {
		return nil, err
	}
	return nil, sentinel.ErrConflict
}

func (s *Store) List(ctx context.Context, tenantID id.TenantID, filter models.ListFilter, page, limit int) (*models.Page, error) {
	where, args := buildPredicates(tenantID, filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM audit_records WHERE ` + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count audit records: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT %s FROM audit_records WHERE %s
		 ORDER BY created_at DESC, seq DESC
		 LIMIT $%d OFFSET $%d`,
		recordColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var items []*models.AuditRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		items = append(items, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}

	return &models.Page{
		Items: items,
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: (total + limit - 1) / limit,
	}, nil
}

// Statistics runs its aggregates inside one repeatable-read transaction so
// the by-action and by-entity sums are taken from the same snapshot and both
// equal the total.
func (s *Store) Statistics(ctx context.Context, tenantID id.TenantID, start, end *time.Time) (*models.Statistics, error) {
	where, args := buildPredicates(tenantID, models.ListFilter{StartDate: start, EndDate: end})

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("begin statistics tx: %w", errors.Join(sentinel.ErrUnavailable, err))
	}
	defer tx.Rollback(ctx)

	stats := &models.Statistics{
		ByAction:     make(map[models.Action]int),
		ByEntityType: make(map[models.EntityType]int),
	}

	actionQuery := `SELECT action, COUNT(*) FROM audit_records WHERE ` + where + ` GROUP BY action`
	rows, err := tx.Query(ctx, actionQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate by action: %w", err)
	}
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan action aggregate: %w", err)
		}
		stats.ByAction[models.Action(action)] = n
		stats.TotalLogs += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action aggregate: %w", err)
	}

	entityQuery := `SELECT entity_type, COUNT(*) FROM audit_records WHERE ` + where + ` GROUP BY entity_type`
	rows, err = tx.Query(ctx, entityQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate by entity type: %w", err)
	}
	for rows.Next() {
		var entity string
		var n int
		if err := rows.Scan(&entity, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan entity aggregate: %w", err)
		}
		stats.ByEntityType[models.EntityType(entity)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entity aggregate: %w", err)
	}

	flagQuery := `
		SELECT COUNT(*) FILTER (WHERE is_suspicious),
		       COUNT(*) FILTER (WHERE is_sensitive)
		FROM audit_records WHERE ` + where
	if err := tx.QueryRow(ctx, flagQuery, args...).Scan(&stats.SuspiciousCount, &stats.SensitiveAccessCount); err != nil {
		return nil, fmt.Errorf("aggregate flags: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit statistics tx: %w", err)
	}
	return stats, nil
}

func (s *Store) CountRecent(ctx context.Context, tenantID id.TenantID, q classify.HistoryQuery) (int, error) {
	where := []string{"tenant_id = $1", "created_at >= $2"}
	args := []any{uuid.UUID(tenantID), q.Since}

	if len(q.Actions) > 0 {
		actions := make([]string, len(q.Actions))
		for i, a := range q.Actions {
			actions[i] = string(a)
		}
		args = append(args, actions)
		where = append(where, fmt.Sprintf("action = ANY($%d)", len(args)))
	}
	if !q.UserID.IsNil() {
		args = append(args, uuid.UUID(q.UserID))
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if q.IPAddress != "" {
		args = append(args, q.IPAddress)
		where = append(where, fmt.Sprintf("ip_address = $%d", len(args)))
	}

	query := `SELECT COUNT(*) FROM audit_records WHERE ` + strings.Join(where, " AND ")
	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count recent audit records: %w", err)
	}
	return n, nil
}

// buildPredicates translates a ListFilter into a WHERE clause. It mirrors
// models.ListFilter.Matches; the two are held to the same answers by the
// store contract suite.
func buildPredicates(tenantID id.TenantID, f models.ListFilter) (string, []any) {
	where := []string{"tenant_id = $1"}
	args := []any{uuid.UUID(tenantID)}

	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if f.Action != nil {
		add("action = $%d", string(*f.Action))
	}
	if f.EntityType != nil {
		add("entity_type = $%d", string(*f.EntityType))
	}
	if f.UserID != nil {
		add("user_id = $%d", uuid.UUID(*f.UserID))
	}
	if f.StartDate != nil {
		add("created_at >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("created_at < $%d", *f.EndDate)
	}
	if f.IsSuspicious != nil {
		add("is_suspicious = $%d", *f.IsSuspicious)
	}
	if f.IsSensitive != nil {
		add("is_sensitive = $%d", *f.IsSensitive)
	}
	if f.RequiresReview != nil {
		add("requires_review = $%d", *f.RequiresReview)
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(description ILIKE $%d OR email ILIKE $%d OR entity_id ILIKE $%d OR action ILIKE $%d)",
			n, n, n, n))
	}

	return strings.Join(where, " AND "), args
}

func scanRecord(row pgx.Row) (*models.AuditRecord, error) {
	var (
		r              models.AuditRecord
		recordID       uuid.UUID
		tenantID       uuid.UUID
		userID         uuid.UUID
		action         string
		entityType     string
		requiresReview bool
		reviewedBy     *uuid.UUID
		reviewedAt     *time.Time
	)
	err := row.Scan(
		&recordID, &tenantID, &r.Seq, &userID, &r.Email, &r.Role,
		&action, &entityType, &r.EntityID, &r.Description,
		&r.Method, &r.Endpoint, &r.StatusCode, &r.DurationMs,
		&r.IPAddress, &r.UserAgent, &r.Device, &r.Browser, &r.Location,
		&r.OldValues, &r.NewValues, &r.Metadata,
		&r.IsSensitive, &r.IsSuspicious, &requiresReview, &r.RiskScore, &r.RiskReasons,
		&reviewedBy, &reviewedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.ID = id.RecordID(recordID)
	r.TenantID = id.TenantID(tenantID)
	r.UserID = id.UserID(userID)
	r.Action = models.Action(action)
	r.EntityType = models.EntityType(entityType)

	switch {
	case !requiresReview:
		r.Review = models.ReviewState{Phase: models.ReviewNotRequired}
	case reviewedBy == nil:
		r.Review = models.ReviewState{Phase: models.ReviewPending}
	default:
		reviewer := id.UserID(*reviewedBy)
		r.Review = models.ReviewState{
			Phase:      models.ReviewReviewed,
			ReviewedBy: &reviewer,
			ReviewedAt: reviewedAt,
		}
	}
	return &r, nil
}
