// Package memory is the in-memory log store used by unit tests and local
// development. Behavior matches the postgres store; the suites in this
// package are the executable contract both implementations answer to.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"caretrail/internal/audit/classify"
	"caretrail/internal/audit/models"
	id "caretrail/pkg/domain"
	"caretrail/pkg/platform/sentinel"
)

// InMemoryStore keeps records per tenant so one tenant's writes never
// contend with another's reads beyond the per-tenant lock.
type InMemoryStore struct {
	mu      sync.RWMutex
	tenants map[id.TenantID]*tenantLog
	byID    map[id.RecordID]id.TenantID
}

type tenantLog struct {
	mu      sync.RWMutex
	records []*models.AuditRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tenants: make(map[id.TenantID]*tenantLog),
		byID:    make(map[id.RecordID]id.TenantID),
	}
}

func (s *InMemoryStore) tenant(tenantID id.TenantID, create bool) *tenantLog {
	s.mu.RLock()
	tl := s.tenants[tenantID]
	s.mu.RUnlock()
	if tl != nil || !create {
		return tl
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tl = s.tenants[tenantID]; tl == nil {
		tl = &tenantLog{}
		s.tenants[tenantID] = tl
	}
	return tl
}

// Append stores a deep copy of the record, payload maps included, so later
// caller mutations cannot reach the ledger.
func (s *InMemoryStore) Append(_ context.Context, record *models.AuditRecord) error {
	cp := cloneRecord(record)
	tl := s.tenant(record.TenantID, true)

	tl.mu.Lock()
	tl.records = append(tl.records, cp)
	tl.mu.Unlock()

	s.mu.Lock()
	s.byID[record.ID] = record.TenantID
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, tenantID id.TenantID, recordID id.RecordID) (*models.AuditRecord, error) {
	tl := s.tenant(tenantID, false)
	if tl == nil {
		return nil, sentinel.ErrNotFound
	}
	tl.mu.RLock()
	defer tl.mu.RUnlock()
	for _, r := range tl.records {
		if r.ID == recordID {
			return cloneRecord(r), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// AnnotateReview performs the compare-and-swap under the tenant lock: only a
// currently-pending record transitions, so two concurrent reviewers cannot
// silently overwrite each other's attribution.
func (s *InMemoryStore) AnnotateReview(_ context.Context, tenantID id.TenantID, recordID id.RecordID, reviewer id.UserID, at time.Time) (*models.AuditRecord, error) {
	tl := s.tenant(tenantID, false)
	if tl == nil {
		return nil, sentinel.ErrNotFound
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	for _, r := range tl.records {
		if r.ID != recordID {
			continue
		}
		if r.Review.Phase != models.ReviewPending {
			return nil, sentinel.ErrConflict
		}
		r.MarkReviewed(reviewer, at)
		return cloneRecord(r), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) List(_ context.Context, tenantID id.TenantID, filter models.ListFilter, page, limit int) (*models.Page, error) {
	tl := s.tenant(tenantID, false)

	// Matched records are copied while the lock is held; a concurrent review
	// annotation must not tear a record mid-read.
	var matched []*models.AuditRecord
	if tl != nil {
		tl.mu.RLock()
		for _, r := range tl.records {
			if filter.Matches(r) {
				matched = append(matched, cloneRecord(r))
			}
		}
		tl.mu.RUnlock()
	}

	// Newest first; same-millisecond ties break on insertion sequence.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].Seq > matched[j].Seq
	})

	total := len(matched)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &models.Page{
		Items: matched[start:end],
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: (total + limit - 1) / limit,
	}, nil
}

func (s *InMemoryStore) Statistics(_ context.Context, tenantID id.TenantID, start, end *time.Time) (*models.Statistics, error) {
	stats := &models.Statistics{
		ByAction:     make(map[models.Action]int),
		ByEntityType: make(map[models.EntityType]int),
	}

	tl := s.tenant(tenantID, false)
	if tl == nil {
		return stats, nil
	}

	window := models.ListFilter{StartDate: start, EndDate: end}

	tl.mu.RLock()
	defer tl.mu.RUnlock()
	for _, r := range tl.records {
		if !window.Matches(r) {
			continue
		}
		stats.TotalLogs++
		stats.ByAction[r.Action]++
		stats.ByEntityType[r.EntityType]++
		if r.IsSuspicious {
			stats.SuspiciousCount++
		}
		if r.IsSensitive {
			stats.SensitiveAccessCount++
		}
	}
	return stats, nil
}

func (s *InMemoryStore) CountRecent(_ context.Context, tenantID id.TenantID, q classify.HistoryQuery) (int, error) {
	tl := s.tenant(tenantID, false)
	if tl == nil {
		return 0, nil
	}

	tl.mu.RLock()
	defer tl.mu.RUnlock()
	count := 0
	for _, r := range tl.records {
		if r.CreatedAt.Before(q.Since) {
			continue
		}
		if len(q.Actions) > 0 && !slices.Contains(q.Actions, r.Action) {
			continue
		}
		if !q.UserID.IsNil() && r.UserID != q.UserID {
			continue
		}
		if q.IPAddress != "" && r.IPAddress != q.IPAddress {
			continue
		}
		count++
	}
	return count, nil
}

// cloneRecord deep-copies a record across the store boundary: payload maps
// and the reasons slice are duplicated, so neither side can mutate the other.
func cloneRecord(r *models.AuditRecord) *models.AuditRecord {
	cp := *r
	cp.OldValues = cloneValues(r.OldValues)
	cp.NewValues = cloneValues(r.NewValues)
	cp.Metadata = cloneValues(r.Metadata)
	cp.RiskReasons = slices.Clone(r.RiskReasons)
	return &cp
}

func cloneValues(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneValues(nested)
			continue
		}
		out[k] = v
	}
	return out
}
