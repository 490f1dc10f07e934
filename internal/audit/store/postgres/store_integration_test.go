//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"caretrail/internal/audit/classify"
	"caretrail/internal/audit/models"
	"caretrail/internal/audit/store/postgres"
	id "caretrail/pkg/domain"
	"caretrail/pkg/platform/sentinel"
	"caretrail/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	container *containers.PostgresContainer
	store     *postgres.Store

	tenantA id.TenantID
	tenantB id.TenantID
	user    id.UserID
	seq     uint64
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.container = containers.NewPostgresContainer(s.T())
	s.store = postgres.New(s.container.Pool)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.container.Truncate(context.Background(), "audit_records"))
	s.tenantA = id.TenantID(uuid.New())
	s.tenantB = id.TenantID(uuid.New())
	s.user = id.UserID(uuid.New())
	s.seq = 0
}

func (s *PostgresStoreSuite) newRecord(tenantID id.TenantID, action models.Action, entity models.EntityType, at time.Time) *models.AuditRecord {
	s.seq++
	return &models.AuditRecord{
		ID:         id.NewRecordID(),
		TenantID:   tenantID,
		Seq:        s.seq,
		UserID:     s.user,
		Email:      "tester@clinic.test",
		Role:       "DOCTOR",
		Action:     action,
		EntityType: entity,
		Review:     models.ReviewState{Phase: models.ReviewNotRequired},
		CreatedAt:  at.UTC().Truncate(time.Microsecond),
		UpdatedAt:  at.UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) append(r *models.AuditRecord) *models.AuditRecord {
	s.Require().NoError(s.store.Append(context.Background(), r))
	return r
}

func (s *PostgresStoreSuite) TestAppendAndGet() {
	ctx := context.Background()
	now := time.Now()

	s.Run("round-trips all fields", func() {
		r := s.newRecord(s.tenantA, models.ActionUpdate, models.EntityPatient, now)
		r.EntityID = uuid.NewString()
		r.Description = "Updated allergy list"
		r.OldValues = map[string]any{"allergies": "none", "password": "[REDACTED]"}
		r.NewValues = map[string]any{"allergies": "penicillin"}
		r.IsSensitive = true
		r.RiskScore = 10
		r.RiskReasons = []string{"off_hours_sensitive_access"}
		s.append(r)

		found, err := s.store.Get(ctx, s.tenantA, r.ID)
		s.Require().NoError(err)
		s.Equal(r.Description, found.Description)
		s.Equal("[REDACTED]", found.OldValues["password"])
		s.Equal("penicillin", found.NewValues["allergies"])
		s.True(found.IsSensitive)
		s.Equal(r.RiskReasons, found.RiskReasons)
		s.True(r.CreatedAt.Equal(found.CreatedAt))
	})

	s.Run("re-appending the same ID is a no-op", func() {
		r := s.append(s.newRecord(s.tenantA, models.ActionCreate, models.EntityAppointment, now))

		dup := *r
		dup.Description = "second write must not land"
		s.Require().NoError(s.store.Append(ctx, &dup))

		found, err := s.store.Get(ctx, s.tenantA, r.ID)
		s.Require().NoError(err)
		s.Empty(found.Description)
	})

	s.Run("tenant scope bounds lookups", func() {
		r := s.append(s.newRecord(s.tenantA, models.ActionRead, models.EntityPatient, now))

		_, err := s.store.Get(ctx, s.tenantB, r.ID)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestAnnotateReview() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	reviewer := id.UserID(uuid.New())

	pending := func() *models.AuditRecord {
		r := s.newRecord(s.tenantA, models.ActionDelete, models.EntityPatient, now)
		r.Review = models.ReviewState{Phase: models.ReviewPending}
		return s.append(r)
	}

	s.Run("transitions once and persists attribution", func() {
		r := pending()

		reviewed, err := s.store.AnnotateReview(ctx, s.tenantA, r.ID, reviewer, now)
		s.Require().NoError(err)
		s.Equal(models.ReviewReviewed, reviewed.Review.Phase)
		s.Equal(reviewer, *reviewed.Review.ReviewedBy)

		found, err := s.store.Get(ctx, s.tenantA, r.ID)
		s.Require().NoError(err)
		s.Equal(models.ReviewReviewed, found.Review.Phase)
	})

	s.Run("second review conflicts", func() {
		r := pending()
		_, err := s.store.AnnotateReview(ctx, s.tenantA, r.ID, reviewer, now)
		s.Require().NoError(err)

		_, err = s.store.AnnotateReview(ctx, s.tenantA, r.ID, id.UserID(uuid.New()), now)
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("never-reviewable record conflicts", func() {
		r := s.append(s.newRecord(s.tenantA, models.ActionRead, models.EntityInventory, now))

		_, err := s.store.AnnotateReview(ctx, s.tenantA, r.ID, reviewer, now)
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("unknown record is not found", func() {
		_, err := s.store.AnnotateReview(ctx, s.tenantA, id.NewRecordID(), reviewer, now)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("concurrent reviewers: exactly one wins", func() {
		r := pending()

		const reviewers = 8
		var wg sync.WaitGroup
		errs := make([]error, reviewers)
		for i := 0; i < reviewers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.store.AnnotateReview(ctx, s.tenantA, r.ID, id.UserID(uuid.New()), now)
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
			} else {
				s.ErrorIs(err, sentinel.ErrConflict)
			}
		}
		s.Equal(1, wins)
	})
}

func (s *PostgresStoreSuite) TestListMirrorsFilterSemantics() {
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	read := s.append(s.newRecord(s.tenantA, models.ActionRead, models.EntityPatient, base))
	del := s.newRecord(s.tenantA, models.ActionDelete, models.EntityPatient, base.Add(time.Minute))
	del.IsSuspicious = true
	del.Review = models.ReviewState{Phase: models.ReviewPending}
	del.Description = "Removed duplicate chart"
	s.append(del)
	s.append(s.newRecord(s.tenantB, models.ActionRead, models.EntityPatient, base))

	list := func(f models.ListFilter) *models.Page {
		page, err := s.store.List(ctx, s.tenantA, f, 1, 50)
		s.Require().NoError(err)
		return page
	}

	s.Run("tenant scope", func() {
		s.Equal(2, list(models.ListFilter{}).Total)
	})

	s.Run("action filter", func() {
		action := models.ActionDelete
		page := list(models.ListFilter{Action: &action})
		s.Require().Len(page.Items, 1)
		s.Equal(del.ID, page.Items[0].ID)
	})

	s.Run("date range inclusive/exclusive", func() {
		start := base
		end := base.Add(time.Minute)
		page := list(models.ListFilter{StartDate: &start, EndDate: &end})
		s.Require().Len(page.Items, 1)
		s.Equal(read.ID, page.Items[0].ID)
	})

	s.Run("flag filter", func() {
		yes := true
		page := list(models.ListFilter{IsSuspicious: &yes})
		s.Require().Len(page.Items, 1)
		s.Equal(del.ID, page.Items[0].ID)
	})

	s.Run("search is case-insensitive", func() {
		page := list(models.ListFilter{Search: "DUPLICATE"})
		s.Require().Len(page.Items, 1)
		s.Equal(del.ID, page.Items[0].ID)
	})

	s.Run("newest first with seq tiebreak", func() {
		tieA := s.append(s.newRecord(s.tenantA, models.ActionCreate, models.EntityStaff, base.Add(time.Hour)))
		tieB := s.append(s.newRecord(s.tenantA, models.ActionUpdate, models.EntityStaff, base.Add(time.Hour)))

		page := list(models.ListFilter{})
		s.Require().GreaterOrEqual(len(page.Items), 2)
		s.Equal(tieB.ID, page.Items[0].ID)
		s.Equal(tieA.ID, page.Items[1].ID)
	})
}

func (s *PostgresStoreSuite) TestPagination() {
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		s.append(s.newRecord(s.tenantA, models.ActionRead, models.EntityInventory, base.Add(time.Duration(i)*time.Second)))
	}

	seen := map[id.RecordID]bool{}
	for p := 1; p <= 3; p++ {
		page, err := s.store.List(ctx, s.tenantA, models.ListFilter{}, p, 5)
		s.Require().NoError(err)
		s.Equal(12, page.Total)
		s.Equal(3, page.Pages)
		for _, r := range page.Items {
			s.False(seen[r.ID])
			seen[r.ID] = true
		}
	}
	s.Len(seen, 12)
}

func (s *PostgresStoreSuite) TestStatisticsConsistency() {
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		s.append(s.newRecord(s.tenantA, models.ActionRead, models.EntityInventory, base.Add(time.Duration(i)*time.Minute)))
	}
	sensitive := s.newRecord(s.tenantA, models.ActionDelete, models.EntityPatient, base)
	sensitive.IsSensitive = true
	sensitive.IsSuspicious = true
	s.append(sensitive)

	stats, err := s.store.Statistics(ctx, s.tenantA, nil, nil)
	s.Require().NoError(err)

	s.Equal(5, stats.TotalLogs)
	byActionSum := 0
	for _, n := range stats.ByAction {
		byActionSum += n
	}
	byEntitySum := 0
	for _, n := range stats.ByEntityType {
		byEntitySum += n
	}
	s.Equal(stats.TotalLogs, byActionSum)
	s.Equal(stats.TotalLogs, byEntitySum)
	s.Equal(1, stats.SuspiciousCount)
	s.Equal(1, stats.SensitiveAccessCount)

	s.Run("windowed", func() {
		start := base.Add(time.Minute)
		stats, err := s.store.Statistics(ctx, s.tenantA, &start, nil)
		s.Require().NoError(err)
		s.Equal(3, stats.TotalLogs)
	})
}

func (s *PostgresStoreSuite) TestCountRecent() {
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		r := s.newRecord(s.tenantA, models.ActionLoginFailed, models.EntityUser, base.Add(time.Duration(i)*time.Minute))
		r.IPAddress = "10.0.0.9"
		s.append(r)
	}
	s.append(s.newRecord(s.tenantA, models.ActionLoginFailed, models.EntityUser, base.Add(-time.Hour)))

	n, err := s.store.CountRecent(ctx, s.tenantA, classify.HistoryQuery{
		Since:   base.Add(-30 * time.Minute),
		Actions: []models.Action{models.ActionLoginFailed},
		UserID:  s.user,
	})
	s.Require().NoError(err)
	s.Equal(4, n)

	n, err = s.store.CountRecent(ctx, s.tenantA, classify.HistoryQuery{
		Since:     base.Add(-30 * time.Minute),
		Actions:   []models.Action{models.ActionLoginFailed},
		IPAddress: "10.0.0.9",
	})
	s.Require().NoError(err)
	s.Equal(4, n)
}
