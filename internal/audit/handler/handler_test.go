package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"caretrail/internal/audit/classify"
	"caretrail/internal/audit/models"
	"caretrail/internal/audit/service"
	"caretrail/internal/audit/store/memory"
	id "caretrail/pkg/domain"
	"caretrail/pkg/requestcontext"
	"caretrail/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router  chi.Router
	service *service.Service

	tenant id.TenantID
	user   id.UserID
	now    time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	st := memory.NewInMemoryStore()
	engine := classify.New(classify.DefaultConfig(), st)
	s.service = service.New(st, engine)

	s.tenant = id.TenantID(uuid.New())
	s.user = id.UserID(uuid.New())
	s.now = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	h := New(s.service, slog.New(slog.DiscardHandler))
	s.router = chi.NewRouter()
	h.Register(s.router)
}

// do executes an authenticated request against the handler under test.
func (s *HandlerSuite) do(method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	req = testutil.RequestWithAuth(req, s.tenant, s.user)
	req = req.WithContext(requestcontext.WithTime(req.Context(), s.now))

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) ingest(ev models.RawEvent) *models.AuditRecord {
	ctx := testutil.AuthContextAt(s.tenant, s.user, s.now)
	record, err := s.service.Ingest(ctx, ev)
	s.Require().NoError(err)
	return record
}

func (s *HandlerSuite) event(action models.Action, entity models.EntityType) models.RawEvent {
	return models.RawEvent{
		TenantID:   s.tenant,
		UserID:     s.user,
		Email:      "tester@clinic.test",
		Action:     action,
		EntityType: entity,
		OccurredAt: s.now,
	}
}

func (s *HandlerSuite) decode(rec *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(v))
}

func (s *HandlerSuite) TestListEndpoint() {
	s.ingest(s.event(models.ActionCreate, models.EntityAppointment))
	del := s.ingest(s.event(models.ActionDelete, models.EntityPatient))

	s.Run("returns the tenant's page", func() {
		rec := s.do(http.MethodGet, "/api/audit-logs", nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var page pageResponse
		s.decode(rec, &page)
		s.Equal(2, page.Total)
		s.Len(page.Items, 2)
	})

	s.Run("filters by action", func() {
		rec := s.do(http.MethodGet, "/api/audit-logs?action=DELETE", nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var page pageResponse
		s.decode(rec, &page)
		s.Require().Len(page.Items, 1)
		s.Equal(del.ID.String(), page.Items[0].ID)
		s.True(page.Items[0].RequiresReview)
		s.Nil(page.Items[0].ReviewedBy)
	})

	s.Run("rejects unknown action", func() {
		rec := s.do(http.MethodGet, "/api/audit-logs?action=DESTROY", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("rejects malformed date", func() {
		rec := s.do(http.MethodGet, "/api/audit-logs?startDate=yesterday", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("rejects inverted date range", func() {
		rec := s.do(http.MethodGet, "/api/audit-logs?startDate=2026-03-11&endDate=2026-03-10", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("rejects non-boolean flag", func() {
		rec := s.do(http.MethodGet, "/api/audit-logs?isSuspicious=maybe", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("accepts combined filters", func() {
		rec := s.do(http.MethodGet,
			"/api/audit-logs?entityType=PATIENT&requiresReview=true&startDate=2026-03-10&endDate=2026-03-11", nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var page pageResponse
		s.decode(rec, &page)
		s.Equal(1, page.Total)
	})
}

func (s *HandlerSuite) TestGetEndpoint() {
	record := s.ingest(s.event(models.ActionRead, models.EntityInventory))

	s.Run("returns the record", func() {
		rec := s.do(http.MethodGet, "/api/audit-logs/"+record.ID.String(), nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var got recordResponse
		s.decode(rec, &got)
		s.Equal(record.ID.String(), got.ID)
		s.Equal("READ", got.Action)
		s.False(got.RequiresReview)
	})

	s.Run("unknown id is 404", func() {
		rec := s.do(http.MethodGet, "/api/audit-logs/"+uuid.NewString(), nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("malformed id is 400", func() {
		rec := s.do(http.MethodGet, "/api/audit-logs/not-a-uuid", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestStatisticsEndpoint() {
	s.ingest(s.event(models.ActionCreate, models.EntityAppointment))
	s.ingest(s.event(models.ActionDelete, models.EntityPatient))

	rec := s.do(http.MethodGet, "/api/audit-logs/statistics", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var stats statisticsResponse
	s.decode(rec, &stats)
	s.Equal(2, stats.TotalLogs)
	s.Equal(1, stats.ByAction["CREATE"])
	s.Equal(1, stats.ByAction["DELETE"])
	s.Equal(1, stats.SensitiveAccessCount)
}

func (s *HandlerSuite) TestReviewEndpoint() {
	pending := func() *models.AuditRecord {
		record := s.ingest(s.event(models.ActionDelete, models.EntityPatient))
		s.Require().True(record.RequiresReview())
		return record
	}

	s.Run("reviews with explicit reviewer", func() {
		record := pending()
		reviewer := uuid.NewString()
		body := strings.NewReader(`{"reviewedBy":"` + reviewer + `"}`)

		rec := s.do(http.MethodPost, "/api/audit-logs/"+record.ID.String()+"/review", body)
		s.Require().Equal(http.StatusOK, rec.Code)

		var got recordResponse
		s.decode(rec, &got)
		s.True(got.RequiresReview)
		s.Require().NotNil(got.ReviewedBy)
		s.Equal(reviewer, *got.ReviewedBy)
		s.Require().NotNil(got.ReviewedAt)
	})

	s.Run("defaults reviewer to the authenticated actor", func() {
		record := pending()

		rec := s.do(http.MethodPost, "/api/audit-logs/"+record.ID.String()+"/review", nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var got recordResponse
		s.decode(rec, &got)
		s.Require().NotNil(got.ReviewedBy)
		s.Equal(s.user.String(), *got.ReviewedBy)
	})

	s.Run("second review is 409", func() {
		record := pending()
		rec := s.do(http.MethodPost, "/api/audit-logs/"+record.ID.String()+"/review", nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		rec = s.do(http.MethodPost, "/api/audit-logs/"+record.ID.String()+"/review", nil)
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("record not requiring review is 409", func() {
		record := s.ingest(s.event(models.ActionRead, models.EntityInventory))

		rec := s.do(http.MethodPost, "/api/audit-logs/"+record.ID.String()+"/review", nil)
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("unknown record is 404", func() {
		rec := s.do(http.MethodPost, "/api/audit-logs/"+uuid.NewString()+"/review", nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("malformed body is 400", func() {
		record := pending()
		body := strings.NewReader(`{"reviewedBy":`)

		rec := s.do(http.MethodPost, "/api/audit-logs/"+record.ID.String()+"/review", body)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}
