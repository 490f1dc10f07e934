// Package classify derives {isSensitive, isSuspicious, requiresReview,
// riskScore} from an event plus a bounded read of recent history.
//
// The engine is a pure function of (event, event time, history port). The
// clock enters as the explicit event timestamp and history enters as an
// injected read port into the log store, so classification stays
// deterministic and independently testable. History may be slightly stale
// under concurrent bursts; a missed suspicion is tolerable, a blocked write
// is not.
package classify

import (
	"context"
	"strings"
	"time"

	"caretrail/internal/audit/models"
	id "caretrail/pkg/domain"
)

// HistoryQuery is the bounded lookback the heuristics need. Zero-value
// constraints are ignored.
type HistoryQuery struct {
	Since     time.Time
	Actions   []models.Action
	UserID    id.UserID
	IPAddress string
}

// HistoryPort is the narrow read port into the log store. It is not a cache
// owned by this package; implementations live with the stores.
type HistoryPort interface {
	CountRecent(ctx context.Context, tenantID id.TenantID, q HistoryQuery) (int, error)
}

// Config holds the heuristic thresholds and the sensitive sets.
type Config struct {
	// SensitiveEntities marks entity types whose access is notable
	// regardless of action.
	SensitiveEntities map[models.EntityType]struct{}

	// SensitiveFields marks payload keys whose presence makes the action
	// sensitive even on a non-sensitive entity type.
	SensitiveFields map[string]struct{}

	// FailedLoginThreshold fires when at least this many LOGIN_FAILED
	// events (current one included) from the same actor or IP land within
	// FailedLoginWindow.
	FailedLoginThreshold int
	FailedLoginWindow    time.Duration

	// MutationThreshold fires when one actor performs at least this many
	// DELETE/UPDATE actions (current one included) within MutationWindow.
	MutationThreshold int
	MutationWindow    time.Duration

	// AccessHourStart/End bound the normal access window (UTC hours,
	// half-open). Sensitive reads outside it are flagged.
	AccessHourStart int
	AccessHourEnd   int
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		SensitiveEntities: map[models.EntityType]struct{}{
			models.EntityPatient:       {},
			models.EntityMedicalRecord: {},
			models.EntityPrescription:  {},
			models.EntityLabResult:     {},
			models.EntityBilling:       {},
			models.EntityInsurance:     {},
		},
		SensitiveFields: map[string]struct{}{
			"ssn":             {},
			"nationalid":      {},
			"diagnosis":       {},
			"insurancenumber": {},
		},
		FailedLoginThreshold: 5,
		FailedLoginWindow:    15 * time.Minute,
		MutationThreshold:    10,
		MutationWindow:       5 * time.Minute,
		AccessHourStart:      6,
		AccessHourEnd:        22,
	}
}

// Advisory heuristic weights. The score orders the review queue; it gates
// nothing.
const (
	weightFailedLogins  = 40
	weightOffHours      = 25
	weightCrossTenant   = 50
	weightMutationBurst = 30
	weightSensitive     = 10
	weightDestructive   = 15
)

// Heuristic reason labels, surfaced to reviewers on the record.
const (
	ReasonFailedLoginBurst = "repeated_failed_logins"
	ReasonOffHoursAccess   = "off_hours_sensitive_access"
	ReasonCrossTenant      = "cross_tenant_access"
	ReasonMutationBurst    = "mutation_burst"
)

// Engine applies the heuristics. Safe for concurrent use.
type Engine struct {
	cfg     Config
	history HistoryPort
}

func New(cfg Config, history HistoryPort) *Engine {
	return &Engine{cfg: cfg, history: history}
}

// Classify derives the record flags for ev as of the given event time.
//
// Malformed or missing optional fields never raise; each heuristic simply
// does not apply. History port failures are treated the same way: the write
// path must not stall on a degraded lookback.
func (e *Engine) Classify(ctx context.Context, ev models.RawEvent, at time.Time) models.Classification {
	var c models.Classification

	c.IsSensitive = e.isSensitive(ev)

	if fired, reason := e.failedLoginBurst(ctx, ev, at); fired {
		c.IsSuspicious = true
		c.RiskScore += weightFailedLogins
		c.Reasons = append(c.Reasons, reason)
	}
	if fired, reason := e.offHoursAccess(ev, at); fired {
		c.IsSuspicious = true
		c.RiskScore += weightOffHours
		c.Reasons = append(c.Reasons, reason)
	}
	if fired, reason := e.crossTenantAccess(ev); fired {
		c.IsSuspicious = true
		c.RiskScore += weightCrossTenant
		c.Reasons = append(c.Reasons, reason)
	}
	if fired, reason := e.mutationBurst(ctx, ev, at); fired {
		c.IsSuspicious = true
		c.RiskScore += weightMutationBurst
		c.Reasons = append(c.Reasons, reason)
	}

	if c.IsSensitive {
		c.RiskScore += weightSensitive
	}

	destructive := ev.Action == models.ActionDelete ||
		ev.Action == models.ActionPermissionChange ||
		ev.Action == models.ActionRoleChange
	if c.IsSensitive && destructive {
		c.RiskScore += weightDestructive
	}

	c.RequiresReview = c.IsSuspicious || (c.IsSensitive && destructive)
	return c
}

func (e *Engine) isSensitive(ev models.RawEvent) bool {
	if _, ok := e.cfg.SensitiveEntities[ev.EntityType]; ok {
		return true
	}
	return e.touchesSensitiveField(ev.OldValues) || e.touchesSensitiveField(ev.NewValues)
}

func (e *Engine) touchesSensitiveField(m map[string]any) bool {
	for k := range m {
		if _, ok := e.cfg.SensitiveFields[strings.ToLower(k)]; ok {
			return true
		}
	}
	return false
}

// failedLoginBurst: >= N LOGIN_FAILED from the same actor or IP within W.
// The current event counts toward the threshold.
func (e *Engine) failedLoginBurst(ctx context.Context, ev models.RawEvent, at time.Time) (bool, string) {
	if ev.Action != models.ActionLoginFailed {
		return false, ""
	}
	since := at.Add(-e.cfg.FailedLoginWindow)

	byActor := 0
	if !ev.UserID.IsNil() {
		n, err := e.history.CountRecent(ctx, ev.TenantID, HistoryQuery{
			Since:   since,
			Actions: []models.Action{models.ActionLoginFailed},
			UserID:  ev.UserID,
		})
		if err == nil {
			byActor = n
		}
	}

	byIP := 0
	if ev.IPAddress != "" {
		n, err := e.history.CountRecent(ctx, ev.TenantID, HistoryQuery{
			Since:     since,
			Actions:   []models.Action{models.ActionLoginFailed},
			IPAddress: ev.IPAddress,
		})
		if err == nil {
			byIP = n
		}
	}

	if byActor+1 >= e.cfg.FailedLoginThreshold || byIP+1 >= e.cfg.FailedLoginThreshold {
		return true, ReasonFailedLoginBurst
	}
	return false, ""
}

// offHoursAccess: READ/EXPORT of a sensitive entity type outside the normal
// access window.
func (e *Engine) offHoursAccess(ev models.RawEvent, at time.Time) (bool, string) {
	if !ev.Action.IsAccess() {
		return false, ""
	}
	if _, sensitive := e.cfg.SensitiveEntities[ev.EntityType]; !sensitive {
		return false, ""
	}
	hour := at.UTC().Hour()
	if hour >= e.cfg.AccessHourStart && hour < e.cfg.AccessHourEnd {
		return false, ""
	}
	return true, ReasonOffHoursAccess
}

// crossTenantAccess: the touched entity belongs to another tenant. Upstream
// isolation should make this impossible; flag it when it happens anyway.
func (e *Engine) crossTenantAccess(ev models.RawEvent) (bool, string) {
	if ev.EntityTenantID.IsNil() || ev.TenantID.IsNil() {
		return false, ""
	}
	if ev.EntityTenantID == ev.TenantID {
		return false, ""
	}
	return true, ReasonCrossTenant
}

// mutationBurst: unusually many DELETE/UPDATE actions by one actor in a
// short window.
func (e *Engine) mutationBurst(ctx context.Context, ev models.RawEvent, at time.Time) (bool, string) {
	if !ev.Action.IsMutation() || ev.UserID.IsNil() {
		return false, ""
	}
	n, err := e.history.CountRecent(ctx, ev.TenantID, HistoryQuery{
		Since:   at.Add(-e.cfg.MutationWindow),
		Actions: []models.Action{models.ActionDelete, models.ActionUpdate},
		UserID:  ev.UserID,
	})
	if err != nil {
		return false, ""
	}
	if n+1 >= e.cfg.MutationThreshold {
		return true, ReasonMutationBurst
	}
	return false, ""
}
