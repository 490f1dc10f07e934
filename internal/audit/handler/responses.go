package handler

import (
	"time"

	"caretrail/internal/audit/models"
)

// recordResponse is the dashboard's flat record shape. The review variant is
// projected onto {requiresReview, reviewedBy, reviewedAt}; reviewedBy and
// reviewedAt are null until a review lands.
type recordResponse struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`

	Action      string `json:"action"`
	EntityType  string `json:"entityType"`
	EntityID    string `json:"entityId,omitempty"`
	Description string `json:"description,omitempty"`

	Method     string `json:"method,omitempty"`
	Endpoint   string `json:"endpoint,omitempty"`
	StatusCode int    `json:"statusCode,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`

	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	Device    string `json:"device,omitempty"`
	Browser   string `json:"browser,omitempty"`
	Location  string `json:"location,omitempty"`

	OldValues map[string]any `json:"oldValues,omitempty"`
	NewValues map[string]any `json:"newValues,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	IsSensitive  bool     `json:"isSensitive"`
	IsSuspicious bool     `json:"isSuspicious"`
	RiskScore    int      `json:"riskScore"`
	RiskReasons  []string `json:"riskReasons,omitempty"`

	RequiresReview bool       `json:"requiresReview"`
	ReviewedBy     *string    `json:"reviewedBy"`
	ReviewedAt     *time.Time `json:"reviewedAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type pageResponse struct {
	Items []recordResponse `json:"items"`
	Total int              `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
	Pages int              `json:"pages"`
}

type statisticsResponse struct {
	TotalLogs            int            `json:"totalLogs"`
	ByAction             map[string]int `json:"byAction"`
	ByEntityType         map[string]int `json:"byEntityType"`
	SuspiciousCount      int            `json:"suspiciousCount"`
	SensitiveAccessCount int            `json:"sensitiveAccessCount"`
}

func toRecordResponse(r *models.AuditRecord) recordResponse {
	resp := recordResponse{
		ID:       r.ID.String(),
		TenantID: r.TenantID.String(),

		UserID: r.UserID.String(),
		Email:  r.Email,
		Role:   r.Role,

		Action:      string(r.Action),
		EntityType:  string(r.EntityType),
		EntityID:    r.EntityID,
		Description: r.Description,

		Method:     r.Method,
		Endpoint:   r.Endpoint,
		StatusCode: r.StatusCode,
		DurationMs: r.DurationMs,

		IPAddress: r.IPAddress,
		UserAgent: r.UserAgent,
		Device:    r.Device,
		Browser:   r.Browser,
		Location:  r.Location,

		OldValues: r.OldValues,
		NewValues: r.NewValues,
		Metadata:  r.Metadata,

		IsSensitive:  r.IsSensitive,
		IsSuspicious: r.IsSuspicious,
		RiskScore:    r.RiskScore,
		RiskReasons:  r.RiskReasons,

		RequiresReview: r.RequiresReview(),

		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Review.ReviewedBy != nil {
		reviewer := r.Review.ReviewedBy.String()
		resp.ReviewedBy = &reviewer
	}
	resp.ReviewedAt = r.Review.ReviewedAt
	return resp
}

func toPageResponse(p *models.Page) pageResponse {
	items := make([]recordResponse, 0, len(p.Items))
	for _, r := range p.Items {
		items = append(items, toRecordResponse(r))
	}
	return pageResponse{
		Items: items,
		Total: p.Total,
		Page:  p.Page,
		Limit: p.Limit,
		Pages: p.Pages,
	}
}

func toStatisticsResponse(s *models.Statistics) statisticsResponse {
	byAction := make(map[string]int, len(s.ByAction))
	for action, n := range s.ByAction {
		byAction[string(action)] = n
	}
	byEntityType := make(map[string]int, len(s.ByEntityType))
	for entityType, n := range s.ByEntityType {
		byEntityType[string(entityType)] = n
	}
	return statisticsResponse{
		TotalLogs:            s.TotalLogs,
		ByAction:             byAction,
		ByEntityType:         byEntityType,
		SuspiciousCount:      s.SuspiciousCount,
		SensitiveAccessCount: s.SensitiveAccessCount,
	}
}
