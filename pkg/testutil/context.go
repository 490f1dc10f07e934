// Package testutil holds helpers shared by unit and integration tests.
package testutil

import (
	"context"
	"net/http"
	"time"

	id "caretrail/pkg/domain"
	"caretrail/pkg/requestcontext"
)

// AuthContext builds a context carrying the tenant scope and actor the auth
// middleware would have injected for an authenticated request.
func AuthContext(tenantID id.TenantID, userID id.UserID) context.Context {
	ctx := requestcontext.WithTenantID(context.Background(), tenantID)
	return requestcontext.WithActor(ctx, userID, "tester@clinic.test", "ADMIN")
}

// AuthContextAt is AuthContext with a pinned request clock.
func AuthContextAt(tenantID id.TenantID, userID id.UserID, at time.Time) context.Context {
	return requestcontext.WithTime(AuthContext(tenantID, userID), at)
}

// RequestWithAuth simulates the auth middleware on an outgoing test request.
func RequestWithAuth(req *http.Request, tenantID id.TenantID, userID id.UserID) *http.Request {
	ctx := requestcontext.WithTenantID(req.Context(), tenantID)
	ctx = requestcontext.WithActor(ctx, userID, "tester@clinic.test", "ADMIN")
	return req.WithContext(ctx)
}
