// Package domain holds typed identifiers shared across the module. Distinct
// UUID wrapper types make cross-type assignment a compile error, which is the
// cheapest tenant-isolation guarantee we have.
package domain

import (
	"github.com/google/uuid"

	dErrors "caretrail/pkg/domain-errors"
)

// TenantID identifies an isolated hospital/organization.
type TenantID uuid.UUID

// UserID identifies an actor (human or system).
type UserID uuid.UUID

// RecordID identifies one audit record.
type RecordID uuid.UUID

// SystemUserID is the sentinel actor for non-human triggers (schedulers,
// migrations, integrations). Ingestion never silently omits the actor; callers
// without a human identity use this instead.
var SystemUserID = UserID(uuid.MustParse("00000000-0000-0000-0000-000000000001"))

func (t TenantID) IsNil() bool    { return uuid.UUID(t) == uuid.Nil }
func (t TenantID) String() string { return uuid.UUID(t).String() }

// MarshalText/UnmarshalText keep the wrappers JSON-compatible with the
// canonical UUID string form.
func (t TenantID) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TenantID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*t = TenantID(u)
	return nil
}

func (u UserID) IsNil() bool    { return uuid.UUID(u) == uuid.Nil }
func (u UserID) String() string { return uuid.UUID(u).String() }

func (u UserID) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

func (u *UserID) UnmarshalText(b []byte) error {
	parsed, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*u = UserID(parsed)
	return nil
}

// IsSystem reports whether this actor is the system sentinel.
func (u UserID) IsSystem() bool { return u == SystemUserID }

func (r RecordID) IsNil() bool    { return uuid.UUID(r) == uuid.Nil }
func (r RecordID) String() string { return uuid.UUID(r).String() }

func (r RecordID) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *RecordID) UnmarshalText(b []byte) error {
	parsed, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*r = RecordID(parsed)
	return nil
}

// NewRecordID allocates a fresh record identifier.
func NewRecordID() RecordID { return RecordID(uuid.New()) }

// ParseTenantID parses and validates a tenant ID at a trust boundary.
func ParseTenantID(s string) (TenantID, error) {
	u, err := parse(s, "tenant id")
	return TenantID(u), err
}

// ParseUserID parses and validates a user ID at a trust boundary.
func ParseUserID(s string) (UserID, error) {
	u, err := parse(s, "user id")
	return UserID(u), err
}

// ParseRecordID parses and validates a record ID at a trust boundary.
func ParseRecordID(s string) (RecordID, error) {
	u, err := parse(s, "record id")
	return RecordID(u), err
}

// parse enforces the shared invariant: IDs must be valid, non-nil UUIDs.
func parse(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", what)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be the nil UUID", what)
	}
	return u, nil
}
