package models

import (
	"strings"

	dErrors "caretrail/pkg/domain-errors"
)

// Action is the enumerated verb describing what the actor did.
type Action string

const (
	ActionCreate           Action = "CREATE"
	ActionUpdate           Action = "UPDATE"
	ActionDelete           Action = "DELETE"
	ActionRead             Action = "READ"
	ActionExport           Action = "EXPORT"
	ActionLogin            Action = "LOGIN"
	ActionLoginFailed      Action = "LOGIN_FAILED"
	ActionLogout           Action = "LOGOUT"
	ActionPasswordChange   Action = "PASSWORD_CHANGE"
	ActionPermissionChange Action = "PERMISSION_CHANGE"
	ActionRoleChange       Action = "ROLE_CHANGE"
)

var knownActions = map[Action]struct{}{
	ActionCreate:           {},
	ActionUpdate:           {},
	ActionDelete:           {},
	ActionRead:             {},
	ActionExport:           {},
	ActionLogin:            {},
	ActionLoginFailed:      {},
	ActionLogout:           {},
	ActionPasswordChange:   {},
	ActionPermissionChange: {},
	ActionRoleChange:       {},
}

// ParseAction validates a raw action string at a trust boundary.
// Unknown values fail with an invalid-input error, never a silent default.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := knownActions[a]; !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown action %q", s)
	}
	return a, nil
}

// Valid reports whether the action is a member of the enumeration.
func (a Action) Valid() bool {
	_, ok := knownActions[a]
	return ok
}

// IsMutation reports whether the action destructively changes state.
// Used by the mutation-burst heuristic.
func (a Action) IsMutation() bool {
	return a == ActionDelete || a == ActionUpdate
}

// IsAccess reports whether the action is a read or export of data.
func (a Action) IsAccess() bool {
	return a == ActionRead || a == ActionExport
}

// EntityType is the enumerated domain class the action touched.
type EntityType string

const (
	EntityPatient       EntityType = "PATIENT"
	EntityMedicalRecord EntityType = "MEDICAL_RECORD"
	EntityPrescription  EntityType = "PRESCRIPTION"
	EntityLabResult     EntityType = "LAB_RESULT"
	EntityBilling       EntityType = "BILLING"
	EntityInsurance     EntityType = "INSURANCE"
	EntityStaff         EntityType = "STAFF"
	EntityInventory     EntityType = "INVENTORY"
	EntityAppointment   EntityType = "APPOINTMENT"
	EntitySurgery       EntityType = "SURGERY"
	EntityUser          EntityType = "USER"
	EntitySystem        EntityType = "SYSTEM"
)

var knownEntityTypes = map[EntityType]struct{}{
	EntityPatient:       {},
	EntityMedicalRecord: {},
	EntityPrescription:  {},
	EntityLabResult:     {},
	EntityBilling:       {},
	EntityInsurance:     {},
	EntityStaff:         {},
	EntityInventory:     {},
	EntityAppointment:   {},
	EntitySurgery:       {},
	EntityUser:          {},
	EntitySystem:        {},
}

// ParseEntityType validates a raw entity type string at a trust boundary.
func ParseEntityType(s string) (EntityType, error) {
	e := EntityType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := knownEntityTypes[e]; !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown entity type %q", s)
	}
	return e, nil
}

// Valid reports whether the entity type is a member of the enumeration.
func (e EntityType) Valid() bool {
	_, ok := knownEntityTypes[e]
	return ok
}
