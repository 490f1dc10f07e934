package models

import "strings"

// matchesSearch implements the free-text predicate: case-insensitive
// substring over description, email, entity ID and action.
func matchesSearch(r *AuditRecord, q string) bool {
	q = strings.ToLower(q)
	for _, field := range []string{
		r.Description,
		r.Email,
		r.EntityID,
		string(r.Action),
	} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
