// Package redact removes sensitive values from change payloads before they
// reach the ledger. Keys always survive; only values are replaced, so the
// dashboard still shows which fields changed.
package redact

import "strings"

// Marker replaces redacted values. Redaction is idempotent: re-redacting a
// payload that already carries the marker changes nothing.
const Marker = "[REDACTED]"

// DefaultFields is the baseline sensitive field set. Matching is
// case-insensitive on the full key name.
var DefaultFields = []string{
	"password",
	"passwordHash",
	"secret",
	"token",
	"apiKey",
	"ssn",
	"nationalId",
	"insuranceNumber",
	"creditCard",
	"cardNumber",
	"cvv",
}

// Redactor replaces configured field values with the marker.
type Redactor struct {
	fields map[string]struct{}
}

// New builds a Redactor over the given field names. Empty input falls back
// to DefaultFields.
func New(fields []string) *Redactor {
	if len(fields) == 0 {
		fields = DefaultFields
	}
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.ToLower(f)] = struct{}{}
	}
	return &Redactor{fields: set}
}

// Map returns a copy of m with sensitive values replaced. Nested maps are
// walked recursively; the input is never mutated, since the caller's payload
// may be a live domain object. Nil input returns nil.
func (r *Redactor) Map(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if _, sensitive := r.fields[strings.ToLower(k)]; sensitive {
			out[k] = Marker
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = r.Map(nested)
			continue
		}
		out[k] = v
	}
	return out
}
