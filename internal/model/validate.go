package model

import (
	"fmt"
	"strings"
)

// Hex lengths of the fixed-size event fields.
const (
	idHexLen  = 64
	sigHexLen = 128
)

// ValidationError collects every field problem found in one pass so a client
// sees all of them in a single OK or NOTICE.
type ValidationError struct {
	Errors []FieldError
}

// FieldError is one failed check.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any check failed.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Addf records a failure on field.
func (e *ValidationError) Addf(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Fields lists the failed field names in order, with repeats collapsed.
func (e *ValidationError) Fields() []string {
	var out []string
	for _, fe := range e.Errors {
		if len(out) == 0 || out[len(out)-1] != fe.Field {
			out = append(out, fe.Field)
		}
	}
	return out
}

// Err returns e when a check failed and a nil error otherwise, so callers
// never hand back a typed nil.
func (e *ValidationError) Err() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

// ValidateEvent checks the structural shape of an event: hex lengths of id,
// pubkey and sig. It does not check the hash or signature.
func ValidateEvent(e *Event) error {
	var ve ValidationError
	if !isHex(e.ID, idHexLen) {
		ve.Addf("id", "must be %d lowercase hex characters", idHexLen)
	}
	if !isHex(e.PubKey, idHexLen) {
		ve.Addf("pubkey", "must be %d lowercase hex characters", idHexLen)
	}
	if !isHex(e.Sig, sigHexLen) {
		ve.Addf("sig", "must be %d lowercase hex characters", sigHexLen)
	}
	if e.Kind < 0 {
		ve.Addf("kind", "must be non-negative, got %d", e.Kind)
	}
	return ve.Err()
}

// IsHexKey reports whether s is a 32-byte lowercase hex string.
func IsHexKey(s string) bool {
	return isHex(s, idHexLen)
}

func isHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
