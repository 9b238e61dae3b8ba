package event

import (
	"fmt"
	"strings"

	"docpipe/internal/errs"
)

// RequireFields checks that every field is present in data with a non-nil,
// non-empty-string value. Zero numbers and false booleans count as present.
//
// The returned *errs.ValidationError lists every missing field; its Field is the
// first missing one in the order given.
func RequireFields(data map[string]any, fields ...string) error {
	var missing []string
	for _, field := range fields {
		if isMissing(data, field) {
			missing = append(missing, field)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return errs.NewValidationError(missing[0], fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")))
}

func isMissing(data map[string]any, field string) bool {
	value, ok := data[field]
	if !ok || value == nil {
		return true
	}
	if s, ok := value.(string); ok && s == "" {
		return true
	}
	return false
}
