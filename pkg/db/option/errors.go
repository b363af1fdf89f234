package option

import (
	"fmt"
	"strings"
)

// FieldError reports one rejected listing parameter, e.g. "filters.2".
type FieldError struct {
	Field   string
	Message string
}

// ValidationErrors collects every rejected listing parameter of a request.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(parts, ", ")
}

func (v *ValidationErrors) add(field, message string) {
	*v = append(*v, FieldError{Field: field, Message: message})
}
