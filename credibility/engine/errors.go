package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrNotFound = errors.New("not found")

// Input rejected before any state was touched. Fields maps input field names
// to human-readable problems.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Returns nil if no problems were recorded.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

type validator struct {
	ValidationError
}

func (v *validator) required(field, val string) bool {
	if strings.TrimSpace(val) == "" {
		v.Add(field, fmt.Sprintf("The %s field is required.", field))
		return false
	}
	return true
}

func (v *validator) maxLen(field, val string, n int) {
	if len(val) > n {
		v.Add(field, fmt.Sprintf("The %s field must not be greater than %d characters.", field, n))
	}
}

func (v *validator) nonNegative(field string, val int64) {
	if val < 0 {
		v.Add(field, fmt.Sprintf("The %s field must be at least 0.", field))
	}
}
