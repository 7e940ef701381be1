// internal/services/errors.go
package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrMalformedPayload = errors.New("malformed form payload")
	ErrUploadFailed     = errors.New("image upload failed")
	ErrProductNotFound  = errors.New("product not found")
	ErrProductHasOrders = errors.New("product has orders")
	ErrInvalidLogin     = errors.New("invalid email or password")
)

// ValidationError carries every violated rule, keyed by form field.
type ValidationError struct {
	Fields map[string][]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], message)
}

func (e *ValidationError) empty() bool {
	return len(e.Fields) == 0
}

// PersistenceError wraps a failed store operation; Op names the step.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
