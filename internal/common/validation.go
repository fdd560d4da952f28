package common

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// ValidationRule checks one value and returns nil when it passes.
type ValidationRule func(field string, value any) *ValidationError

// Validator collects rule failures across fields.
type Validator struct {
	errors []ValidationError
}

func NewValidator() *Validator {
	return &Validator{errors: make([]ValidationError, 0)}
}

// Field validates a field and collects errors
func (v *Validator) Field(fieldName string, value any, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// Error joins all collected failures, or returns nil.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	errs := make([]error, 0, len(v.errors))
	for _, e := range v.errors {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

// Required fails on empty or whitespace-only strings.
func Required() ValidationRule {
	return func(field string, value any) *ValidationError {
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			return &ValidationError{Field: field, Value: value, Message: "is required"}
		}
		return nil
	}
}

// OneOf fails when a string value is not one of allowed.
func OneOf(allowed ...string) ValidationRule {
	return func(field string, value any) *ValidationError {
		s, _ := value.(string)
		if !slices.Contains(allowed, s) {
			return &ValidationError{Field: field, Value: value, Message: "must be one of " + strings.Join(allowed, ", ")}
		}
		return nil
	}
}
