// Package validation provides request input validation helpers for handlers.
package validation

import (
	"fmt"
	"strings"
)

// FieldError describes a single invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is a list of field errors.
type Errors []FieldError

// Error joins all field errors into one message.
func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return strings.Join(parts, "; ")
}

// Check is a single validation; nil means valid.
type Check func() *FieldError

// Validate runs all checks and collects the failures.
func Validate(checks ...Check) Errors {
	var errs Errors
	for _, check := range checks {
		if fe := check(); fe != nil {
			errs = append(errs, *fe)
		}
	}
	return errs
}

// Required fails when value is empty or whitespace.
func Required(field, value string) Check {
	return func() *FieldError {
		if strings.TrimSpace(value) == "" {
			return &FieldError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// NonNegative fails when value is below zero.
func NonNegative(field string, value int64) Check {
	return func() *FieldError {
		if value < 0 {
			return &FieldError{Field: field, Message: "must not be negative"}
		}
		return nil
	}
}

// MaxLen fails when value exceeds n characters.
func MaxLen(field, value string, n int) Check {
	return func() *FieldError {
		if len(value) > n {
			return &FieldError{Field: field, Message: fmt.Sprintf("must be at most %d characters", n)}
		}
		return nil
	}
}

// Currency fails unless value is a three-letter uppercase code.
func Currency(field, value string) Check {
	return func() *FieldError {
		if len(value) != 3 {
			return &FieldError{Field: field, Message: "must be a 3-letter currency code"}
		}
		for _, r := range value {
			if r < 'A' || r > 'Z' {
				return &FieldError{Field: field, Message: "must be a 3-letter currency code"}
			}
		}
		return nil
	}
}
