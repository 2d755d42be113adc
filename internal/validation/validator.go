// Curator - Event-Sourced Personal Media Catalog
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curator

// Package validation provides struct validation using go-playground/validator
// v10 through a thread-safe singleton instance, plus custom validators for
// catalog-specific value formats (hex digests, perceptual hashes).
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the singleton, registering custom validators on
// first use.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// hexdigest: lowercase or uppercase hex of any even length,
		// used for sha256 and head-hash fields.
		_ = validate.RegisterValidation("hexdigest", func(fl validator.FieldLevel) bool {
			return isHex(fl.Field().String()) && len(fl.Field().String())%2 == 0
		})

		// phash: a 64-bit perceptual hash in its 16-hex storage form.
		_ = validate.RegisterValidation("phash", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return len(s) == 16 && isHex(s)
		})
	})
	return validate
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// FieldError is a single field validation failure.
type FieldError struct {
	Field string
	Tag   string
	Param string
}

// Error returns a human-readable message.
func (e FieldError) Error() string {
	field := e.Field
	if field == "" {
		field = "value"
	}
	if e.Param != "" {
		return fmt.Sprintf("field %s failed %s=%s validation", field, e.Tag, e.Param)
	}
	return fmt.Sprintf("field %s failed %s validation", field, e.Tag)
}

// Errors aggregates all field failures from one struct validation.
type Errors []FieldError

// Error joins the individual messages.
func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}
	return strings.Join(msgs, "; ")
}

// Var validates a single value against one tag, e.g. Var(s, "phash").
func Var(value any, tag string) error {
	err := getValidator().Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	return FieldError{Tag: tag}
}

// ValidateStruct validates s against its validate tags. Returns nil on
// success, an Errors value listing every failed field otherwise.
func ValidateStruct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return fmt.Errorf("validation: invalid argument: %w", err)
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field: fe.Namespace(),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}
