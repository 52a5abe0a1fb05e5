// Package model defines the entity records managed by databridge and their
// local validation rules.
package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Entity is a flat record with an optional server-assigned identity.
type Entity interface {
	// Key returns the persisted identity, or 0 for a record that has not been
	// created on the server yet.
	Key() int64
	// Label is a short human name used in prompts.
	Label() string
	// Validate checks the record locally. It returns nil or an error wrapping
	// one *FieldError per failing field.
	Validate() error
}

// Persisted reports whether e carries a server-assigned identity.
func Persisted(e Entity) bool {
	return e.Key() != 0
}

// FieldError is a validation failure attached to one record field. Field is
// the wire name of the field.
type FieldError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// FieldErrors flattens a validation error into a field -> message map. The
// first message wins when a field fails more than once.
func FieldErrors(err error) map[string]string {
	fields := make(map[string]string)
	if err == nil {
		return fields
	}

	var merr *multierror.Error
	errs := []error{err}
	if errors.As(err, &merr) {
		errs = merr.Errors
	}
	for _, e := range errs {
		var fe *FieldError
		if errors.As(e, &fe) {
			if _, ok := fields[fe.Field]; !ok {
				fields[fe.Field] = fe.Message
			}
		}
	}
	return fields
}

// validator accumulates field errors.
type validator struct {
	err *multierror.Error
}

func (v *validator) required(field, value, message string) {
	if strings.TrimSpace(value) == "" {
		v.fail(field, message)
	}
}

func (v *validator) check(ok bool, field, message string) {
	if !ok {
		v.fail(field, message)
	}
}

func (v *validator) fail(field, message string) {
	v.err = multierror.Append(v.err, &FieldError{Field: field, Message: message})
}

func (v *validator) result() error {
	return v.err.ErrorOrNil()
}
