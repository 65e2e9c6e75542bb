// Package repository provides the history and pet repositories on top of
// the datastore connection.
package repository

import (
	"fmt"

	"github.com/tphakala/petmood/internal/errors"
)

// Sentinel errors for repository operations.
var (
	// ErrPetNotFound indicates the referenced pet does not exist.
	ErrPetNotFound = errors.NewStd("pet not found")

	// ErrUnknownSpecies indicates a species without a history table.
	ErrUnknownSpecies = errors.NewStd("unknown species")

	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.NewStd("invalid input")
)

// PersistenceError wraps a storage failure that is not one of the sentinels.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryDatabase
}
