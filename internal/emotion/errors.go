package emotion

import (
	"fmt"

	"github.com/tphakala/petmood/internal/errors"
)

// Sentinels matched with errors.Is by callers mapping detector failures.
var (
	ErrDecode           = errors.NewStd("image could not be decoded")
	ErrModelUnavailable = errors.NewStd("emotion model is not available")
	ErrInference        = errors.NewStd("emotion inference failed")
)

// DecodeError reports bytes that are not a supported image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

func (e *DecodeError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryImageDecode
}

// ModelUnavailableError is returned by a detector whose model failed to load.
type ModelUnavailableError struct {
	Species Species
	Reason  string
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("%s emotion model unavailable: %s", e.Species, e.Reason)
}

func (e *ModelUnavailableError) Unwrap() error {
	return ErrModelUnavailable
}

func (e *ModelUnavailableError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryModelLoad
}

// InferenceError wraps a backend failure or a malformed model output.
type InferenceError struct {
	Species Species
	Err     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s emotion inference: %v", e.Species, e.Err)
}

func (e *InferenceError) Unwrap() []error {
	return []error{ErrInference, e.Err}
}

func (e *InferenceError) ErrorCategory() errors.ErrorCategory {
	return errors.CategoryInference
}

// errorKind returns a short label for metrics.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrModelUnavailable):
		return "unavailable"
	default:
		return "inference"
	}
}
