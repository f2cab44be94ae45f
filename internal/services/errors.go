package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDatasource    = errors.New("datasource error")
	ErrFormat        = errors.New("format error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

var markers = []error{
	ErrDatasource,
	ErrFormat,
	ErrValidation,
	ErrConfiguration,
	ErrNotFound,
	ErrTransient,
}

// Wrap builds an error message that includes unit context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, unit, operation, message string, err error) error {
	detail := buildDetail(unit, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return &wrappedError{marker: marker, unit: strings.TrimSpace(unit), message: strings.TrimSpace(message), err: fmt.Errorf("%w: %s: %w", marker, detail, err)}
	}
	return &wrappedError{marker: marker, unit: strings.TrimSpace(unit), message: strings.TrimSpace(message), err: fmt.Errorf("%w: %s", marker, detail)}
}

type wrappedError struct {
	marker  error
	unit    string
	message string
	err     error
}

func (e *wrappedError) Error() string { return e.err.Error() }

func (e *wrappedError) Unwrap() error { return e.err }

// ErrorDetails is the user-facing summary of a wrapped failure.
type ErrorDetails struct {
	Kind    string
	Unit    string
	Message string
}

// Details extracts the marker, unit and message recorded by Wrap. Errors that
// were not produced by Wrap report their full text as the message.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var wrapped *wrappedError
	if errors.As(err, &wrapped) {
		msg := wrapped.message
		if msg == "" {
			msg = err.Error()
		}
		return ErrorDetails{Kind: wrapped.marker.Error(), Unit: wrapped.unit, Message: msg}
	}
	for _, marker := range markers {
		if errors.Is(err, marker) {
			return ErrorDetails{Kind: marker.Error(), Message: err.Error()}
		}
	}
	return ErrorDetails{Kind: ErrTransient.Error(), Message: err.Error()}
}

func buildDetail(unit, operation, message string) string {
	parts := make([]string, 0, 3)
	if unit = strings.TrimSpace(unit); unit != "" {
		parts = append(parts, unit)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "unit failure"
	}
	return strings.Join(parts, ": ")
}
