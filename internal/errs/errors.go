// Package errs defines the error taxonomy shared by every service
// layer. Business-state scan outcomes (already used, unknown ticket)
// are deliberately NOT errors; they are modelled as ScanOutcome values
// by the ticket service. Everything here maps to a stable machine
// readable code and an HTTP status at the API boundary.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
)

type Error struct {
	Kind       Kind
	Code       string
	Message    string
	Violations []string
	Err        error
}

func (e *Error) Error() string {
	if len(e.Violations) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Violations, "; "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Validation collects every violation found in a request, not just the
// first one.
func Validation(violations ...string) *Error {
	return &Error{
		Kind:       KindValidation,
		Code:       "validation_failed",
		Message:    "validation failed",
		Violations: violations,
	}
}

func Authentication(code, message string) *Error {
	return &Error{Kind: KindAuthentication, Code: code, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindAuthorization, Code: "forbidden", Message: message}
}

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Code: "not_found", Message: what + " not found"}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Code: "conflict", Message: message}
}

// As unwraps err into *Error if it carries one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func IsKind(err error, kind Kind) bool {
	if e, ok := As(err); ok {
		return e.Kind == kind
	}
	return false
}

func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }
func IsConflict(err error) bool { return IsKind(err, KindConflict) }

// StatusFor maps any error to an HTTP status. Unclassified errors are
// infrastructure faults and surface as 500.
func StatusFor(err error) int {
	if e, ok := As(err); ok {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// CodeFor returns the stable machine-checkable category for a response
// body.
func CodeFor(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return "internal_error"
}
