// Package apierror provides the typed error taxonomy shared by the domain
// services and the canonical error envelope for all 4xx/5xx HTTP responses.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error into one of the recoverable categories the
// service layer is allowed to surface. Every kind maps to exactly one
// HTTP status code.
type Kind int

const (
	// KindValidation — malformed input: blank name, negative price,
	// out-of-range coordinate.
	KindValidation Kind = iota
	// KindNotFound — referenced id does not exist or is not visible
	// to the caller.
	KindNotFound
	// KindPermission — non-moderator attempting approve/reject/delete.
	KindPermission
	// KindInvalidState — moderation transition attempted from the wrong
	// status (e.g. approving an already-approved entity).
	KindInvalidState
	// KindCycle — category reparent would create a cycle.
	KindCycle
	// KindHasChildren — deleting a category that still has subcategories.
	KindHasChildren
	// KindNoData — price comparison requested for a product with zero
	// approved prices.
	KindNoData
	// KindInvalidTransition — illegal receipt status change.
	KindInvalidTransition
	// KindUnavailable — a collaborator (DB, cache, OCR sidecar) is
	// unreachable; callers should retry with backoff.
	KindUnavailable
)

// HTTPStatus returns the status code a handler should use for this kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound, KindNoData:
		return http.StatusNotFound
	case KindPermission:
		return http.StatusForbidden
	case KindInvalidState, KindCycle, KindHasChildren, KindInvalidTransition:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the typed error returned by every service operation.
type Error struct {
	Kind   Kind
	Detail string
	Fields map[string]string
}

func (e *Error) Error() string { return e.Detail }

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

func Permission(format string, args ...any) *Error {
	return newError(KindPermission, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return newError(KindInvalidState, format, args...)
}

func Cycle(format string, args ...any) *Error {
	return newError(KindCycle, format, args...)
}

func HasChildren(format string, args ...any) *Error {
	return newError(KindHasChildren, format, args...)
}

func NoData(format string, args ...any) *Error {
	return newError(KindNoData, format, args...)
}

func InvalidTransition(format string, args ...any) *Error {
	return newError(KindInvalidTransition, format, args...)
}

func Unavailable(format string, args ...any) *Error {
	return newError(KindUnavailable, format, args...)
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// ── HTTP envelope ─────────────────────────────────────────────────────────────

// Response is the canonical error envelope for all 4xx/5xx HTTP responses.
type Response struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
}

func New(msg string) *Response {
	return &Response{Detail: msg}
}

// NewValidation wraps multiple field errors.
func NewValidation(fields map[string]string) *Response {
	return &Response{Detail: "Validation error", Fields: fields}
}

// Envelope converts any error into the client-safe response plus status code.
// Unknown errors collapse to a generic 500 so internals never leak.
func Envelope(err error) (int, *Response) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind.HTTPStatus(), &Response{Detail: e.Detail, Fields: e.Fields}
	}
	return http.StatusInternalServerError, New("Internal server error")
}
