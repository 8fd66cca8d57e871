package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a category of failure surfaced by the core engines.
// Handlers map kinds to HTTP statuses; the engines never recover internally.
type Kind string

const (
	NoWorkspaceSelected       Kind = "no_workspace_selected"
	WorkspaceInactive         Kind = "workspace_inactive"
	PermissionDenied          Kind = "permission_denied"
	InvalidSourceStatus       Kind = "invalid_source_status"
	GuardFailed               Kind = "guard_failed"
	RequiredFieldMissing      Kind = "required_field_missing"
	RequiredAttachmentMissing Kind = "required_attachment_missing"
	PayloadInvalid            Kind = "payload_invalid"
	RigidFieldEdit            Kind = "rigid_field_edit"
	ConflictingTransition     Kind = "conflicting_transition"
	ExternalSystemUnavailable Kind = "external_system_unavailable"
	NotFound                  Kind = "not_found"
	AlreadyExists             Kind = "already_exists"
	Unauthenticated           Kind = "unauthenticated"
	Internal                  Kind = "internal"
)

// Error is the error type every core subsystem returns. Field is set for
// field-scoped kinds (required_field_missing, rigid_field_edit, ...).
type Error struct {
	Kind   Kind
	Detail string
	Field  string
	Err    error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Kind, e.Detail, e.Field)
	}
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Newf builds an Error with a formatted detail message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// WithField builds a field-scoped Error.
func WithField(kind Kind, field, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, Field: field}
}

// Wrap attaches an underlying cause to a new Error.
func Wrap(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf extracts the Kind from any error in the chain; unknown errors
// report Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is lets errors.Is match on kind equality.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// HTTPStatus maps an error kind to the status code the boundary returns.
func HTTPStatus(kind Kind) int {
	switch kind {
	case Unauthenticated:
		return http.StatusUnauthorized
	case PermissionDenied, WorkspaceInactive, RigidFieldEdit:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case AlreadyExists, ConflictingTransition, InvalidSourceStatus:
		return http.StatusConflict
	case NoWorkspaceSelected, GuardFailed, RequiredFieldMissing,
		RequiredAttachmentMissing, PayloadInvalid:
		return http.StatusBadRequest
	case ExternalSystemUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
