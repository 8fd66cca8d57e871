package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, NotFound, KindOf(New(NotFound, "gone")))
	assert.Equal(t, Internal, KindOf(errors.New("plain")))
	assert.Equal(t, Internal, KindOf(nil))

	// the kind survives wrapping with %w
	wrapped := fmt.Errorf("handler: %w", New(GuardFailed, "dates out of order"))
	assert.Equal(t, GuardFailed, KindOf(wrapped))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "not_found: engagement 9 not found",
		Newf(NotFound, "engagement %d not found", 9).Error())
	assert.Equal(t, "required_field_missing: required field is empty (field=tpm_partner)",
		WithField(RequiredFieldMissing, "tpm_partner", "required field is empty").Error())
	assert.Equal(t, "internal", New(Internal, "").Error())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ExternalSystemUnavailable, "registry unreachable", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ExternalSystemUnavailable, KindOf(err))
}

func TestErrorsIsMatchesOnKind(t *testing.T) {
	err := Newf(ConflictingTransition, "status changed underfoot")
	assert.ErrorIs(t, err, New(ConflictingTransition, ""))
	assert.NotErrorIs(t, err, New(NotFound, ""))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		Unauthenticated:           http.StatusUnauthorized,
		PermissionDenied:          http.StatusForbidden,
		WorkspaceInactive:         http.StatusForbidden,
		RigidFieldEdit:            http.StatusForbidden,
		NotFound:                  http.StatusNotFound,
		AlreadyExists:             http.StatusConflict,
		ConflictingTransition:     http.StatusConflict,
		InvalidSourceStatus:       http.StatusConflict,
		NoWorkspaceSelected:       http.StatusBadRequest,
		GuardFailed:               http.StatusBadRequest,
		RequiredFieldMissing:      http.StatusBadRequest,
		RequiredAttachmentMissing: http.StatusBadRequest,
		PayloadInvalid:            http.StatusBadRequest,
		ExternalSystemUnavailable: http.StatusBadGateway,
		Internal:                  http.StatusInternalServerError,
		Kind("unmapped"):          http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), string(kind))
	}
}
