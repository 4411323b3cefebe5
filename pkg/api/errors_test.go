package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/chefhub/pkg/authz"
	"github.com/platinummonkey/chefhub/pkg/content"
	"github.com/platinummonkey/chefhub/pkg/enrollment"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("course c1: %w", content.ErrNotFound), http.StatusNotFound, "not_found"},
		{fmt.Errorf("%w: %w", enrollment.ErrInvalidTransition, enrollment.ErrNotFound), http.StatusNotFound, "not_found"},
		{authz.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
		{content.ErrOwnershipViolation, http.StatusForbidden, "ownership_violation"},
		{authz.ErrNotOwner, http.StatusForbidden, "not_owner"},
		{authz.ErrNotPublished, http.StatusForbidden, "not_published"},
		{authz.ErrNotEnrolled, http.StatusForbidden, "not_enrolled"},
		{authz.ErrRoleNotPermitted, http.StatusForbidden, "role_not_permitted"},
		{content.ErrInvalidHierarchy, http.StatusUnprocessableEntity, "invalid_hierarchy"},
		{enrollment.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
		{enrollment.ErrDuplicateIdempotencyKey, http.StatusConflict, "duplicate_idempotency_key"},
		{content.ErrValidation, http.StatusBadRequest, "validation_failed"},
		{enrollment.ErrInvalidRequest, http.StatusBadRequest, "invalid_request"},
		{errors.New("connection reset"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, code, _ := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestWriteError_HidesUnknownErrors(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := &Server{logger: logger}

	w := httptest.NewRecorder()
	s.writeError(w, httptest.NewRequest(http.MethodGet, "/api/v1/courses", nil), errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "request failed", hook.LastEntry().Message)
}
