package api

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/chefhub/pkg/authz"
	"github.com/platinummonkey/chefhub/pkg/content"
	"github.com/platinummonkey/chefhub/pkg/contextkeys"
	"github.com/platinummonkey/chefhub/pkg/enrollment"
	"github.com/platinummonkey/chefhub/pkg/httputil"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order. Not-found errors come first, so an
// unknown enrollment id reports 404 even though it is also an invalid
// transition.
var errorMappings = []errorMapping{
	{content.ErrNotFound, http.StatusNotFound, "not_found"},
	{enrollment.ErrNotFound, http.StatusNotFound, "not_found"},
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
}

// statusFor maps a domain error to its HTTP status and code
func statusFor(err error) (int, string, bool) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code, true
		}
	}
	return http.StatusInternalServerError, "internal", false
}

// writeError writes the response for a failed platform call. Unknown errors
// are logged and hidden from the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, known := statusFor(err)
	if !known {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"path":       r.URL.Path,
			"request_id": contextkeys.RequestID(r.Context()),
		}).Error("request failed")
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteErrorCode(w, status, code, err.Error())
}
