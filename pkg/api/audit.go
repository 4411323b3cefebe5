package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/chefhub/pkg/audit"
	"github.com/platinummonkey/chefhub/pkg/contextkeys"
	"github.com/platinummonkey/chefhub/pkg/httputil"
	"github.com/platinummonkey/chefhub/pkg/middleware"
)

// AuditSearcher reads the access audit trail
type AuditSearcher interface {
	Search(ctx context.Context, filter audit.SearchFilter) ([]*audit.AuditEvent, error)
}

func (s *Server) setupAuditRoutes(r *mux.Router) {
	if s.audit == nil {
		return
	}
	r.Handle("/me/audit", middleware.RequireAuthenticated(http.HandlerFunc(s.myAudit))).Methods(http.MethodGet)
}

// myAudit lists the caller's own audited decisions, newest first.
// ?status=denied narrows to denials.
func (s *Server) myAudit(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	status := audit.EventStatus(httputil.ParseQueryString(r, "status", ""))
	switch status {
	case "", audit.EventStatusAllowed, audit.EventStatusDenied:
	default:
		httputil.WriteBadRequest(w, "status must be allowed or denied")
		return
	}

	actor, _ := contextkeys.Actor(r.Context())
	events, err := s.audit.Search(r.Context(), audit.SearchFilter{
		ActorID: actor.UserID,
		Status:  status,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, events)
}
