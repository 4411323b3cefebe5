package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/chefhub/pkg/contextkeys"
	"github.com/platinummonkey/chefhub/pkg/httputil"
	"github.com/platinummonkey/chefhub/pkg/middleware"
)

// IdempotencyKeyHeader lets clients make purchase retries collapse onto one
// enrollment
const IdempotencyKeyHeader = "Idempotency-Key"

const maxIdempotencyKeyLength = 255

func (s *Server) setupEnrollmentRoutes(r *mux.Router) {
	authed := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAuthenticated(h)
	}
	r.Handle("/courses/{id}/purchase", authed(s.purchaseCourse)).Methods(http.MethodPost)
	r.Handle("/courses/{id}/progress", authed(s.courseProgress)).Methods(http.MethodGet)
	r.Handle("/courses/{id}/stats", authed(s.courseStats)).Methods(http.MethodGet)
	r.Handle("/classes/{id}/complete", authed(s.completeClass)).Methods(http.MethodPost)
	r.Handle("/me/enrollments", authed(s.myEnrollments)).Methods(http.MethodGet)
	r.Handle("/enrollments/{id}/history", authed(s.enrollmentHistory)).Methods(http.MethodGet)
}

// purchaseCourse answers 201 when a new pending enrollment was created and
// 200 when an existing one was returned
func (s *Server) purchaseCourse(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get(IdempotencyKeyHeader)
	if len(key) > maxIdempotencyKeyLength {
		httputil.WriteBadRequest(w, IdempotencyKeyHeader+" is too long")
		return
	}

	actor, _ := contextkeys.Actor(r.Context())
	res, err := s.platform.PurchaseCourse(r.Context(), actor, httputil.PathVar(r, "id"), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res.Created {
		httputil.WriteCreated(w, res)
		return
	}
	httputil.WriteSuccess(w, res)
}

func (s *Server) courseProgress(w http.ResponseWriter, r *http.Request) {
	actor, _ := contextkeys.Actor(r.Context())
	progress, err := s.platform.CourseProgress(r.Context(), actor, httputil.PathVar(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, progress)
}

func (s *Server) courseStats(w http.ResponseWriter, r *http.Request) {
	actor, _ := contextkeys.Actor(r.Context())
	stats, err := s.platform.CourseStats(r.Context(), actor, httputil.PathVar(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, stats)
}

func (s *Server) completeClass(w http.ResponseWriter, r *http.Request) {
	actor, _ := contextkeys.Actor(r.Context())
	if err := s.platform.CompleteClass(r.Context(), actor, httputil.PathVar(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) myEnrollments(w http.ResponseWriter, r *http.Request) {
	actor, _ := contextkeys.Actor(r.Context())
	enrollments, err := s.platform.MyEnrollments(r.Context(), actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, enrollments)
}

func (s *Server) enrollmentHistory(w http.ResponseWriter, r *http.Request) {
	actor, _ := contextkeys.Actor(r.Context())
	events, err := s.platform.EnrollmentHistory(r.Context(), actor, httputil.PathVar(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, events)
}
