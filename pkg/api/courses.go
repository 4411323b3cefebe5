package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/chefhub/pkg/content"
	"github.com/platinummonkey/chefhub/pkg/contextkeys"
	"github.com/platinummonkey/chefhub/pkg/httputil"
	"github.com/platinummonkey/chefhub/pkg/middleware"
)

type reorderRequest struct {
	ClassIDs []string `json:"class_ids"`
}

func (s *Server) setupCourseRoutes(r *mux.Router) {
	r.HandleFunc("/courses", s.browseCourses).Methods(http.MethodGet)
	r.HandleFunc("/courses", s.createCourse).Methods(http.MethodPost)
	r.HandleFunc("/courses/{id}", s.getCourse).Methods(http.MethodGet)
	r.HandleFunc("/courses/{id}", s.updateCourse).Methods(http.MethodPut)
	r.HandleFunc("/courses/{id}/publish", s.publishCourse).Methods(http.MethodPost)
	r.HandleFunc("/courses/{id}/archive", s.archiveCourse).Methods(http.MethodPost)
	r.HandleFunc("/courses/{id}/classes", s.createClass).Methods(http.MethodPost)
	r.HandleFunc("/courses/{id}/classes/order", s.reorderClasses).Methods(http.MethodPut)
	r.HandleFunc("/classes/{id}", s.getClass).Methods(http.MethodGet)
	r.HandleFunc("/classes/{id}", s.updateClass).Methods(http.MethodPut)
	r.HandleFunc("/classes/{id}/archive", s.archiveClass).Methods(http.MethodPost)
	r.Handle("/me/courses", middleware.RequireAuthenticated(http.HandlerFunc(s.myCourses))).Methods(http.MethodGet)
}

func (s *Server) browseCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := s.platform.BrowseCourses(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, courses)
}

func (s *Server) createCourse(w http.ResponseWriter, r *http.Request) {
	var in content.CourseInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	actor, _ := contextkeys.Actor(r.Context())
	c, err := s.platform.CreateCourse(r.Context(), actor, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, c)
}

func (s *Server) getCourse(w http.ResponseWriter, r *http.Request) {
	actor, _ := contextkeys.Actor(r.Context())
	detail, err := s.platform.GetCourseDetail(r.Context(), actor, httputil.PathVar(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, detail)
}

func (s *Server) updateCourse(w http.ResponseWriter, r *http.Request) {
	var in content.CourseInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	actor, _ := contextkeys.Actor(r.Context())
	c, err := s.platform.UpdateCourse(r.Context(), actor, httputil.PathVar(r, "id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, c)
}

func (s *Server) publishCourse(w http.ResponseWriter, r *http.Request) {
	actor, _ := contextkeys.Actor(r.Context())
	c, err := s.platform.PublishCourse(r.Context(), actor, httputil.PathVar(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, c)
}

func (s *Server) archiveCourse(w http.ResponseWriter, r *http.Request) {
	actor, _ := contextkeys.Actor(r.Context())
	c, err := s.platform.ArchiveCourse(r.Context(), actor, httputil.PathVar(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, c)
}

func (s *Server) createClass(w http.ResponseWriter, r *http.Request) {
	var in content.ClassInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	actor, _ := contextkeys.Actor(r.Context())
	cl, err := s.platform.CreateClass(r.Context(), actor, httputil.PathVar(r, "id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, cl)
}

func (s *Server) reorderClasses(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	actor, _ := contextkeys.Actor(r.Context())
	c, err := s.platform.ReorderClasses(r.Context(), actor, httputil.PathVar(r, "id"), req.ClassIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, c)
}

func (s *Server) getClass(w http.ResponseWriter, r *http.Request) {
	actor, _ := contextkeys.Actor(r.Context())
	detail, err := s.platform.GetClassDetail(r.Context(), actor, httputil.PathVar(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, detail)
}

func (s *Server) updateClass(w http.ResponseWriter, r *http.Request) {
	var in content.ClassInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	actor, _ := contextkeys.Actor(r.Context())
	cl, err := s.platform.UpdateClass(r.Context(), actor, httputil.PathVar(r, "id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, cl)
}

func (s *Server) archiveClass(w http.ResponseWriter, r *http.Request) {
	actor, _ := contextkeys.Actor(r.Context())
	cl, err := s.platform.ArchiveClass(r.Context(), actor, httputil.PathVar(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, cl)
}

func (s *Server) myCourses(w http.ResponseWriter, r *http.Request) {
	actor, _ := contextkeys.Actor(r.Context())
	courses, err := s.platform.MyCourses(r.Context(), actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, courses)
}
