package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/chefhub/pkg/content"
	"github.com/platinummonkey/chefhub/pkg/contextkeys"
	"github.com/platinummonkey/chefhub/pkg/httputil"
	"github.com/platinummonkey/chefhub/pkg/middleware"
)

func (s *Server) setupContentRoutes(r *mux.Router) {
	r.HandleFunc("/recipes", s.createRecipe).Methods(http.MethodPost)
	r.HandleFunc("/recipes/{id}", s.getRecipe).Methods(http.MethodGet)
	r.HandleFunc("/recipes/{id}", s.updateRecipe).Methods(http.MethodPut)
	r.HandleFunc("/recipes/{id}/archive", s.archiveRecipe).Methods(http.MethodPost)
	r.HandleFunc("/recipes/{id}/usage", s.recipeUsage).Methods(http.MethodGet)
	r.Handle("/me/recipes", middleware.RequireAuthenticated(http.HandlerFunc(s.myRecipes))).Methods(http.MethodGet)

	r.HandleFunc("/books", s.createBook).Methods(http.MethodPost)
	r.HandleFunc("/books/{id}", s.getBook).Methods(http.MethodGet)
	r.HandleFunc("/books/{id}", s.updateBook).Methods(http.MethodPut)
	r.HandleFunc("/books/{id}/archive", s.archiveBook).Methods(http.MethodPost)
}

func (s *Server) createRecipe(w http.ResponseWriter, r *http.Request) {
	var in content.RecipeInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	actor, _ := contextkeys.Actor(r.Context())
	recipe, err := s.platform.CreateRecipe(r.Context(), actor, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, recipe)
}

// getRecipe serves a recipe directly or, with ?via_class, as a content
// block of a class the caller can read
func (s *Server) getRecipe(w http.ResponseWriter, r *http.Request) {
	actor, _ := contextkeys.Actor(r.Context())
	viaClass := httputil.ParseQueryString(r, "via_class", "")
	recipe, err := s.platform.GetRecipeDetail(r.Context(), actor, httputil.PathVar(r, "id"), viaClass)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, recipe)
}

func (s *Server) updateRecipe(w http.ResponseWriter, r *http.Request) {
	var in content.RecipeInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	actor, _ := contextkeys.Actor(r.Context())
	recipe, err := s.platform.UpdateRecipe(r.Context(), actor, httputil.PathVar(r, "id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, recipe)
}

func (s *Server) archiveRecipe(w http.ResponseWriter, r *http.Request) {
	actor, _ := contextkeys.Actor(r.Context())
	recipe, err := s.platform.ArchiveRecipe(r.Context(), actor, httputil.PathVar(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, recipe)
}

func (s *Server) recipeUsage(w http.ResponseWriter, r *http.Request) {
	actor, _ := contextkeys.Actor(r.Context())
	classes, err := s.platform.RecipeUsage(r.Context(), actor, httputil.PathVar(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, classes)
}

func (s *Server) myRecipes(w http.ResponseWriter, r *http.Request) {
	actor, _ := contextkeys.Actor(r.Context())
	recipes, err := s.platform.MyRecipes(r.Context(), actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, recipes)
}

func (s *Server) createBook(w http.ResponseWriter, r *http.Request) {
	var in content.BookInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	actor, _ := contextkeys.Actor(r.Context())
	b, err := s.platform.CreateBook(r.Context(), actor, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, b)
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	actor, _ := contextkeys.Actor(r.Context())
	detail, err := s.platform.GetBookDetail(r.Context(), actor, httputil.PathVar(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, detail)
}

func (s *Server) updateBook(w http.ResponseWriter, r *http.Request) {
	var in content.BookInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	actor, _ := contextkeys.Actor(r.Context())
	b, err := s.platform.UpdateBook(r.Context(), actor, httputil.PathVar(r, "id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, b)
}

func (s *Server) archiveBook(w http.ResponseWriter, r *http.Request) {
	actor, _ := contextkeys.Actor(r.Context())
	b, err := s.platform.ArchiveBook(r.Context(), actor, httputil.PathVar(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, b)
}
