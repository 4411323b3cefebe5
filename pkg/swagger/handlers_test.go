package swagger

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter() *mux.Router {
	router := mux.NewRouter()
	NewHandlers().RegisterRoutes(router)
	return router
}

func TestRegisterRoutes(t *testing.T) {
	router := newRouter()

	tests := []struct {
		path        string
		contentType string
	}{
		{"/openapi.yaml", "application/x-yaml"},
		{"/openapi.json", "application/json"},
		{"/swagger-ui", "text/html; charset=utf-8"},
		{"/api-docs", "text/html; charset=utf-8"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.contentType, w.Header().Get("Content-Type"))
			assert.NotEmpty(t, w.Body.Bytes())
		})
	}
}

func TestOpenAPIJSON(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		OpenAPI string                            `json:"openapi"`
		Info    map[string]interface{}            `json:"info"`
		Paths   map[string]map[string]interface{} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc.OpenAPI)
	assert.Equal(t, "ChefHub API", doc.Info["title"])

	for _, path := range []string{
		"/courses",
		"/courses/{id}/purchase",
		"/classes/{id}",
		"/classes/{id}/archive",
		"/recipes/{id}/usage",
		"/me/audit",
		"/webhooks/payments/{id}/confirm",
	} {
		assert.Contains(t, doc.Paths, path)
	}
	assert.Contains(t, doc.Paths["/courses/{id}"], "put")
}

func TestSwaggerUIPointsAtDocument(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger-ui", nil))
	assert.Contains(t, w.Body.String(), `url: "/openapi.yaml"`)
}

func TestToJSONRejectsInvalidYAML(t *testing.T) {
	_, err := toJSON([]byte("paths: [unclosed"))
	assert.ErrorContains(t, err, "failed to parse OpenAPI document")

	h := &Handlers{spec: []byte("paths: [unclosed")}
	w := httptest.NewRecorder()
	h.serveJSON(w, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestOpenAPIDocumentsReplayRules(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "returns that terminal row unchanged")
	assert.Contains(t, body, "enrollment_id must equal the {id} path")
}
