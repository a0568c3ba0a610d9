package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func ok(body string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.String(http.StatusOK, body)
	}
}

func serve(engine *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "/api/v1", r.BasePath())
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "/api/v2", r.BasePath())
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)
	r.Register(
		NewDomainGroup("a", "/a").GET("/ping", ok("a")),
		NewDomainGroup("b", "/b").POST("", ok("b")),
	)
	r.Setup()

	w := serve(engine, http.MethodGet, "/api/v1/a/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a", w.Body.String())

	w = serve(engine, http.MethodPost, "/api/v1/b")
	assert.Equal(t, "b", w.Body.String())

	w = serve(engine, http.MethodGet, "/a/ping")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDomainGroupMethods(t *testing.T) {
	engine := gin.New()
	group := NewDomainGroup("invoices", "/invoices").
		GET("/:id", ok("get")).
		POST("", ok("post")).
		PUT("/:id/items", ok("put")).
		DELETE("/:id", ok("delete")).
		POST("/refresh-status", ok("refresh"))
	group.RegisterRoutes(&engine.RouterGroup)

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/invoices/42", "get"},
		{http.MethodPost, "/invoices", "post"},
		{http.MethodPut, "/invoices/42/items", "put"},
		{http.MethodDelete, "/invoices/42", "delete"},
		{http.MethodPost, "/invoices/refresh-status", "refresh"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := serve(engine, tt.method, tt.path)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
		})
	}

	assert.Equal(t, "invoices", group.Name())
	assert.Equal(t, "/invoices", group.Prefix())
}

func TestDomainGroupMiddlewareScopedToGroup(t *testing.T) {
	engine := gin.New()
	tagged := NewDomainGroup("tagged", "/tagged").
		Use(func(c *gin.Context) {
			c.Header("X-Group", "tagged")
			c.Next()
		}).
		GET("", ok("t"))
	plain := NewDomainGroup("plain", "/plain").GET("", ok("p"))

	NewRouter(engine).Register(tagged, plain).Setup()

	assert.Equal(t, "tagged", serve(engine, http.MethodGet, "/api/v1/tagged").Header().Get("X-Group"))
	assert.Empty(t, serve(engine, http.MethodGet, "/api/v1/plain").Header().Get("X-Group"))
}

func TestDomainGroupSubgroupsAndRoutes(t *testing.T) {
	engine := gin.New()
	reports := NewDomainGroup("reports", "/reports").
		Handle(http.MethodGet, "/aging", "aging", ok("aging"))
	reports.Group("weekly", "/weekly").
		Handle(http.MethodPost, "/send", "send", ok("sent"))
	NewRouter(engine).Register(reports).Setup()

	w := serve(engine, http.MethodPost, "/api/v1/reports/weekly/send")
	assert.Equal(t, "sent", w.Body.String())

	routes := reports.Routes("/api/v1")
	require.Len(t, routes, 2)
	assert.Equal(t, RouteInfo{Method: http.MethodGet, Path: "/api/v1/reports/aging", Description: "aging"}, routes[0])
	assert.Equal(t, "/api/v1/reports/weekly/send", routes[1].Path)
}

func TestSortRoutes(t *testing.T) {
	routes := []RouteInfo{
		{Method: http.MethodPost, Path: "/b"},
		{Method: http.MethodGet, Path: "/b"},
		{Method: http.MethodGet, Path: "/a"},
	}
	SortRoutes(routes)
	assert.Equal(t, "/a", routes[0].Path)
	assert.Equal(t, http.MethodGet, routes[1].Method)
	assert.Equal(t, http.MethodPost, routes[2].Method)
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "/api/v1", joinPath("/api/v1", ""))
	assert.Equal(t, "/api/v1/clients/:id", joinPath("/api/v1/clients", "/:id"))
	assert.Equal(t, "/api/v1/x/", joinPath("/api/v1", "/x/"))
}

func TestRouteInfoJSON(t *testing.T) {
	raw, err := json.Marshal(RouteInfo{Method: "GET", Path: "/health"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"GET","path":"/health"}`, string(raw))
}
