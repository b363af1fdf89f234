package tracing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/catalog/internal/credential"
	obscontext "github.com/smallbiznis/catalog/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTracedEngine(t *testing.T) (*gin.Engine, *tracetest.SpanRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(obscontext.WithRequestID(c.Request.Context(), "req-1"))
	})
	r.Use(ginMiddleware(tp))

	authed := r.Group("/api/v1", func(c *gin.Context) {
		cred := credential.Credential{CompanyID: 42, UserID: 1, UserName: "alice"}
		c.Request = c.Request.WithContext(credential.WithCredential(c.Request.Context(), cred))
	})
	authed.GET("/products/:uuid", func(c *gin.Context) { c.Status(http.StatusOK) })
	authed.DELETE("/products/:uuid", func(c *gin.Context) {
		_ = c.Error(errors.New("delete failed\nDELETE FROM product WHERE uuid = 'x'"))
		c.Status(http.StatusInternalServerError)
	})
	return r, recorder
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestGinMiddlewareNamesSpanAfterRoute(t *testing.T) {
	r, recorder := newTracedEngine(t)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/products/abc", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "GET /api/v1/products/:uuid", span.Name())

	got := attrs(span)
	assert.Equal(t, int64(42), got["company_id"].AsInt64())
	assert.Equal(t, "show", got["product.operation"].AsString())
	assert.Equal(t, "req-1", got["request_id"].AsString())
	assert.Equal(t, int64(http.StatusOK), got["http.status_code"].AsInt64())
	assert.Equal(t, codes.Unset, span.Status().Code)
}

func TestGinMiddlewareMarksServerErrors(t *testing.T) {
	r, recorder := newTracedEngine(t)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/v1/products/abc", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "delete", attrs(span)["product.operation"].AsString())

	require.Len(t, span.Events(), 1)
	for _, kv := range span.Events()[0].Attributes {
		if kv.Key == "exception.message" {
			assert.Equal(t, "delete failed", kv.Value.AsString())
		}
	}
}

func TestGinMiddlewareUnmatchedRoute(t *testing.T) {
	r, recorder := newTracedEngine(t)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET unmatched", spans[0].Name())
	_, hasCompany := attrs(spans[0])["company_id"]
	assert.False(t, hasCompany)
}

func TestProductOperation(t *testing.T) {
	tests := []struct {
		method, route, want string
	}{
		{http.MethodGet, "/api/v1/products", "list"},
		{http.MethodPost, "/internal/v1/products", "store"},
		{http.MethodPatch, "/api/v1/products/:uuid", "update"},
		{http.MethodGet, "/health", ""},
		{http.MethodPut, "/api/v1/products/:uuid", ""},
	}
	for _, tt := range tests {
		if got := productOperation(tt.method, tt.route); got != tt.want {
			t.Errorf("productOperation(%s, %s) = %q, want %q", tt.method, tt.route, got, tt.want)
		}
	}
}
