package tracing

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/catalog/internal/credential"
	obscontext "github.com/smallbiznis/catalog/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const unmatchedRoute = "unmatched"

// GinMiddleware opens a server span per request. The span is named after the
// matched route and tagged with the company of the authenticated caller.
func GinMiddleware() gin.HandlerFunc {
	return ginMiddleware(otel.GetTracerProvider())
}

func ginMiddleware(tp trace.TracerProvider) gin.HandlerFunc {
	tracer := tp.Tracer("catalog/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		method := strings.ToUpper(c.Request.Method)

		ctx, span := tracer.Start(ctx, method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		ctx = withRequestBaggage(ctx, span)
		c.Request = c.Request.WithContext(ctx)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		span.SetName(method + " " + route)

		status := c.Writer.Status()
		attrs := []attribute.KeyValue{
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		}
		if op := productOperation(method, route); op != "" {
			attrs = append(attrs, attribute.String("product.operation", op))
		}
		// auth middleware replaces the request context downstream
		if cred, ok := credential.FromContext(c.Request.Context()); ok {
			attrs = append(attrs, attribute.Int64("company_id", cred.CompanyID))
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		if status >= http.StatusInternalServerError {
			if last := c.Errors.Last(); last != nil {
				span.RecordError(SafeError(last.Err))
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func withRequestBaggage(ctx context.Context, span trace.Span) context.Context {
	requestID := obscontext.RequestIDFromContext(ctx)
	if requestID == "" {
		return ctx
	}
	span.SetAttributes(attribute.String("request_id", requestID))

	member, err := baggage.NewMember("request_id", requestID)
	if err != nil {
		return ctx
	}
	bag, err := baggage.FromContext(ctx).SetMember(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}

// productOperation names the catalog operation served by a product route.
func productOperation(method, route string) string {
	switch {
	case strings.HasSuffix(route, "/products"):
		switch method {
		case http.MethodGet:
			return "list"
		case http.MethodPost:
			return "store"
		}
	case strings.HasSuffix(route, "/products/:uuid"):
		switch method {
		case http.MethodGet:
			return "show"
		case http.MethodPatch:
			return "update"
		case http.MethodDelete:
			return "delete"
		}
	}
	return ""
}
