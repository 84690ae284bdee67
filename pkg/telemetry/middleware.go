package telemetry

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/jaennil/guide_helper/backend/geodata"

var untraced = map[string]struct{}{
	"/api/v1/healthz": {},
	"/metrics":        {},
}

// tileParams are route parameters copied onto request spans.
var tileParams = []string{"source", "x", "z"}

// GinMiddleware starts a server span per request. Tile coordinates from the
// route are recorded as tile.* attributes so slow tiles can be found by position.
func GinMiddleware(serviceName string) gin.HandlerFunc {
	tracer := Tracer()
	propagator := otel.GetTextMapPropagator()

	return func(c *gin.Context) {
		if _, skip := untraced[c.Request.URL.Path]; skip {
			c.Next()
			return
		}

		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		attrs := []attribute.KeyValue{
			semconv.HTTPRequestMethodKey.String(c.Request.Method),
			semconv.HTTPRoute(c.FullPath()),
			semconv.URLPath(c.Request.URL.Path),
			semconv.ClientAddress(c.ClientIP()),
			semconv.UserAgentOriginal(c.Request.UserAgent()),
			semconv.ServiceName(serviceName),
		}
		for _, p := range tileParams {
			v := c.Param(p)
			if v == "" {
				continue
			}
			if n, err := strconv.Atoi(v); err == nil {
				attrs = append(attrs, attribute.Int("tile."+p, n))
			} else {
				attrs = append(attrs, attribute.String("tile."+p, v))
			}
		}

		ctx, span := tracer.Start(ctx, c.Request.Method+" "+c.FullPath(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		propagator.Inject(ctx, propagation.HeaderCarrier(c.Writer.Header()))

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(
			semconv.HTTPResponseStatusCode(status),
			attribute.Int("http.response.size", c.Writer.Size()),
		)

		// Client errors such as bad tile indices are not span failures.
		if status >= 500 {
			span.SetStatus(codes.Error, c.Errors.String())
			if err := c.Errors.Last(); err != nil {
				span.RecordError(err)
			}
			return
		}
		span.SetStatus(codes.Ok, "")
	}
}

// Tracer returns the tracer used for spans created outside of HTTP handlers,
// such as tile loads.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
