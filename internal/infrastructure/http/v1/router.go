package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jaennil/guide_helper/backend/geodata/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/logger"
	"github.com/jaennil/guide_helper/backend/geodata/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const requestIDHeader = "X-Request-ID"

func NewRouter(handler *handler.Handler, l logger.Logger, telemetryEnabled bool, serviceName string) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())

	if telemetryEnabled {
		r.Use(telemetry.GinMiddleware(serviceName))
	}

	r.Use(requestID())
	r.Use(ginZapLogger(l))

	api := r.Group("/api")
	v1 := api.Group("/v1")

	v1.GET("/healthz", handler.Healthz)
	v1.GET("/elevation/:x/:z", handler.Elevation)
	v1.GET("/osm/:x/:z", handler.Osm)
	v1.GET("/sources", handler.Sources)
	v1.GET("/sources/:source/:x/:z", handler.SourceTile)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func ginZapLogger(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLogger := l.With("request_id", c.GetString("request_id"))
		c.Set("logger", reqLogger)
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), reqLogger))

		start := time.Now()

		c.Next()

		end := time.Now()
		latency := end.Sub(start)

		reqLogger.Info("request",
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
			"latency", latency,
			"size", c.Writer.Size(),
		)
	}
}
