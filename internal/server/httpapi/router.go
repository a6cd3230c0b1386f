package httpapi

import (
	"time"

	"github.com/dmitrijs2005/invoicekeeper/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func newRouter(logger logging.Logger, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger), errorHandlingMiddleware(logger))

	h := &handlers{deps: deps, logger: logger}

	r.GET("/healthz", h.health)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.GET("/documents", h.listDocuments)
	api.POST("/documents", h.createDocument)
	api.GET("/documents/:id", h.getDocument)
	api.PUT("/documents/:id", h.saveDocument)
	api.GET("/numbers/:type/next", h.nextNumber)
	api.POST("/import", h.importDocuments)
	api.GET("/dashboard", h.dashboard)
	api.GET("/settings", h.getSettings)
	api.PUT("/settings", h.updateSettings)

	return r
}

func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logger.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(started),
		)
	}
}
