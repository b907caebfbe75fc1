package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/apiward/oauth1gw/internal/authz"
	"github.com/apiward/oauth1gw/internal/observability"
)

// RouterConfig holds route construction settings.
type RouterConfig struct {
	MetricsEnabled bool
	MetricsPath    string
}

// BuildRouter wires the protected operations, the health endpoint and the
// metrics endpoint onto a gin engine.
func BuildRouter(cfg RouterConfig, hook *Hook, registry *authz.Registry, logger observability.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestIDMiddleware())
	engine.Use(AccessLogMiddleware(logger))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.MetricsEnabled {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		engine.GET(path, gin.WrapH(promhttp.Handler()))
	}

	for _, op := range registry.Operations() {
		engine.Handle(op.Method, op.Path,
			AuthMiddleware(hook, op.ID, logger),
			operationHandler(op))
	}

	return engine
}

// operationHandler answers an allowed request with the operation id and the
// resolved identity. The gateway authenticates; the upstream business logic
// lives elsewhere.
func operationHandler(op authz.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"operation": op.ID}
		if id, ok := IdentityFromContext(c); ok {
			body["consumerId"] = id.ConsumerID
			body["userId"] = id.UserID
		}
		c.JSON(http.StatusOK, body)
	}
}
