package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/apiward/oauth1gw/internal/observability"
)

// Gin context keys for the resolved identity.
const (
	ContextKeyConsumerID = "oauth_consumer_id"
	ContextKeyUserID     = "oauth_user_id"
)

// AuthMiddleware applies the authorization hook for the given operation.
// Halted requests are answered with the challenge and aborted; directory
// faults become a 500.
func AuthMiddleware(hook *Hook, operationID string, logger observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return func(c *gin.Context) {
		result, err := hook.Authorize(c.Request.Context(), c.Request, operationID)
		if err != nil {
			logger.Error("authentication backend failure",
				observability.String("operation", operationID),
				observability.Error(err))
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		if !result.Allow {
			result.Challenge.Write(c.Writer)
			c.Abort()
			return
		}

		if result.Identity != nil {
			c.Set(ContextKeyConsumerID, result.Identity.ConsumerID)
			c.Set(ContextKeyUserID, result.Identity.UserID)
		}
		c.Next()
	}
}

// IdentityFromContext returns the identity attached by AuthMiddleware, if
// any.
func IdentityFromContext(c *gin.Context) (Identity, bool) {
	consumerID, ok := c.Get(ContextKeyConsumerID)
	if !ok {
		return Identity{}, false
	}
	userID, _ := c.Get(ContextKeyUserID)
	id := Identity{}
	id.ConsumerID, _ = consumerID.(string)
	id.UserID, _ = userID.(string)
	return id, true
}

// AccessLogMiddleware logs one line per completed request.
func AccessLogMiddleware(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []observability.Field{
			observability.String("method", c.Request.Method),
			observability.String("path", c.Request.URL.Path),
			observability.Int("status", c.Writer.Status()),
			observability.Duration("duration", time.Since(start)),
		}
		if requestID := c.GetString(requestIDContextKey); requestID != "" {
			fields = append(fields, observability.String("requestId", requestID))
		}
		if consumerID := c.GetString(ContextKeyConsumerID); consumerID != "" {
			fields = append(fields, observability.String("consumer", consumerID))
		}
		logger.Info("request", fields...)
	}
}
