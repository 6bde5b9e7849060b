package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/meetsweeper/internal/helpers"
	"github.com/joshua-takyi/meetsweeper/internal/models"
)

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// StructuredLogger provides structured logging middleware
func StructuredLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		requestID, _ := c.Get("request_id")
		logger.Info("HTTP Request",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// ErrorHandler logs errors attached to the context and answers with a generic 500 when
// the handler did not write a response itself.
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last()
		requestID, _ := c.Get("request_id")

		logger.Error("Request error",
			"request_id", requestID,
			"error", err.Error(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)

		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse("Internal server error"))
		}
	}
}

// Recovery turns a panic into the same JSON failure body the handlers use.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		requestID, _ := c.Get("request_id")
		logger.Error("Panic recovered",
			"request_id", requestID,
			"panic", recovered,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse("Internal server error"))
	})
}

// TokenValidator verifies a bearer JWT and returns its claims.
type TokenValidator interface {
	ValidateToken(token string) (*helpers.CustomClaims, error)
}

type SchedulerAuthConfig struct {
	CronSecret string
	Verifier   TokenValidator // nil when no JWKS is configured
	// AllowUnauthenticated lets requests through when no credential is configured.
	// Never set in production.
	AllowUnauthenticated bool
}

// SchedulerAuth guards the job trigger. A request is accepted when its bearer token
// equals the cron secret or is a valid JWT with the service role.
func SchedulerAuth(cfg SchedulerAuthConfig, logger *slog.Logger) gin.HandlerFunc {
	configured := cfg.CronSecret != "" || cfg.Verifier != nil

	return func(c *gin.Context) {
		if !configured {
			if cfg.AllowUnauthenticated {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse("scheduler authentication is not configured"))
			return
		}

		token, err := helpers.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse("Unauthorized"))
			return
		}

		if cfg.CronSecret != "" && subtle.ConstantTimeCompare([]byte(token), []byte(cfg.CronSecret)) == 1 {
			c.Set("scheduler_auth", "cron_secret")
			c.Next()
			return
		}

		if cfg.Verifier != nil {
			claims, err := cfg.Verifier.ValidateToken(token)
			if err == nil && claims.IsServiceRole() {
				c.Set("scheduler_auth", "jwt")
				c.Set("claims", claims)
				c.Next()
				return
			}
			requestID, _ := c.Get("request_id")
			if err != nil {
				logger.Warn("Scheduler token rejected", "request_id", requestID, "error", err)
			} else {
				logger.Warn("Scheduler token lacks service role", "request_id", requestID, "role", claims.Role)
				c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse("Forbidden"))
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse("Unauthorized"))
	}
}
