package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"devconnector/logutil"
	"devconnector/metrics"
	"devconnector/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger attaches a request-scoped logger to the request context and
// writes one access log line per request.
func RequestLogger(base zerolog.Logger, rec metrics.Recorder) gin.HandlerFunc {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		logger := base.With().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Logger()
		c.Request = c.Request.WithContext(logutil.WithLogger(c.Request.Context(), logger))

		c.Next()

		status := c.Writer.Status()
		elapsed := time.Since(start)
		rec.RecordRequest(c.Request.Method, c.FullPath(), status, elapsed)

		var ev *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			ev = logger.Error()
		case status >= http.StatusBadRequest:
			ev = logger.Warn()
		default:
			ev = logger.Info()
		}
		if userID, ok := CurrentUserID(c); ok {
			ev = ev.Str("user_id", userID)
		}
		ev.Int("status", status).
			Dur("duration", elapsed).
			Str("client_ip", c.ClientIP()).
			Msg("http_request")
	}
}

// Recovery turns a panic into a 500 with the generic error body.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log := logutil.GetOrDefault(c.Request.Context())
				log.Error().
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("Panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, models.NewInternalError())
			}
		}()
		c.Next()
	}
}
