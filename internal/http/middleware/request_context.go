package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/gitscout/gitscout-backend/internal/platform/ctxutil"
)

// AttachRequestContext seeds every request with a request ID so logs
// from one request can be correlated.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{RequestID: requestID})
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}
