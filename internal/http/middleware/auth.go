package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gitscout/gitscout-backend/internal/platform/ctxutil"
	"github.com/gitscout/gitscout-backend/internal/platform/logger"
)

type AuthMiddleware struct {
	log    *logger.Logger
	secret []byte
}

func NewAuthMiddleware(log *logger.Logger, secret string) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), secret: []byte(secret)}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractTokenFromAll(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing or invalid token", "code": "unauthorized"},
			})
			return
		}

		userID, err := am.parseUserID(tokenString)
		if err != nil {
			am.log.Debug("token rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing or invalid token", "code": "unauthorized"},
			})
			return
		}

		rd := ctxutil.GetRequestData(c.Request.Context())
		if rd == nil {
			rd = &ctxutil.RequestData{}
		}
		rd.UserID = userID
		c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}

func (am *AuthMiddleware) parseUserID(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return am.secret, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, fmt.Errorf("invalid token claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return uuid.Nil, fmt.Errorf("missing subject claim")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("subject is not a uuid: %w", err)
	}
	return userID, nil
}

// EventSource cannot set headers, so stream endpoints also accept the
// token as a query parameter.
func extractTokenFromAll(c *gin.Context) string {
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}
