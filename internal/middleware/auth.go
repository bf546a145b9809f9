package middleware

import (
	"errors"
	"net/http"
	"strings"

	"flulance/internal/auth"
	"flulance/internal/logger"
	"flulance/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserID = "userID"
	ContextRole   = "role"
)

// AuthMiddleware verifies the bearer token and stores the caller's id and
// role on the gin context.
func AuthMiddleware(tokens *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			apperrors.HandleError(c, apperrors.NewUnauthorizedError("Authorization header missing or invalid"))
			return
		}

		claims, err := tokens.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				apperrors.HandleError(c, apperrors.New(apperrors.CodeTokenExpired, "auth", "Token expired", http.StatusUnauthorized))
				return
			}
			apperrors.HandleError(c, apperrors.New(apperrors.CodeInvalidToken, "auth", "Invalid token", http.StatusUnauthorized))
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Request = c.Request.WithContext(logger.WithFields(c.Request.Context(), "user_id", claims.UserID))
		c.Next()
	}
}

// RequireRoles lets through callers holding any of roles.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		if !allowed[GetRole(c)] {
			apperrors.HandleError(c, apperrors.NewForbiddenError("Access denied: insufficient role"))
			return
		}
		c.Next()
	}
}

// RequirePermission checks the caller's role against the permission table.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !auth.HasPermission(GetRole(c), permission) {
			apperrors.HandleError(c, apperrors.NewForbiddenError("Access denied: missing permission "+permission))
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

func GetRole(c *gin.Context) string {
	return c.GetString(ContextRole)
}
