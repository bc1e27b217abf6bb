package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/equiptrack/internal/models"
	"github.com/Wikid82/equiptrack/internal/services"
)

// Context keys set by AuthMiddleware.
const (
	UserKey      = "user"
	UserIDKey    = "userID"
	CompanyIDKey = "companyID"
	RoleKey      = "role"
)

// AuthCookieName is the cookie the login handler sets for browser clients.
const AuthCookieName = "auth_token"

// bearerToken returns the token from the Authorization header, falling back
// to the auth cookie.
func bearerToken(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "bearer ") {
			return strings.TrimSpace(authHeader[7:])
		}
		return ""
	}
	if cookie, err := c.Cookie(AuthCookieName); err == nil {
		return cookie
	}
	return ""
}

// AuthMiddleware authenticates the session token and loads the user into
// the request context. Disabled or deleted users are rejected.
func AuthMiddleware(authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		user, err := authService.AuthenticateToken(tokenString)
		if err != nil {
			GetRequestLogger(c).WithError(err).Debug("rejected session token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(UserKey, user)
		c.Set(UserIDKey, user.ID)
		c.Set(CompanyIDKey, user.CompanyID)
		c.Set(RoleKey, user.Role)
		c.Set("logger", GetRequestLogger(c).WithField("user_id", user.ID))
		c.Next()
	}
}

// RequireRole rejects callers whose role ranks below min.
func RequireRole(min models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var role models.Role
		v, _ := c.Get(RoleKey)
		switch v := v.(type) {
		case models.Role:
			role = v
		case string:
			role = models.Role(v)
		}
		if !role.AtLeast(min) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
		c.Next()
	}
}
