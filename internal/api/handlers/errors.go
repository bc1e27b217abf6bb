package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/equiptrack/internal/api/middleware"
	"github.com/Wikid82/equiptrack/internal/models"
	"github.com/Wikid82/equiptrack/internal/services"
)

// respondError writes the status and body for a service error. Unexpected
// errors are logged and answered with an opaque message.
func respondError(c *gin.Context, err error) {
	var (
		authErr     *services.AuthError
		conflictErr *services.LockConflictError
		validErr    *services.ValidationError
	)
	switch {
	case errors.As(err, &authErr):
		c.JSON(http.StatusUnauthorized, gin.H{"error": authErr.Reason})
	case errors.Is(err, services.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrLockRequired):
		body := gin.H{"error": err.Error(), "code": "lock_required"}
		if errors.As(err, &conflictErr) {
			body["locked_by"] = conflictErr.HolderID
			body["locked_by_name"] = conflictErr.HolderName
			body["locked_at"] = conflictErr.LockedAt
		}
		c.JSON(http.StatusConflict, body)
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &validErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validErr.Error(), "field": validErr.Field})
	default:
		middleware.GetRequestLogger(c).WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// actorFrom builds the service caller from the authenticated request.
func actorFrom(c *gin.Context) (services.Actor, bool) {
	u, ok := c.Get(middleware.UserKey)
	if !ok {
		return services.Actor{}, false
	}
	user, ok := u.(*models.User)
	if !ok || user == nil {
		return services.Actor{}, false
	}
	return services.ActorFromUser(user, c.ClientIP()), true
}

// requireActor aborts with 401 when the request carries no authenticated user.
func requireActor(c *gin.Context) (services.Actor, bool) {
	actor, ok := actorFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
	return actor, ok
}
