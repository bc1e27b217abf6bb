package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/equiptrack/internal/api/middleware"
	"github.com/Wikid82/equiptrack/internal/services"
)

type AuthHandler struct {
	authService *services.AuthService
	secure      bool
	cookieTTL   time.Duration
}

// NewAuthHandler creates an AuthHandler. secure marks the session cookie
// HTTPS-only and should be set in production.
func NewAuthHandler(authService *services.AuthService, secure bool, cookieTTL time.Duration) *AuthHandler {
	return &AuthHandler{authService: authService, secure: secure, cookieTTL: cookieTTL}
}

// setSecureCookie sets an HttpOnly, SameSite=Strict cookie scoped to the
// current host.
func (h *AuthHandler) setSecureCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, value, maxAge, "/", "", h.secure, true)
}

type LoginRequest struct {
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, user, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setSecureCookie(c, middleware.AuthCookieName, token, int(h.cookieTTL.Seconds()))

	c.JSON(http.StatusOK, gin.H{"token": token, "name": user.Name, "role": user.Role})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	h.setSecureCookie(c, middleware.AuthCookieName, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	u, err := h.authService.GetUserByID(actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":    u.ID,
		"company_id": u.CompanyID,
		"role":       u.Role,
		"name":       u.Name,
		"email":      u.Email,
	})
}

type CreateUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Role     string `json:"role"`
}

// CreateUser adds an account to the admin's company.
func (h *AuthHandler) CreateUser(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.authService.CreateUser(actor, services.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}
