package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/equiptrack/internal/services"
)

// LockHandler exposes the equipment edit lock.
type LockHandler struct {
	locks *services.LockService
}

func NewLockHandler(locks *services.LockService) *LockHandler {
	return &LockHandler{locks: locks}
}

// LockRequest is accepted as JSON or as a form body.
type LockRequest struct {
	Number string `json:"number" form:"number" binding:"required"`
	Reason string `json:"reason" form:"reason"`
}

func bindLockRequest(c *gin.Context) (LockRequest, bool) {
	var req LockRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return req, false
	}
	return req, true
}

// Acquire takes or refreshes the lock. A lock held by someone else is not an
// error: the response reports editable=false with the holder.
func (h *LockHandler) Acquire(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	req, ok := bindLockRequest(c)
	if !ok {
		return
	}

	status, err := h.locks.Acquire(c.Request.Context(), actor, req.Number)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *LockHandler) Override(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	req, ok := bindLockRequest(c)
	if !ok {
		return
	}

	result, err := h.locks.Override(c.Request.Context(), actor, req.Number, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *LockHandler) Release(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	req, ok := bindLockRequest(c)
	if !ok {
		return
	}

	released, err := h.locks.Release(c.Request.Context(), actor, req.Number)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": released})
}

// Status reports the lock on /equipment/:number/lock without changing it.
func (h *LockHandler) Status(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	status, err := h.locks.Status(c.Request.Context(), actor, c.Param("number"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
