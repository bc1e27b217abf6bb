package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/equiptrack/internal/services"
)

type SeedHandler struct {
	seeds   *services.SeedService
	enabled bool
}

func NewSeedHandler(seeds *services.SeedService, enabled bool) *SeedHandler {
	return &SeedHandler{seeds: seeds, enabled: enabled}
}

// Seed creates the default company, admin and testing areas when missing.
func (h *SeedHandler) Seed(c *gin.Context) {
	if !h.enabled {
		c.JSON(http.StatusNotFound, gin.H{"error": "seeding is disabled"})
		return
	}
	res, err := h.seeds.Seed(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":            true,
		"company_id":    res.CompanyID,
		"admin_created": res.AdminCreated,
		"areas_created": res.AreasCreated,
		"admin_login": gin.H{
			"email":    services.DefaultAdminEmail,
			"password": services.DefaultAdminPassword,
		},
	})
}
