package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/equiptrack/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ComplianceHandler struct {
	compliance *services.ComplianceService
}

func NewComplianceHandler(compliance *services.ComplianceService) *ComplianceHandler {
	return &ComplianceHandler{compliance: compliance}
}

// Due lists applicable tests due within ?days= (default: the configured window).
func (h *ComplianceHandler) Due(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	days := h.compliance.Window()
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be an integer"})
			return
		}
		days = n
	}

	now := time.Now().UTC()
	items, err := h.compliance.DueSoon(c.Request.Context(), actor.CompanyID, days, now)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "as_of": now, "items": items})
}

// Report downloads every test row of the caller's company as a spreadsheet.
func (h *ComplianceHandler) Report(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.compliance.ExportXLSX(c.Request.Context(), actor.CompanyID, &buf); err != nil {
		respondError(c, err)
		return
	}

	name := fmt.Sprintf("compliance_%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
