package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/equiptrack/internal/services"
)

type EquipmentHandler struct {
	equipment *services.EquipmentService
	audit     *services.AuditService
}

func NewEquipmentHandler(equipment *services.EquipmentService, audit *services.AuditService) *EquipmentHandler {
	return &EquipmentHandler{equipment: equipment, audit: audit}
}

type EquipmentTestRequest struct {
	AreaCode string  `json:"area_code" binding:"required"`
	Applies  bool    `json:"applies"`
	LastDate string  `json:"last_date"`
	Notes    *string `json:"notes"`
}

// UpsertRequest is a full equipment submission. Omitted fields are cleared.
type UpsertRequest struct {
	Number      string                 `json:"number" binding:"required"`
	Description *string                `json:"description"`
	Type        *string                `json:"type"`
	Job         *string                `json:"job"`
	Mileage     *int                   `json:"mileage"`
	Tests       []EquipmentTestRequest `json:"tests" binding:"dive"`
}

func (r UpsertRequest) toInput() (services.UpsertInput, error) {
	in := services.UpsertInput{
		Number:         r.Number,
		Description:    r.Description,
		Type:           r.Type,
		CurrentJob:     r.Job,
		CurrentMileage: r.Mileage,
		Tests:          make([]services.TestRowInput, 0, len(r.Tests)),
	}
	for _, t := range r.Tests {
		last, err := services.ParseTestDate(t.LastDate)
		if err != nil {
			return in, err
		}
		in.Tests = append(in.Tests, services.TestRowInput{
			AreaCode: t.AreaCode,
			Applies:  t.Applies,
			LastDate: last,
			Notes:    t.Notes,
		})
	}
	return in, nil
}

// Upsert saves the submission and releases the caller's lock.
func (h *EquipmentHandler) Upsert(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	in, err := req.toInput()
	if err != nil {
		respondError(c, err)
		return
	}

	eq, err := h.equipment.Upsert(c.Request.Context(), actor, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "equipment_id": eq.ID, "equipment": eq})
}

func (h *EquipmentHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	detail, err := h.equipment.Get(c.Request.Context(), actor, c.Param("number"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// List supports ?type= and ?q= filters.
func (h *EquipmentHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	items, err := h.equipment.List(c.Request.Context(), actor, services.EquipmentFilter{
		Type:   c.Query("type"),
		Search: c.Query("q"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *EquipmentHandler) Audit(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	events, err := h.audit.ForEquipment(c.Request.Context(), actor, c.Param("number"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *EquipmentHandler) TestingAreas(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	areas, err := h.equipment.ListTestingAreas(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, areas)
}
