package models

import (
	"strconv"
	"time"
)

// Equipment is a single unit tracked by a company, identified by its number.
type Equipment struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	CompanyID      uint      `json:"company_id" gorm:"not null;uniqueIndex:uq_company_equipment_number"`
	Number         string    `json:"number" gorm:"size:64;not null;uniqueIndex:uq_company_equipment_number"`
	Description    *string   `json:"description"`
	Type           *string   `json:"type" gorm:"index"`
	CurrentJob     *string   `json:"current_job"`
	CurrentMileage *int      `json:"current_mileage"`
	CreatedBy      uint      `json:"created_by"`
	UpdatedBy      *uint     `json:"updated_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Equipment) TableName() string { return "equipment" }

// EquipmentFields holds the scalar fields an upsert overwrites.
type EquipmentFields struct {
	Description    *string
	Type           *string
	CurrentJob     *string
	CurrentMileage *int
}

// Fields returns the current scalar field values.
func (e *Equipment) Fields() EquipmentFields {
	return EquipmentFields{
		Description:    e.Description,
		Type:           e.Type,
		CurrentJob:     e.CurrentJob,
		CurrentMileage: e.CurrentMileage,
	}
}

// Apply overwrites every scalar field, including clearing ones set to nil.
func (e *Equipment) Apply(f EquipmentFields) {
	e.Description = f.Description
	e.Type = f.Type
	e.CurrentJob = f.CurrentJob
	e.CurrentMileage = f.CurrentMileage
}

// Diff returns the before/after pairs for every scalar field, in a fixed order.
func (f EquipmentFields) Diff(after EquipmentFields) []FieldChange {
	return []FieldChange{
		{Field: "description", Old: f.Description, New: after.Description},
		{Field: "type", Old: f.Type, New: after.Type},
		{Field: "current_job", Old: f.CurrentJob, New: after.CurrentJob},
		{Field: "current_mileage", Old: intString(f.CurrentMileage), New: intString(after.CurrentMileage)},
	}
}

func intString(v *int) *string {
	if v == nil {
		return nil
	}
	s := strconv.Itoa(*v)
	return &s
}
