package models

import (
	"strings"
	"time"
)

// TestingArea is a company-defined compliance category with a re-test cadence.
// Rows are reference data and are only written by seeding.
type TestingArea struct {
	ID                 uint      `json:"id" gorm:"primaryKey"`
	CompanyID          uint      `json:"company_id" gorm:"not null;uniqueIndex:uq_company_area_code"`
	Name               string    `json:"name" gorm:"not null"`
	Code               string    `json:"code" gorm:"size:64;not null;uniqueIndex:uq_company_area_code"`
	AppliesToTypes     []string  `json:"applies_to_types" gorm:"serializer:json"`
	DefaultCadenceDays int       `json:"default_cadence_days" gorm:"not null"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (TestingArea) TableName() string { return "testing_areas" }

// AppliesTo reports whether the area lists the given equipment type. An area
// with no type list applies to everything.
func (a *TestingArea) AppliesTo(equipmentType string) bool {
	if len(a.AppliesToTypes) == 0 {
		return true
	}
	for _, t := range a.AppliesToTypes {
		if strings.EqualFold(t, equipmentType) {
			return true
		}
	}
	return false
}
