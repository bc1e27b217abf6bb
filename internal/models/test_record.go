package models

import "time"

// EquipmentTest is the compliance state of one equipment unit for one testing
// area. DueDate is derived from LastDate and the area cadence and is never
// taken from client input.
type EquipmentTest struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	EquipmentID uint         `json:"equipment_id" gorm:"not null;uniqueIndex:uq_equipment_area"`
	AreaID      uint         `json:"area_id" gorm:"not null;uniqueIndex:uq_equipment_area;index"`
	Area        *TestingArea `json:"area,omitempty" gorm:"foreignKey:AreaID"`
	Applies     bool         `json:"applies" gorm:"not null"`
	LastDate    *time.Time   `json:"last_date"`
	DueDate     *time.Time   `json:"due_date" gorm:"index"`
	Notes       *string      `json:"notes"`
	UpdatedBy   uint         `json:"updated_by"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (EquipmentTest) TableName() string { return "equipment_tests" }

// IsOverdue reports whether an applicable test is past its due date.
func (t *EquipmentTest) IsOverdue(now time.Time) bool {
	return t.Applies && t.DueDate != nil && t.DueDate.Before(now)
}
