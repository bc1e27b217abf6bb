package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Wikid82/equiptrack/internal/models"
)

const maxNumberLength = 64

func normalizeNumber(number string) (string, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return "", invalid("number", "is required")
	}
	if len(number) > maxNumberLength {
		return "", invalid("number", "must be at most %d characters", maxNumberLength)
	}
	return number, nil
}

// findEquipment loads an equipment row scoped to a company.
func findEquipment(tx *gorm.DB, companyID uint, number string) (*models.Equipment, error) {
	var eq models.Equipment
	err := tx.Where("company_id = ? AND number = ?", companyID, number).First(&eq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("equipment %q: %w", number, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load equipment: %w", err)
	}
	return &eq, nil
}

// findOrCreateEquipment returns the company's equipment with number,
// inserting it first when absent. Concurrent creators race on the unique
// (company_id, number) index; the loser's insert is a no-op.
func findOrCreateEquipment(tx *gorm.DB, actor Actor, number string) (*models.Equipment, bool, error) {
	eq := models.Equipment{CompanyID: actor.CompanyID, Number: number, CreatedBy: actor.UserID}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&eq)
	if res.Error != nil {
		return nil, false, fmt.Errorf("create equipment: %w", res.Error)
	}
	created := res.RowsAffected == 1

	found, err := findEquipment(tx, actor.CompanyID, number)
	if err != nil {
		return nil, false, err
	}
	return found, created, nil
}
