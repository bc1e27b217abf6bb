package services

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/Wikid82/equiptrack/internal/models"
)

// recordAudit appends an audit event inside tx. A failure here must abort
// the surrounding transaction so no mutation goes unrecorded.
func recordAudit(tx *gorm.DB, actor Actor, action models.AuditAction, entity string, entityID uint, changes []models.FieldChange, metadata map[string]string) error {
	ev := &models.AuditEvent{
		CompanyID: actor.CompanyID,
		ActorID:   actor.UserID,
		Action:    action,
		Entity:    entity,
		EntityID:  strconv.FormatUint(uint64(entityID), 10),
		Changes:   changes,
		Metadata:  metadata,
		IP:        actor.IP,
	}
	if err := tx.Create(ev).Error; err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

// AuditService reads the audit log.
type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// ForEquipment returns every event recorded against an equipment unit, its
// lock and its attachments, newest first.
func (s *AuditService) ForEquipment(ctx context.Context, actor Actor, number string) ([]models.AuditEvent, error) {
	number, err := normalizeNumber(number)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	eq, err := findEquipment(db, actor.CompanyID, number)
	if err != nil {
		return nil, err
	}

	var events []models.AuditEvent
	err = db.Where("company_id = ? AND entity_id = ? AND entity IN ?", actor.CompanyID,
		strconv.FormatUint(uint64(eq.ID), 10),
		[]string{models.EntityEquipment, models.EntityLock, models.EntityAttachment}).
		Order("created_at desc, id desc").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

// hasSavedEquipment reports whether an upsert has ever committed for the equipment.
func hasSavedEquipment(tx *gorm.DB, equipmentID uint) (bool, error) {
	var count int64
	err := tx.Model(&models.AuditEvent{}).
		Where("entity = ? AND entity_id = ? AND action IN ?", models.EntityEquipment,
			strconv.FormatUint(uint64(equipmentID), 10),
			[]models.AuditAction{models.AuditCreate, models.AuditUpdate}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count equipment saves: %w", err)
	}
	return count > 0, nil
}
