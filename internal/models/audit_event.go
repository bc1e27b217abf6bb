package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditAction names the kind of change an AuditEvent records.
type AuditAction string

const (
	AuditCreate   AuditAction = "create"
	AuditUpdate   AuditAction = "update"
	AuditLock     AuditAction = "lock"
	AuditUnlock   AuditAction = "unlock"
	AuditOverride AuditAction = "override"
	AuditUpload   AuditAction = "upload"
)

// Audit entity names.
const (
	EntityEquipment  = "Equipment"
	EntityLock       = "Lock"
	EntityAttachment = "Attachment"
)

// FieldChange is one field's value before and after a change. Values are
// stored as strings; nil means the field was empty.
type FieldChange struct {
	Field string  `json:"field"`
	Old   *string `json:"old"`
	New   *string `json:"new"`
}

// Changed reports whether the old and new values differ.
func (c FieldChange) Changed() bool {
	switch {
	case c.Old == nil && c.New == nil:
		return false
	case c.Old == nil || c.New == nil:
		return true
	default:
		return *c.Old != *c.New
	}
}

// AuditEvent is an append-only record of a change made by a user.
type AuditEvent struct {
	ID        uint              `json:"id" gorm:"primaryKey"`
	UUID      string            `json:"uuid" gorm:"uniqueIndex"`
	CompanyID uint              `json:"company_id" gorm:"not null;index"`
	ActorID   uint              `json:"actor_id" gorm:"not null;index"`
	Action    AuditAction       `json:"action" gorm:"size:16;not null"`
	Entity    string            `json:"entity" gorm:"size:32;not null;index:idx_audit_entity"`
	EntityID  string            `json:"entity_id" gorm:"size:64;not null;index:idx_audit_entity"`
	Changes   []FieldChange     `json:"changes,omitempty" gorm:"serializer:json"`
	Metadata  map[string]string `json:"metadata,omitempty" gorm:"serializer:json"`
	IP        string            `json:"ip,omitempty"`
	CreatedAt time.Time         `json:"created_at" gorm:"index"`
}

func (AuditEvent) TableName() string { return "audit_events" }

// BeforeCreate fills in the public UUID.
func (e *AuditEvent) BeforeCreate(tx *gorm.DB) error {
	if e.UUID == "" {
		e.UUID = uuid.NewString()
	}
	return nil
}
