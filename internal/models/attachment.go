package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Attachment references an uploaded file. Rows are never updated after creation.
type Attachment struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UUID        string    `json:"uuid" gorm:"uniqueIndex"`
	CompanyID   uint      `json:"company_id" gorm:"not null;index"`
	EquipmentID uint      `json:"equipment_id" gorm:"not null;index"`
	AreaID      *uint     `json:"area_id"`
	StorageKey  string    `json:"-" gorm:"uniqueIndex;not null"`
	FileURL     string    `json:"file_url" gorm:"not null"`
	FileName    string    `json:"file_name"`
	FileHash    string    `json:"file_hash"`
	FileType    string    `json:"file_type"`
	SizeBytes   int64     `json:"size_bytes"`
	UploadedBy  uint      `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

func (Attachment) TableName() string { return "attachments" }

// BeforeCreate fills in the public UUID and upload time.
func (a *Attachment) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == "" {
		a.UUID = uuid.NewString()
	}
	if a.UploadedAt.IsZero() {
		a.UploadedAt = time.Now().UTC()
	}
	return nil
}
