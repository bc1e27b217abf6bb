package services

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Wikid82/equiptrack/internal/logger"
	"github.com/Wikid82/equiptrack/internal/metrics"
	"github.com/Wikid82/equiptrack/internal/models"
	"github.com/Wikid82/equiptrack/internal/util"
)

// FilesURLPrefix is the public path attachments are served under.
const FilesURLPrefix = "/api/v1/files/"

// UploadInput describes one uploaded file.
type UploadInput struct {
	Number      string
	AreaCode    string
	FileName    string
	ContentType string
	Body        io.Reader
}

// AttachmentService stores files against equipment under the edit lock.
// Unlike an upsert, an upload leaves the lock in place.
type AttachmentService struct {
	db       *gorm.DB
	blobs    BlobStore
	locks    *LockService
	maxBytes int64
	now      func() time.Time
}

func NewAttachmentService(db *gorm.DB, blobs BlobStore, locks *LockService, maxBytes int64) *AttachmentService {
	return &AttachmentService{
		db:       db,
		blobs:    blobs,
		locks:    locks,
		maxBytes: maxBytes,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores the file body and records it as an attachment of the
// equipment. The equipment must exist and the caller must hold its lock.
func (s *AttachmentService) Upload(ctx context.Context, actor Actor, in UploadInput) (*models.Attachment, error) {
	number, err := normalizeNumber(in.Number)
	if err != nil {
		return nil, err
	}
	if in.Body == nil {
		return nil, invalid("file", "is required")
	}
	db := s.db.WithContext(ctx)

	eq, err := findEquipment(db, actor.CompanyID, number)
	if err != nil {
		return nil, err
	}
	if err := s.locks.RequireHeld(db, eq.ID, actor); err != nil {
		return nil, err
	}

	body := bufio.NewReaderSize(in.Body, 512)
	contentType := strings.TrimSpace(in.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		head, _ := body.Peek(512)
		contentType = http.DetectContentType(head)
	}

	hasher := sha256.New()
	reader := io.TeeReader(body, hasher)
	if s.maxBytes > 0 {
		reader = io.LimitReader(reader, s.maxBytes+1)
	}

	name := fmt.Sprintf("%d_%d_%s", eq.ID, s.now().UnixNano(), util.SanitizeFileName(in.FileName))
	size, err := s.blobs.Put(name, reader)
	if err != nil {
		return nil, err
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		s.discard(name)
		return nil, invalid("file", "exceeds the %d byte upload limit", s.maxBytes)
	}

	att := &models.Attachment{
		CompanyID:   actor.CompanyID,
		EquipmentID: eq.ID,
		StorageKey:  name,
		FileURL:     FilesURLPrefix + name,
		FileName:    in.FileName,
		FileHash:    hex.EncodeToString(hasher.Sum(nil)),
		FileType:    contentType,
		SizeBytes:   size,
		UploadedBy:  actor.UserID,
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		// The lock may have been overridden while the body was streaming.
		if err := s.locks.RequireHeld(tx, eq.ID, actor); err != nil {
			return err
		}
		if code := strings.TrimSpace(in.AreaCode); code != "" {
			var area models.TestingArea
			err := tx.Where("company_id = ? AND code = ?", actor.CompanyID, code).Take(&area).Error
			switch {
			case err == nil:
				att.AreaID = &area.ID
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return fmt.Errorf("load testing area: %w", err)
			}
		}
		if err := tx.Create(att).Error; err != nil {
			return fmt.Errorf("save attachment: %w", err)
		}
		return recordAudit(tx, actor, models.AuditUpload, models.EntityAttachment, eq.ID, nil, map[string]string{
			"attachment": att.UUID,
			"file_name":  att.FileName,
			"file_hash":  att.FileHash,
		})
	})
	if err != nil {
		s.discard(name)
		return nil, err
	}

	metrics.IncUpload()
	logger.WithFields(logrus.Fields{
		"equipment_id": eq.ID,
		"user_id":      actor.UserID,
		"attachment":   att.UUID,
		"size":         size,
	}).Info("Attachment stored")
	return att, nil
}

func (s *AttachmentService) discard(name string) {
	if err := s.blobs.Delete(name); err != nil {
		logger.Log().WithField("blob", util.SanitizeForLog(name)).WithError(err).Warn("Failed to remove orphaned upload")
	}
}

// Fetch opens an attachment by its storage reference. Attachments of other
// companies are reported as not found.
func (s *AttachmentService) Fetch(ctx context.Context, actor Actor, reference string) (*models.Attachment, io.ReadCloser, error) {
	reference = strings.TrimPrefix(strings.TrimSpace(reference), FilesURLPrefix)
	if reference == "" {
		return nil, nil, invalid("name", "is required")
	}

	var att models.Attachment
	err := s.db.WithContext(ctx).Where("storage_key = ? AND company_id = ?", reference, actor.CompanyID).Take(&att).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("attachment %q: %w", reference, ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load attachment: %w", err)
	}

	rc, err := s.blobs.Open(att.StorageKey)
	if err != nil {
		return nil, nil, err
	}
	return &att, rc, nil
}

// List returns the equipment's attachments, newest first.
func (s *AttachmentService) List(ctx context.Context, actor Actor, number string) ([]models.Attachment, error) {
	number, err := normalizeNumber(number)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	eq, err := findEquipment(db, actor.CompanyID, number)
	if err != nil {
		return nil, err
	}

	var items []models.Attachment
	if err := db.Where("equipment_id = ?", eq.ID).Order("uploaded_at desc, id desc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return items, nil
}
