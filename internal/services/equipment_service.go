package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Wikid82/equiptrack/internal/logger"
	"github.com/Wikid82/equiptrack/internal/metrics"
	"github.com/Wikid82/equiptrack/internal/models"
)

// TestRowInput is one submitted test result.
type TestRowInput struct {
	AreaCode string
	Applies  bool
	LastDate *time.Time
	Notes    *string
}

// UpsertInput carries a full equipment submission. Every scalar field is
// written as given; nil clears it.
type UpsertInput struct {
	Number         string
	Description    *string
	Type           *string
	CurrentJob     *string
	CurrentMileage *int
	Tests          []TestRowInput
}

// EquipmentDetail is an equipment unit with everything attached to it.
type EquipmentDetail struct {
	Equipment   *models.Equipment      `json:"equipment"`
	Tests       []models.EquipmentTest `json:"tests"`
	Attachments []models.Attachment    `json:"attachments"`
	Lock        *LockStatus            `json:"lock"`
}

// EquipmentFilter narrows List results. Empty fields match everything.
type EquipmentFilter struct {
	Type   string
	Search string
}

// EquipmentService applies equipment submissions under the edit lock and
// serves read views of equipment and the testing area catalog.
type EquipmentService struct {
	db    *gorm.DB
	locks *LockService
}

func NewEquipmentService(db *gorm.DB, locks *LockService) *EquipmentService {
	return &EquipmentService{db: db, locks: locks}
}

// ParseTestDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp.
// An empty string means no date.
func ParseTestDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, invalid("last_date", "%q is not a date (expected YYYY-MM-DD or RFC 3339)", s)
	}
	t = t.UTC()
	return &t, nil
}

func (in *UpsertInput) validate() error {
	number, err := normalizeNumber(in.Number)
	if err != nil {
		return err
	}
	in.Number = number
	if in.CurrentMileage != nil && *in.CurrentMileage < 0 {
		return invalid("mileage", "must not be negative")
	}
	for i := range in.Tests {
		code := strings.TrimSpace(in.Tests[i].AreaCode)
		if code == "" {
			return invalid(fmt.Sprintf("tests[%d].area_code", i), "is required")
		}
		in.Tests[i].AreaCode = code
	}
	return nil
}

// Upsert writes the submitted fields and test rows, records an audit event
// and releases the caller's lock, all in one transaction. It fails with
// ErrLockRequired unless the caller holds a live lock on the equipment.
func (s *EquipmentService) Upsert(ctx context.Context, actor Actor, in UpsertInput) (*models.Equipment, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var saved *models.Equipment
	var action models.AuditAction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		eq, _, err := findOrCreateEquipment(tx, actor, in.Number)
		if err != nil {
			return err
		}
		if err := s.locks.RequireHeld(tx, eq.ID, actor); err != nil {
			return err
		}

		seen, err := hasSavedEquipment(tx, eq.ID)
		if err != nil {
			return err
		}
		action = models.AuditCreate
		if seen {
			action = models.AuditUpdate
		}

		before := eq.Fields()
		eq.Apply(models.EquipmentFields{
			Description:    in.Description,
			Type:           in.Type,
			CurrentJob:     in.CurrentJob,
			CurrentMileage: in.CurrentMileage,
		})
		updatedBy := actor.UserID
		eq.UpdatedBy = &updatedBy
		if err := tx.Save(eq).Error; err != nil {
			return fmt.Errorf("save equipment: %w", err)
		}

		if err := s.applyTests(tx, actor, eq.ID, in.Tests); err != nil {
			return err
		}

		if err := recordAudit(tx, actor, action, models.EntityEquipment, eq.ID, before.Diff(eq.Fields()),
			map[string]string{"number": eq.Number}); err != nil {
			return err
		}

		if err := s.locks.ReleaseHeld(tx, eq.ID, actor); err != nil {
			return err
		}
		saved = eq
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrLockRequired) {
			metrics.IncUpsert("rejected")
		}
		return nil, err
	}

	metrics.IncUpsert(string(action))
	logger.WithFields(logrus.Fields{
		"equipment_id": saved.ID,
		"user_id":      actor.UserID,
		"company_id":   actor.CompanyID,
		"action":       action,
		"tests":        len(in.Tests),
	}).Info("Equipment saved")
	return saved, nil
}

// applyTests upserts one EquipmentTest per submitted row whose area code is
// in the company catalog. Rows naming unknown codes are skipped.
func (s *EquipmentService) applyTests(tx *gorm.DB, actor Actor, equipmentID uint, rows []TestRowInput) error {
	if len(rows) == 0 {
		return nil
	}

	codes := make([]string, 0, len(rows))
	for _, row := range rows {
		codes = append(codes, row.AreaCode)
	}
	var areas []models.TestingArea
	if err := tx.Where("company_id = ? AND code IN ?", actor.CompanyID, codes).Find(&areas).Error; err != nil {
		return fmt.Errorf("load testing areas: %w", err)
	}
	byCode := make(map[string]*models.TestingArea, len(areas))
	for i := range areas {
		byCode[areas[i].Code] = &areas[i]
	}

	for _, row := range rows {
		area, ok := byCode[row.AreaCode]
		if !ok {
			logger.WithFields(logrus.Fields{"equipment_id": equipmentID, "area_code": row.AreaCode}).Debug("Skipping unknown testing area")
			continue
		}

		var test models.EquipmentTest
		err := tx.Where("equipment_id = ? AND area_id = ?", equipmentID, area.ID).Take(&test).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("load test row: %w", err)
		}
		test.EquipmentID = equipmentID
		test.AreaID = area.ID
		test.Applies = row.Applies
		test.LastDate = row.LastDate
		test.DueDate = DueFor(row.Applies, row.LastDate, area.DefaultCadenceDays)
		test.Notes = row.Notes
		test.UpdatedBy = actor.UserID
		if err := tx.Save(&test).Error; err != nil {
			return fmt.Errorf("save test row %s: %w", area.Code, err)
		}
	}
	return nil
}

// Get returns the equipment with its test rows, attachments and lock state.
func (s *EquipmentService) Get(ctx context.Context, actor Actor, number string) (*EquipmentDetail, error) {
	number, err := normalizeNumber(number)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	eq, err := findEquipment(db, actor.CompanyID, number)
	if err != nil {
		return nil, err
	}

	detail := &EquipmentDetail{Equipment: eq}
	if err := db.Preload("Area").Where("equipment_id = ?", eq.ID).Order("area_id").Find(&detail.Tests).Error; err != nil {
		return nil, fmt.Errorf("load test rows: %w", err)
	}
	if err := db.Where("equipment_id = ?", eq.ID).Order("uploaded_at desc, id desc").Find(&detail.Attachments).Error; err != nil {
		return nil, fmt.Errorf("load attachments: %w", err)
	}
	lock, err := findLock(db, eq.ID)
	if err != nil {
		return nil, err
	}
	if detail.Lock, err = s.locks.describe(db, eq, lock, actor.UserID); err != nil {
		return nil, err
	}
	return detail, nil
}

// List returns the company's equipment ordered by number.
func (s *EquipmentService) List(ctx context.Context, actor Actor, filter EquipmentFilter) ([]models.Equipment, error) {
	q := s.db.WithContext(ctx).Where("company_id = ?", actor.CompanyID)
	if t := strings.TrimSpace(filter.Type); t != "" {
		q = q.Where("type = ?", t)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(number) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	var items []models.Equipment
	if err := q.Order("number").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list equipment: %w", err)
	}
	return items, nil
}

// ListTestingAreas returns the company's testing area catalog.
func (s *EquipmentService) ListTestingAreas(ctx context.Context, actor Actor) ([]models.TestingArea, error) {
	var areas []models.TestingArea
	if err := s.db.WithContext(ctx).Where("company_id = ?", actor.CompanyID).Order("code").Find(&areas).Error; err != nil {
		return nil, fmt.Errorf("list testing areas: %w", err)
	}
	return areas, nil
}
