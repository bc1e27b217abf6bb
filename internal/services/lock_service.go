package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Wikid82/equiptrack/internal/logger"
	"github.com/Wikid82/equiptrack/internal/metrics"
	"github.com/Wikid82/equiptrack/internal/models"
)

// DefaultLockTimeout is how long an untouched lock stays live.
const DefaultLockTimeout = 15 * time.Minute

// claimAttempts bounds how often an operation re-reads the lock row after
// losing a conditional update to a concurrent request.
const claimAttempts = 3

// LockStatus is the caller-facing view of an equipment lock.
type LockStatus struct {
	EquipmentID  uint             `json:"equipment_id"`
	Number       string           `json:"number"`
	Locked       bool             `json:"locked"`
	Editable     bool             `json:"editable"`
	State        models.LockState `json:"status"`
	LockedBy     *uint            `json:"locked_by,omitempty"`
	LockedByName string           `json:"locked_by_name,omitempty"`
	LockedAt     *time.Time       `json:"locked_at,omitempty"`
	ExpiresAt    *time.Time       `json:"expires_at,omitempty"`
}

// OverrideResult describes the outcome of an override request. Overridden is
// false when there was no live foreign lock to take over.
type OverrideResult struct {
	Overridden     bool        `json:"ok"`
	Editable       bool        `json:"editable"`
	Message        string      `json:"message,omitempty"`
	PreviousHolder *uint       `json:"previous_holder,omitempty"`
	Lock           *LockStatus `json:"lock"`
}

// LockService grants, refreshes, overrides and releases the per-equipment
// edit lock. Every transition is a conditional UPDATE or an insert-if-absent
// so the database row is the single serialization point between requests.
type LockService struct {
	db      *gorm.DB
	timeout time.Duration
	now     func() time.Time
}

func NewLockService(db *gorm.DB, timeout time.Duration) *LockService {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &LockService{
		db:      db,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Timeout returns the configured lock lifetime.
func (s *LockService) Timeout() time.Duration { return s.timeout }

// Acquire gives the caller the edit lock on the equipment, creating the
// equipment if it does not exist yet. When another user holds a live lock
// the returned status has Editable=false and names the holder; that case is
// not an error.
func (s *LockService) Acquire(ctx context.Context, actor Actor, number string) (*LockStatus, error) {
	number, err := normalizeNumber(number)
	if err != nil {
		return nil, err
	}

	var status *LockStatus
	var outcome string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		eq, created, err := findOrCreateEquipment(tx, actor, number)
		if err != nil {
			return err
		}
		if created {
			logger.WithFields(logrus.Fields{"equipment_id": eq.ID, "user_id": actor.UserID}).Info("Equipment registered on first lock")
		}

		for attempt := 0; attempt < claimAttempts; attempt++ {
			now := s.now()

			claimed, err := s.claim(tx, eq.ID, actor.UserID, now)
			if err != nil {
				return err
			}
			if claimed {
				if err := recordAudit(tx, actor, models.AuditLock, models.EntityEquipment, eq.ID, nil,
					map[string]string{"number": number}); err != nil {
					return err
				}
				outcome = metrics.LockAcquired
				status, err = s.statusFor(tx, eq)
				return err
			}

			refreshed, err := s.refresh(tx, eq.ID, actor.UserID, now)
			if err != nil {
				return err
			}
			if refreshed {
				outcome = metrics.LockRefreshed
				status, err = s.statusFor(tx, eq)
				return err
			}

			lock, err := loadLock(tx, eq.ID)
			if err != nil {
				return err
			}
			if lock.IsLive(s.now(), s.timeout) && lock.LockedBy != actor.UserID {
				outcome = metrics.LockConflict
				status, err = s.describe(tx, eq, lock, actor.UserID)
				return err
			}
			// The lock changed hands between our conditional updates; retry.
		}
		return fmt.Errorf("acquire lock on %q: lock row kept changing", number)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncLock(outcome)
	logger.WithFields(logrus.Fields{
		"equipment_id": status.EquipmentID,
		"user_id":      actor.UserID,
		"company_id":   actor.CompanyID,
		"outcome":      outcome,
	}).Info("Lock requested")
	return status, nil
}

// Status reports the current lock state without changing it.
func (s *LockService) Status(ctx context.Context, actor Actor, number string) (*LockStatus, error) {
	number, err := normalizeNumber(number)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	eq, err := findEquipment(db, actor.CompanyID, number)
	if err != nil {
		return nil, err
	}
	lock, err := findLock(db, eq.ID)
	if err != nil {
		return nil, err
	}
	return s.describe(db, eq, lock, actor.UserID)
}

// Override hands a live lock held by another user to the caller. Only
// supervisors and admins may do so. When the lock is absent, expired or
// already the caller's, nothing changes and Overridden is false.
func (s *LockService) Override(ctx context.Context, actor Actor, number, reason string) (*OverrideResult, error) {
	number, err := normalizeNumber(number)
	if err != nil {
		return nil, err
	}

	var result *OverrideResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		eq, err := findEquipment(tx, actor.CompanyID, number)
		if err != nil {
			return err
		}

		for attempt := 0; attempt < claimAttempts; attempt++ {
			now := s.now()
			lock, err := findLock(tx, eq.ID)
			if err != nil {
				return err
			}
			if !lock.IsLive(now, s.timeout) || lock.LockedBy == actor.UserID {
				status, err := s.describe(tx, eq, lock, actor.UserID)
				if err != nil {
					return err
				}
				result = &OverrideResult{
					Message: "No active lock to override or you already hold the lock.",
					Lock:    status,
				}
				return nil
			}
			if !actor.Role.CanOverrideLocks() {
				metrics.IncLock(metrics.LockDenied)
				return fmt.Errorf("%w: overriding a lock requires the supervisor or admin role", ErrPermissionDenied)
			}

			previous := lock.LockedBy
			res := tx.Model(&models.EquipmentLock{}).
				Where("equipment_id = ? AND locked_by = ? AND status = ? AND locked_at >= ?",
					eq.ID, previous, models.LockActive, now.Add(-s.timeout)).
				Updates(map[string]interface{}{
					"override_by": actor.UserID,
					"override_at": now,
					"locked_by":   actor.UserID,
					"locked_at":   now,
					"status":      models.LockActive,
				})
			if res.Error != nil {
				return fmt.Errorf("override lock: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				continue
			}

			if err := recordAudit(tx, actor, models.AuditOverride, models.EntityLock, eq.ID, nil, map[string]string{
				"reason":          reason,
				"previous_holder": fmt.Sprint(previous),
			}); err != nil {
				return err
			}
			status, err := s.statusFor(tx, eq)
			if err != nil {
				return err
			}
			result = &OverrideResult{Overridden: true, Editable: true, PreviousHolder: &previous, Lock: status}
			return nil
		}
		return fmt.Errorf("override lock on %q: lock row kept changing", number)
	})
	if err != nil {
		return nil, err
	}

	if result.Overridden {
		metrics.IncLock(metrics.LockOverridden)
		logger.WithFields(logrus.Fields{
			"equipment_id":    result.Lock.EquipmentID,
			"user_id":         actor.UserID,
			"previous_holder": *result.PreviousHolder,
		}).Warn("Lock overridden")
	}
	return result, nil
}

// Release gives up the caller's lock. It reports false when the caller did
// not hold an active lock or the equipment does not exist.
func (s *LockService) Release(ctx context.Context, actor Actor, number string) (bool, error) {
	number, err := normalizeNumber(number)
	if err != nil {
		return false, err
	}

	released := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		eq, err := findEquipment(tx, actor.CompanyID, number)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		res := tx.Model(&models.EquipmentLock{}).
			Where("equipment_id = ? AND locked_by = ? AND status = ?", eq.ID, actor.UserID, models.LockActive).
			Update("status", models.LockReleased)
		if res.Error != nil {
			return fmt.Errorf("release lock: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		released = true
		return recordAudit(tx, actor, models.AuditUnlock, models.EntityEquipment, eq.ID, nil, nil)
	})
	if err != nil {
		return false, err
	}
	if released {
		metrics.IncLock(metrics.LockReleased)
	}
	return released, nil
}

// RequireHeld fails with ErrLockRequired unless actor holds a live lock on
// the equipment. When someone else holds it, the error also wraps a
// *LockConflictError naming the holder. It must run inside the caller's
// transaction.
func (s *LockService) RequireHeld(tx *gorm.DB, equipmentID uint, actor Actor) error {
	lock, err := findLock(tx, equipmentID)
	if err != nil {
		return err
	}
	now := s.now()
	if lock.HeldBy(actor.UserID, now, s.timeout) {
		return nil
	}
	if !lock.IsLive(now, s.timeout) {
		return ErrLockRequired
	}
	conflict, err := holderConflict(tx, lock)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %w", ErrLockRequired, conflict)
}

// ReleaseHeld releases the caller's live lock inside tx, failing with
// ErrLockRequired if the lock was lost in the meantime.
func (s *LockService) ReleaseHeld(tx *gorm.DB, equipmentID uint, actor Actor) error {
	res := tx.Model(&models.EquipmentLock{}).
		Where("equipment_id = ? AND locked_by = ? AND status = ? AND locked_at >= ?",
			equipmentID, actor.UserID, models.LockActive, s.now().Add(-s.timeout)).
		Update("status", models.LockReleased)
	if res.Error != nil {
		return fmt.Errorf("release lock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrLockRequired
	}
	return nil
}

// claim takes the lock when no row exists or the existing one is released,
// overridden or older than the timeout. It is a single insert-if-absent
// followed by a single update-where-free.
func (s *LockService) claim(tx *gorm.DB, equipmentID, userID uint, now time.Time) (bool, error) {
	lock := models.EquipmentLock{EquipmentID: equipmentID, LockedBy: userID, LockedAt: now, Status: models.LockActive}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&lock)
	if res.Error != nil {
		return false, fmt.Errorf("insert lock: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	res = tx.Model(&models.EquipmentLock{}).
		Where("equipment_id = ? AND (status <> ? OR locked_at < ?)", equipmentID, models.LockActive, now.Add(-s.timeout)).
		Updates(map[string]interface{}{
			"locked_by":   userID,
			"locked_at":   now,
			"status":      models.LockActive,
			"override_by": nil,
			"override_at": nil,
		})
	if res.Error != nil {
		return false, fmt.Errorf("claim lock: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// refresh extends the caller's own live lock.
func (s *LockService) refresh(tx *gorm.DB, equipmentID, userID uint, now time.Time) (bool, error) {
	res := tx.Model(&models.EquipmentLock{}).
		Where("equipment_id = ? AND locked_by = ? AND status = ? AND locked_at >= ?",
			equipmentID, userID, models.LockActive, now.Add(-s.timeout)).
		Update("locked_at", now)
	if res.Error != nil {
		return false, fmt.Errorf("refresh lock: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *LockService) statusFor(tx *gorm.DB, eq *models.Equipment) (*LockStatus, error) {
	lock, err := loadLock(tx, eq.ID)
	if err != nil {
		return nil, err
	}
	return s.describe(tx, eq, lock, lock.LockedBy)
}

// describe renders lock (which may be nil) from viewerID's point of view.
func (s *LockService) describe(tx *gorm.DB, eq *models.Equipment, lock *models.EquipmentLock, viewerID uint) (*LockStatus, error) {
	status := &LockStatus{EquipmentID: eq.ID, Number: eq.Number}
	if lock == nil {
		return status, nil
	}

	now := s.now()
	status.State = lock.EffectiveState(now, s.timeout)
	if !lock.IsLive(now, s.timeout) {
		return status, nil
	}

	holder := lock.LockedBy
	lockedAt := lock.LockedAt
	expiresAt := lockedAt.Add(s.timeout)
	status.Locked = true
	status.Editable = lock.HeldBy(viewerID, now, s.timeout)
	status.LockedBy = &holder
	status.LockedAt = &lockedAt
	status.ExpiresAt = &expiresAt

	name, err := holderName(tx, holder)
	if err != nil {
		return nil, err
	}
	status.LockedByName = name
	return status, nil
}

// holderConflict describes a live lock held by someone else.
func holderConflict(tx *gorm.DB, lock *models.EquipmentLock) (*LockConflictError, error) {
	name, err := holderName(tx, lock.LockedBy)
	if err != nil {
		return nil, err
	}
	return &LockConflictError{
		EquipmentID: lock.EquipmentID,
		HolderID:    lock.LockedBy,
		HolderName:  name,
		LockedAt:    lock.LockedAt,
	}, nil
}

// holderName returns the lock holder's display name, or "" for a deleted user.
func holderName(tx *gorm.DB, userID uint) (string, error) {
	var user models.User
	err := tx.Select("name").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load lock holder: %w", err)
	}
	return user.Name, nil
}

// findLock returns the lock row or nil when the equipment was never locked.
func findLock(tx *gorm.DB, equipmentID uint) (*models.EquipmentLock, error) {
	var lock models.EquipmentLock
	err := tx.Where("equipment_id = ?", equipmentID).Take(&lock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load lock: %w", err)
	}
	return &lock, nil
}

func loadLock(tx *gorm.DB, equipmentID uint) (*models.EquipmentLock, error) {
	lock, err := findLock(tx, equipmentID)
	if err != nil {
		return nil, err
	}
	if lock == nil {
		return nil, fmt.Errorf("lock for equipment %d disappeared", equipmentID)
	}
	return lock, nil
}
