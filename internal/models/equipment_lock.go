package models

import "time"

// LockState is the stored status of an equipment lock. LockExpired is never
// persisted; it is derived at read time from an active lock's age.
type LockState string

const (
	LockActive     LockState = "active"
	LockReleased   LockState = "released"
	LockOverridden LockState = "overridden"
	LockExpired    LockState = "expired"
)

// EquipmentLock is the single advisory edit lock for one equipment unit.
// A missing row means the equipment has never been locked.
type EquipmentLock struct {
	EquipmentID uint       `json:"equipment_id" gorm:"primaryKey;autoIncrement:false"`
	LockedBy    uint       `json:"locked_by" gorm:"not null"`
	LockedAt    time.Time  `json:"locked_at" gorm:"not null;index"`
	Status      LockState  `json:"status" gorm:"size:16;not null"`
	OverrideBy  *uint      `json:"override_by"`
	OverrideAt  *time.Time `json:"override_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (EquipmentLock) TableName() string { return "equipment_locks" }

// IsLive reports whether the lock is active and younger than timeout.
func (l *EquipmentLock) IsLive(now time.Time, timeout time.Duration) bool {
	if l == nil || l.Status != LockActive {
		return false
	}
	return now.Sub(l.LockedAt) <= timeout
}

// EffectiveState returns the stored status, or LockExpired for an active lock past timeout.
func (l *EquipmentLock) EffectiveState(now time.Time, timeout time.Duration) LockState {
	if l.Status == LockActive && !l.IsLive(now, timeout) {
		return LockExpired
	}
	return l.Status
}

// HeldBy reports whether userID holds the lock and it has not expired.
func (l *EquipmentLock) HeldBy(userID uint, now time.Time, timeout time.Duration) bool {
	return l.IsLive(now, timeout) && l.LockedBy == userID
}
