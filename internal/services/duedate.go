package services

import "time"

// ComputeDue returns last plus cadenceDays calendar days, or nil when last is nil.
func ComputeDue(last *time.Time, cadenceDays int) *time.Time {
	if last == nil {
		return nil
	}
	due := last.AddDate(0, 0, cadenceDays)
	return &due
}

// DueFor applies the applicability rule on top of ComputeDue: a test that
// does not apply never has a due date.
func DueFor(applies bool, last *time.Time, cadenceDays int) *time.Time {
	if !applies {
		return nil
	}
	return ComputeDue(last, cadenceDays)
}
