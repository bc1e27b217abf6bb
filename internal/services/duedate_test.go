package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeDue(t *testing.T) {
	tests := []struct {
		name    string
		last    string
		cadence int
		want    string
	}{
		{"plain year", "2023-01-01", 365, "2024-01-01"},
		{"across leap day", "2024-01-01", 365, "2024-12-31"},
		{"half year", "2024-03-15", 180, "2024-09-11"},
		{"month end", "2024-01-31", 30, "2024-03-01"},
		{"zero cadence", "2024-05-05", 0, "2024-05-05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDue(date(tt.last), tt.cadence)
			if assert.NotNil(t, got) {
				assert.Equal(t, tt.want, got.Format("2006-01-02"))
			}
		})
	}

	assert.Nil(t, ComputeDue(nil, 365))
}

func TestComputeDue_KeepsTimeOfDay(t *testing.T) {
	last, err := ParseTestDate("2024-02-10T14:30:00Z")
	assert.NoError(t, err)
	got := ComputeDue(last, 1)
	assert.Equal(t, "2024-02-11T14:30:00Z", got.Format("2006-01-02T15:04:05Z07:00"))
}

func TestDueFor(t *testing.T) {
	assert.Nil(t, DueFor(false, date("2024-01-01"), 365))
	assert.Nil(t, DueFor(true, nil, 365))
	assert.Equal(t, "2024-12-31", DueFor(true, date("2024-01-01"), 365).Format("2006-01-02"))
}
