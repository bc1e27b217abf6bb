package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/Wikid82/equiptrack/internal/logger"
	"github.com/Wikid82/equiptrack/internal/metrics"
	"github.com/Wikid82/equiptrack/internal/models"
)

const (
	DefaultDueWindowDays = 30
	digestItemLimit      = 20
	reportSheet          = "Compliance"
)

// DueItem is one applicable test row with a due date.
type DueItem struct {
	EquipmentID uint       `json:"equipment_id"`
	Number      string     `json:"number"`
	Type        *string    `json:"type"`
	Description *string    `json:"description"`
	AreaCode    string     `json:"area_code"`
	AreaName    string     `json:"area_name"`
	Applies     bool       `json:"applies"`
	LastDate    *time.Time `json:"last_date"`
	DueDate     *time.Time `json:"due_date"`
	Notes       *string    `json:"notes"`
	Overdue     bool       `json:"overdue" gorm:"-"`
}

// ComplianceService reports on upcoming and overdue tests and runs the
// periodic overdue scan.
type ComplianceService struct {
	db       *gorm.DB
	notifier *NotificationService
	window   int
	now      func() time.Time

	Cron *cron.Cron
}

func NewComplianceService(db *gorm.DB, notifier *NotificationService, windowDays int) *ComplianceService {
	if windowDays <= 0 {
		windowDays = DefaultDueWindowDays
	}
	return &ComplianceService{
		db:       db,
		notifier: notifier,
		window:   windowDays,
		now:      func() time.Time { return time.Now().UTC() },
		Cron:     cron.New(),
	}
}

// Window returns the default look-ahead in days.
func (s *ComplianceService) Window() int { return s.window }

func (s *ComplianceService) testRows(ctx context.Context, companyID uint) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("equipment_tests AS t").
		Select("t.equipment_id, e.number, e.type, e.description, a.code AS area_code, a.name AS area_name, t.applies, t.last_date, t.due_date, t.notes").
		Joins("JOIN equipment e ON e.id = t.equipment_id").
		Joins("JOIN testing_areas a ON a.id = t.area_id").
		Where("e.company_id = ?", companyID)
}

// DueSoon lists applicable tests due on or before now plus withinDays,
// earliest first. Past-due rows are flagged Overdue.
func (s *ComplianceService) DueSoon(ctx context.Context, companyID uint, withinDays int, now time.Time) ([]DueItem, error) {
	if withinDays < 0 {
		return nil, invalid("days", "must not be negative")
	}
	now = now.UTC()
	cutoff := now.AddDate(0, 0, withinDays)

	var items []DueItem
	err := s.testRows(ctx, companyID).
		Where("t.applies = ? AND t.due_date IS NOT NULL AND t.due_date <= ?", true, cutoff).
		Order("t.due_date, e.number").
		Scan(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list due tests: %w", err)
	}
	for i := range items {
		items[i].Overdue = items[i].DueDate.Before(now)
	}
	return items, nil
}

// ExportXLSX writes every test row of the company as a spreadsheet.
func (s *ComplianceService) ExportXLSX(ctx context.Context, companyID uint, w io.Writer) error {
	var items []DueItem
	err := s.testRows(ctx, companyID).Order("e.number, a.code").Scan(&items).Error
	if err != nil {
		return fmt.Errorf("load test rows: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return err
	}
	headers := []interface{}{"Equipment", "Type", "Description", "Area Code", "Area", "Applies", "Last Test", "Due", "Status", "Notes"}
	if err := f.SetSheetRow(reportSheet, "A1", &headers); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(reportSheet, "A1", "J1", style); err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	now := s.now()
	for i, it := range items {
		row := []interface{}{
			it.Number,
			deref(it.Type),
			deref(it.Description),
			it.AreaCode,
			it.AreaName,
			yesNo(it.Applies),
			formatDate(it.LastDate),
			formatDate(it.DueDate),
			complianceStatus(it, now, s.window),
			deref(it.Notes),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(reportSheet, cell, &row); err != nil {
			return err
		}
	}

	for _, cw := range reportColumnWidths {
		if err := f.SetColWidth(reportSheet, cw.from, cw.to, cw.width); err != nil {
			return fmt.Errorf("column width %s: %w", cw.from, err)
		}
	}

	return f.Write(w)
}

var reportColumnWidths = []struct {
	from, to string
	width    float64
}{
	{"A", "B", 18},
	{"C", "C", 30},
	{"E", "E", 26},
	{"G", "I", 14},
	{"J", "J", 40},
}

func complianceStatus(it DueItem, now time.Time, window int) string {
	switch {
	case !it.Applies:
		return "N/A"
	case it.DueDate == nil:
		return "Never tested"
	case it.DueDate.Before(now):
		return "Overdue"
	case !it.DueDate.After(now.AddDate(0, 0, window)):
		return "Due soon"
	default:
		return "OK"
	}
}

// ScanOverdue counts overdue tests per company, publishes the counts as a
// gauge and sends a digest when any are overdue. It returns the counts.
func (s *ComplianceService) ScanOverdue(ctx context.Context) (map[uint]int, error) {
	now := s.now()

	var companies []models.Company
	if err := s.db.WithContext(ctx).Order("id").Find(&companies).Error; err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}

	counts := make(map[uint]int, len(companies))
	var digest strings.Builder
	total := 0
	for _, company := range companies {
		items, err := s.DueSoon(ctx, company.ID, 0, now)
		if err != nil {
			return nil, err
		}
		overdue := items[:0]
		for _, it := range items {
			if it.Overdue {
				overdue = append(overdue, it)
			}
		}
		counts[company.ID] = len(overdue)
		metrics.SetOverdue(company.ID, len(overdue))
		if len(overdue) == 0 {
			continue
		}

		total += len(overdue)
		fmt.Fprintf(&digest, "%s: %d overdue\n", company.Name, len(overdue))
		for i, it := range overdue {
			if i == digestItemLimit {
				fmt.Fprintf(&digest, "  ... and %d more\n", len(overdue)-i)
				break
			}
			fmt.Fprintf(&digest, "  %s %s due %s\n", it.Number, it.AreaCode, formatDate(it.DueDate))
		}
	}

	logger.WithFields(logrus.Fields{"companies": len(companies), "overdue": total}).Info("Overdue scan complete")
	if total > 0 && s.notifier.Enabled() {
		title := fmt.Sprintf("EquipTrack: %d overdue equipment tests", total)
		if err := s.notifier.Send(title, digest.String()); err != nil {
			logger.Log().WithError(err).Warn("Failed to send overdue digest")
		}
	}
	return counts, nil
}

// StartScheduler registers the overdue scan on the cron spec and starts the scheduler.
func (s *ComplianceService) StartScheduler(spec string) error {
	_, err := s.Cron.AddFunc(spec, func() {
		if _, err := s.ScanOverdue(context.Background()); err != nil {
			logger.Log().WithError(err).Error("Overdue scan failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule overdue scan %q: %w", spec, err)
	}
	s.Cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running scan to finish.
func (s *ComplianceService) Stop() {
	<-s.Cron.Stop().Done()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
