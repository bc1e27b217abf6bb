package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Wikid82/equiptrack/internal/logger"
	"github.com/Wikid82/equiptrack/internal/models"
)

const (
	DefaultCompanyName   = "Default Co"
	DefaultAdminEmail    = "admin@example.com"
	DefaultAdminPassword = "admin123"
)

var liftTrucks = []string{"Bucket Truck", "Digger Derrick"}

// defaultTestingAreas is the catalog every seeded company starts with.
var defaultTestingAreas = []models.TestingArea{
	{Code: "DIELECTRIC", Name: "Dielectric (Boom)", AppliesToTypes: liftTrucks, DefaultCadenceDays: 365},
	{Code: "DOT_ANNUAL", Name: "Annual DOT Inspection", AppliesToTypes: []string{"Bucket Truck", "Digger Derrick", "Truck"}, DefaultCadenceDays: 365},
	{Code: "CHASSIS_PM", Name: "Chassis PM", AppliesToTypes: []string{"Truck", "Bucket Truck", "Digger Derrick"}, DefaultCadenceDays: 180},
	{Code: "HYDRAULICS", Name: "Hydraulics", AppliesToTypes: liftTrucks, DefaultCadenceDays: 180},
	{Code: "FALL_PROTECT", Name: "Fall Protection/Lanyards", AppliesToTypes: liftTrucks, DefaultCadenceDays: 365},
	{Code: "GROUNDS_STICKS", Name: "Grounds/Hot Sticks", AppliesToTypes: liftTrucks, DefaultCadenceDays: 180},
}

// SeedResult reports what the seed ensured exists.
type SeedResult struct {
	CompanyID    uint   `json:"company_id"`
	AdminEmail   string `json:"admin_email"`
	AreasCreated int    `json:"areas_created"`
	AdminCreated bool   `json:"admin_created"`
}

type SeedService struct {
	db *gorm.DB
}

func NewSeedService(db *gorm.DB) *SeedService {
	return &SeedService{db: db}
}

// Seed ensures the default company, its admin and the testing area catalog
// exist. Running it again changes nothing.
func (s *SeedService) Seed(ctx context.Context) (*SeedResult, error) {
	result := &SeedResult{AdminEmail: DefaultAdminEmail}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		company := models.Company{Name: DefaultCompanyName}
		if err := tx.Where(models.Company{Name: DefaultCompanyName}).FirstOrCreate(&company).Error; err != nil {
			return fmt.Errorf("ensure company: %w", err)
		}
		result.CompanyID = company.ID

		var admin models.User
		err := tx.Where("email = ?", DefaultAdminEmail).First(&admin).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			admin = models.User{
				CompanyID: company.ID,
				Email:     DefaultAdminEmail,
				Name:      "Admin",
				Role:      models.RoleAdmin,
				Enabled:   true,
			}
			if err := admin.SetPassword(DefaultAdminPassword); err != nil {
				return fmt.Errorf("hash admin password: %w", err)
			}
			if err := tx.Create(&admin).Error; err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			result.AdminCreated = true
		case err != nil:
			return fmt.Errorf("load admin: %w", err)
		}

		for _, def := range defaultTestingAreas {
			var count int64
			if err := tx.Model(&models.TestingArea{}).Where("company_id = ? AND code = ?", company.ID, def.Code).Count(&count).Error; err != nil {
				return fmt.Errorf("check testing area %s: %w", def.Code, err)
			}
			if count > 0 {
				continue
			}
			area := def
			area.CompanyID = company.ID
			area.AppliesToTypes = append([]string(nil), def.AppliesToTypes...)
			if err := tx.Create(&area).Error; err != nil {
				return fmt.Errorf("create testing area %s: %w", def.Code, err)
			}
			result.AreasCreated++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log().WithField("company_id", result.CompanyID).
		WithField("areas_created", result.AreasCreated).
		WithField("admin_created", result.AdminCreated).
		Info("Seed complete")
	return result, nil
}
