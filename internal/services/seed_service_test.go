package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wikid82/equiptrack/internal/models"
)

func TestSeedService_SeedIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSeedService(db)
	ctx := context.Background()

	first, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.True(t, first.AdminCreated)
	assert.Equal(t, 6, first.AreasCreated)
	assert.Equal(t, DefaultAdminEmail, first.AdminEmail)

	second, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.CompanyID, second.CompanyID)
	assert.False(t, second.AdminCreated)
	assert.Zero(t, second.AreasCreated)

	var companies, users, areas int64
	db.Model(&models.Company{}).Count(&companies)
	db.Model(&models.User{}).Count(&users)
	db.Model(&models.TestingArea{}).Count(&areas)
	assert.Equal(t, int64(1), companies)
	assert.Equal(t, int64(1), users)
	assert.Equal(t, int64(6), areas)
}

func TestSeedService_Catalog(t *testing.T) {
	db := setupTestDB(t)
	res, err := NewSeedService(db).Seed(context.Background())
	require.NoError(t, err)

	var areas []models.TestingArea
	require.NoError(t, db.Where("company_id = ?", res.CompanyID).Find(&areas).Error)
	cadence := map[string]int{}
	for _, a := range areas {
		cadence[a.Code] = a.DefaultCadenceDays
	}
	assert.Equal(t, map[string]int{
		"DIELECTRIC":     365,
		"DOT_ANNUAL":     365,
		"CHASSIS_PM":     180,
		"HYDRAULICS":     180,
		"FALL_PROTECT":   365,
		"GROUNDS_STICKS": 180,
	}, cadence)

	var dot models.TestingArea
	require.NoError(t, db.Where("code = ?", "DOT_ANNUAL").First(&dot).Error)
	assert.Equal(t, []string{"Bucket Truck", "Digger Derrick", "Truck"}, dot.AppliesToTypes)
	assert.True(t, dot.AppliesTo("truck"))

	var admin models.User
	require.NoError(t, db.Where("email = ?", DefaultAdminEmail).First(&admin).Error)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.True(t, admin.Enabled)
	assert.True(t, admin.CheckPassword(DefaultAdminPassword))
}
