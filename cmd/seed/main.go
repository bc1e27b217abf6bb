package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Wikid82/equiptrack/internal/config"
	"github.com/Wikid82/equiptrack/internal/database"
	"github.com/Wikid82/equiptrack/internal/logger"
	"github.com/Wikid82/equiptrack/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log().WithError(err).Fatal("load config")
	}
	logger.Init(cfg.Debug, os.Stdout)

	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		logger.Log().WithError(err).Fatal("connect database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Log().WithError(err).Fatal("migrate database")
	}

	fmt.Println("✓ Database migrated successfully")

	res, err := services.NewSeedService(db).Seed(context.Background())
	if err != nil {
		logger.Log().WithError(err).Fatal("seed")
	}

	fmt.Printf("✓ Company %q (id %d)\n", services.DefaultCompanyName, res.CompanyID)
	if res.AdminCreated {
		fmt.Printf("✓ Admin created: %s / %s\n", services.DefaultAdminEmail, services.DefaultAdminPassword)
	} else {
		fmt.Printf("  Admin already present: %s\n", res.AdminEmail)
	}
	fmt.Printf("✓ Testing areas created: %d\n", res.AreasCreated)
}
