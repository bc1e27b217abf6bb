package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Wikid82/equiptrack/internal/config"
	"github.com/Wikid82/equiptrack/internal/database"
	"github.com/Wikid82/equiptrack/internal/logger"
	"github.com/Wikid82/equiptrack/internal/server"
	"github.com/Wikid82/equiptrack/internal/services"
	"github.com/Wikid82/equiptrack/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log().WithError(err).Fatal("load config")
	}

	// Log to both stdout and a rotated file
	out := io.Writer(os.Stdout)
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		logger.Log().WithError(err).Warn("log directory unavailable, logging to stdout only")
	} else {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogDir, "equiptrack.log"),
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
	logger.Init(cfg.Debug, out)

	db, err := database.Connect(cfg.DatabaseDSN)
	if err != nil {
		logger.Log().WithError(err).Fatal("connect database")
	}

	// Handle CLI commands
	if len(os.Args) > 1 && os.Args[1] == "reset-password" {
		if len(os.Args) != 4 {
			logger.Log().Fatalf("Usage: %s reset-password <email> <new-password>", os.Args[0])
		}
		if err := database.Migrate(db); err != nil {
			logger.Log().WithError(err).Fatal("migrate database")
		}
		if err := services.NewAuthService(db, cfg).ResetPassword(os.Args[2], os.Args[3]); err != nil {
			logger.Log().WithError(err).Fatal("reset password")
		}
		logger.Log().Info("Password updated successfully")
		return
	}

	logger.Log().WithField("version", version.Full()).Infof("starting %s backend", version.Name)

	srv, err := server.New(db, cfg)
	if err != nil {
		logger.Log().WithError(err).Fatal("build server")
	}

	if err := srv.Services.Compliance.StartScheduler(cfg.DueScanSchedule); err != nil {
		logger.Log().WithError(err).Fatal("start compliance scheduler")
	}
	defer srv.Services.Compliance.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Log().WithError(err).Error("server error")
		return
	}
	logger.Log().Info("server stopped")
}
