package logger_test

import (
	"errors"

	"github.com/wonny/paperflow/pkg/config"
	"github.com/wonny/paperflow/pkg/logger"
)

// Example_basic demonstrates basic logger usage
func Example_basic() {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "console",
	}

	log := logger.New(cfg)

	log.Debug("This won't appear (level is info)")
	log.Info("Audit started")
	log.Warnf("Stage %s has no data", "s01_linked")
}

// Example_withFields demonstrates structured logging with fields
func Example_withFields() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg).WithComponent("audit")

	log.WithFields(map[string]interface{}{
		"stage": "s02_panel",
		"rows":  48211,
	}).Info("Stage audited")

	log.WithError(errors.New("parquet: invalid footer")).Error("Stage unreadable")
}
