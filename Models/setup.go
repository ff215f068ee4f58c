package Models

import (
	"fmt"
	"log"
	"os"
	"time"

	"SpareLink/Config"

	mysqlcfg "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the configured database and migrates the engine tables.
func Connect(cfg Config.Config) (*gorm.DB, error) {
	dialector, err := openDialector(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}

	gormLogger := logger.New(
		log.New(os.Stdout, "[GORM] ", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogLevel(cfg.GormLogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBDriver, err)
	}
	if cfg.DBDriver == "sqlite" {
		// one writer at a time; sqlite has no row locks to serialize ledger updates
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Printf("DB connected: driver=%s", cfg.DBDriver)
	return db, nil
}

func openDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "sqlite", "":
		return sqlite.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		normalized, err := normalizeMySQLDSN(dsn)
		if err != nil {
			return nil, err
		}
		return mysql.Open(normalized), nil
	}
	return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
}

// normalizeMySQLDSN forces parseTime so DATETIME columns scan into time.Time.
func normalizeMySQLDSN(dsn string) (string, error) {
	parsed, err := mysqlcfg.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql DSN: %w", err)
	}
	parsed.ParseTime = true
	if parsed.Loc == nil {
		parsed.Loc = time.UTC
	}
	return parsed.FormatDSN(), nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	}
	return logger.Warn
}

// Migrate creates or updates the engine tables. Reference data first, then
// ledger, then workflow and per-call state.
func Migrate(db *gorm.DB) error {
	steps := [][]any{
		{&SparePart{}, &ServiceCall{}},
		{&InventoryRecord{}, &StockMovement{}, &MovementItem{}},
		{&SpareRequest{}, &SpareRequestItem{}, &ReturnRequest{}, &ReturnItem{}},
		{&CallSpareUsage{}, &TATTracking{}, &TATHold{}},
	}
	for _, models := range steps {
		if err := db.AutoMigrate(models...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	}
	return nil
}
