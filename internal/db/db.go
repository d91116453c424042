package db

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/buildtrack/buildtrack-backend/internal/config"
	"github.com/buildtrack/buildtrack-backend/internal/logging"
)

var DB *gorm.DB

// Connect opens the configured database and stores it in DB.
func Connect(cfg config.DatabaseConfig, log zerolog.Logger) error {
	d, err := Open(cfg, log)
	if err != nil {
		return err
	}
	DB = d
	log.Info().Str("driver", cfg.Driver).Msg("connected to database")
	return nil
}

// Open returns a gorm handle for cfg. On postgres every table lives in
// cfg.Schema; sqlite has no schemas so tables are unprefixed there.
func Open(cfg config.DatabaseConfig, log zerolog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	naming := schema.NamingStrategy{}

	switch cfg.Driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.URL)
	case config.DriverPostgres, "":
		dialector = postgres.Open(cfg.URL)
		if cfg.Schema != "" {
			naming.TablePrefix = cfg.Schema + "."
		}
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	d, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logging.NewGormLogger(log, cfg.SlowThreshold),
		NamingStrategy: naming,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := d.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 20
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 30 * time.Minute
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen)
	sqlDB.SetConnMaxLifetime(lifetime)

	return d, nil
}
