// Package dbtest opens throwaway in-memory sqlite databases for package tests.
package dbtest

import (
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/buildtrack/buildtrack-backend/internal/config"
	"github.com/buildtrack/buildtrack-backend/internal/db"
	"github.com/buildtrack/buildtrack-backend/internal/logging"
)

// Open returns a fresh database with foreign keys enforced and the given
// models migrated. The database disappears when the test ends.
func Open(t testing.TB, models ...any) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	d, err := db.Open(config.DatabaseConfig{
		Driver: config.DriverSQLite,
		URL:    dsn,
	}, logging.New("error", "json", io.Discard))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := d.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	// The in-memory database lives only as long as its connection.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if len(models) > 0 {
		if err := d.AutoMigrate(models...); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}
	return d
}
