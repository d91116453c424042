package tracker

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/buildtrack/buildtrack-backend/internal/db"
)

// Init creates the tracker tables and returns the storage over them.
func Init(d *gorm.DB, schema string) (*Storage, error) {
	if err := db.EnsureSchema(d, schema); err != nil {
		return nil, fmt.Errorf("ensure schema %s: %w", schema, err)
	}
	if err := d.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("auto-migrate tracker tables: %w", err)
	}
	return NewStorage(d)
}
