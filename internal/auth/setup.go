package auth

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/buildtrack/buildtrack-backend/internal/db"
)

// Init creates the auth tables.
func Init(d *gorm.DB, schema string) error {
	if err := db.EnsureSchema(d, schema); err != nil {
		return fmt.Errorf("ensure schema %s: %w", schema, err)
	}
	if err := d.AutoMigrate(&User{}, &Session{}); err != nil {
		return fmt.Errorf("auto-migrate auth tables: %w", err)
	}
	return nil
}
