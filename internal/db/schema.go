package db

import (
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// EnsureSchema creates the postgres schema that holds every table. It is a
// no-op for dialects without schemas.
func EnsureSchema(d *gorm.DB, schema string) error {
	if schema == "" || d.Dialector.Name() != "postgres" {
		return nil
	}
	return d.Exec("CREATE SCHEMA IF NOT EXISTS " + pq.QuoteIdentifier(schema)).Error
}
