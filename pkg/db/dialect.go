package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func Dialect(cfg Config) (gorm.Dialector, error) {
	switch cfg.Type {
	case DialectPostgres:
		return postgres.Open(cfg.DSN()), nil
	case DialectSQLite:
		name := cfg.Name
		if name == "" || name == "postgres" {
			name = "catalog.db"
		}
		return sqlite.Open(name), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", cfg.Type)
	}
}
