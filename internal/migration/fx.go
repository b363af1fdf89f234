package migration

import (
	"context"
	"fmt"

	"github.com/smallbiznis/catalog/internal/config"
	productdomain "github.com/smallbiznis/catalog/internal/product/domain"
	"github.com/smallbiznis/catalog/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(lc fx.Lifecycle, conn *gorm.DB, cfg config.Config, dbCfg db.Config, log *zap.Logger) {
		if !cfg.DBAutoMigrate {
			return
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return Migrate(ctx, conn, dbCfg.Type, log)
			},
		})
	}),
)

// Migrate brings the schema to head. Postgres runs the versioned migrations;
// sqlite, used for local development, gets an equivalent table from the model.
func Migrate(ctx context.Context, conn *gorm.DB, dialect string, log *zap.Logger) error {
	switch dialect {
	case db.DialectPostgres:
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		runner, err := NewRunner(sqlDB, log)
		if err != nil {
			return err
		}
		return runner.Up(ctx)
	case db.DialectSQLite:
		return conn.WithContext(ctx).AutoMigrate(&productdomain.Product{})
	default:
		return fmt.Errorf("auto migrate: unsupported %s type", dialect)
	}
}
