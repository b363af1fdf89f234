package catalogmetrics

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/smallbiznis/catalog/internal/config"
	"github.com/smallbiznis/catalog/internal/migration"
	productdomain "github.com/smallbiznis/catalog/internal/product/domain"
	"github.com/smallbiznis/catalog/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("catalog.metrics",
	fx.Provide(newSources),
	fx.Provide(func(s sources) *Collector {
		return NewCollector(s.products, s.schema)
	}),
	fx.Provide(NewPusher),
	fx.Invoke(registerWorker),
)

type sources struct {
	products ProductCounter
	schema   SchemaReader
}

type productCounter struct {
	db   *gorm.DB
	repo productdomain.Repository
}

func (c productCounter) CountProducts(ctx context.Context) (int64, error) {
	return c.repo.Count(ctx, c.db)
}

type schemaReader struct {
	db *gorm.DB
}

func (r schemaReader) SchemaState(ctx context.Context) (migration.State, error) {
	sqlDB, err := r.db.DB()
	if err != nil {
		return migration.State{}, err
	}
	return migration.ReadState(ctx, sqlDB)
}

func newSources(conn *gorm.DB, repo productdomain.Repository, dbCfg db.Config) sources {
	s := sources{products: productCounter{db: conn, repo: repo}}
	// sqlite schemas come from AutoMigrate and carry no version table
	if dbCfg.Type == db.DialectPostgres {
		s.schema = schemaReader{db: conn}
	}
	return s
}

func registerWorker(lc fx.Lifecycle, cfg config.Config, c *Collector, pusher Pusher, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("catalog.metrics")

	interval := time.Duration(cfg.Metrics.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	w := newWorker(c, pusher, interval, log)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			w.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			err := w.Stop(ctx)
			if closer, ok := pusher.(io.Closer); ok {
				err = errors.Join(err, closer.Close())
			}
			return err
		},
	})
}
