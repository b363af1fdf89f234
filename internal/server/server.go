package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/catalog/internal/auth"
	"github.com/smallbiznis/catalog/internal/authorization"
	"github.com/smallbiznis/catalog/internal/cache"
	"github.com/smallbiznis/catalog/internal/catalogmetrics"
	"github.com/smallbiznis/catalog/internal/config"
	"github.com/smallbiznis/catalog/internal/observability"
	obsmiddleware "github.com/smallbiznis/catalog/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/catalog/internal/observability/metrics"
	obstracing "github.com/smallbiznis/catalog/internal/observability/tracing"
	"github.com/smallbiznis/catalog/internal/product"
	productdomain "github.com/smallbiznis/catalog/internal/product/domain"
	"github.com/smallbiznis/catalog/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	catalogmetrics.Module,
	fx.Provide(registerGin),
	authorization.Module,
	auth.Module,
	cache.Module,
	ratelimit.Module,
	product.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, gatherers ...prometheus.Gatherer) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	all := prometheus.Gatherers{prometheus.DefaultGatherer}
	if httpMetrics != nil {
		all = append(all, httpMetrics.Registry)
	}
	all = append(all, gatherers...)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(all, promhttp.HandlerOpts{})))

	return r
}

type ginParams struct {
	fx.In

	ObsCfg      observability.Config
	HTTPMetrics *obsmetrics.HTTPMetrics
	Collector   *catalogmetrics.Collector `optional:"true"`
}

func registerGin(p ginParams) *gin.Engine {
	if p.Collector != nil {
		return NewEngine(p.ObsCfg, p.HTTPMetrics, p.Collector.Registry())
	}
	return NewEngine(p.ObsCfg, p.HTTPMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	db         *gorm.DB
	tokens     *auth.TokenService
	appKey     *auth.AppKey
	productSvc productdomain.Service
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	DB         *gorm.DB
	Tokens     *auth.TokenService
	AppKey     *auth.AppKey
	ProductSvc productdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		db:         p.DB,
		tokens:     p.Tokens,
		appKey:     p.AppKey,
		productSvc: p.ProductSvc,
	}

	svc.registerHealthRoutes()
	svc.registerAPIRoutes()
	svc.registerInternalRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerHealthRoutes() {
	s.engine.GET("/health", s.Health)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1", s.AuthRequired())

	api.GET("/products", s.ListProducts)
	api.POST("/products", s.CreateProduct)
	api.GET("/products/:uuid", s.GetProductByUUID)
	api.PATCH("/products/:uuid", s.UpdateProduct)
	api.DELETE("/products/:uuid", s.DeleteProduct)
}

func (s *Server) registerInternalRoutes() {
	internal := s.engine.Group("/internal/v1", s.InternalAuthRequired())

	internal.GET("/products", s.ListProducts)
	internal.POST("/products", s.CreateProduct)
}

// Health reports liveness and whether the database answers a ping.
func (s *Server) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		obsmiddleware.WithContext(ctx, zap.L()).Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "up"})
}
