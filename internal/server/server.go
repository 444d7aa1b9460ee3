package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/pos/internal/audit"
	auditdomain "github.com/smallbiznis/pos/internal/audit/domain"
	"github.com/smallbiznis/pos/internal/catalog"
	catalogdomain "github.com/smallbiznis/pos/internal/catalog/domain"
	"github.com/smallbiznis/pos/internal/client"
	clientdomain "github.com/smallbiznis/pos/internal/client/domain"
	"github.com/smallbiznis/pos/internal/config"
	"github.com/smallbiznis/pos/internal/observability"
	obsmiddleware "github.com/smallbiznis/pos/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/pos/internal/observability/metrics"
	obstracing "github.com/smallbiznis/pos/internal/observability/tracing"
	"github.com/smallbiznis/pos/internal/product"
	productdomain "github.com/smallbiznis/pos/internal/product/domain"
	"github.com/smallbiznis/pos/internal/ratelimit"
	"github.com/smallbiznis/pos/internal/sale"
	saledomain "github.com/smallbiznis/pos/internal/sale/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	ratelimit.Module,
	audit.Module,
	catalog.Module,
	product.Module,
	client.Module,
	sale.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
	engine        *gin.Engine
	cfg           config.Config
	productSvc    productdomain.Service
	clientSvc     clientdomain.Service
	catalogSvc    catalogdomain.Provider
	saleSvc       saledomain.Service
	auditSvc      auditdomain.Service
	commitLimiter *ratelimit.SaleCommitLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	ProductSvc    productdomain.Service
	ClientSvc     clientdomain.Service
	CatalogSvc    catalogdomain.Provider
	SaleSvc       saledomain.Service
	AuditSvc      auditdomain.Service          `optional:"true"`
	CommitLimiter *ratelimit.SaleCommitLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics          `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		productSvc:    p.ProductSvc,
		clientSvc:     p.ClientSvc,
		catalogSvc:    p.CatalogSvc,
		saleSvc:       p.SaleSvc,
		auditSvc:      p.AuditSvc,
		commitLimiter: p.CommitLimiter,
		obsMetrics:    p.ObsMetrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	// The register posts finished sales to /sales; everything else lives under /api.
	s.engine.POST("/sales", s.TenantContext(), s.SaleCommitRateLimit(), s.CommitSale)

	api := s.engine.Group("/api")
	api.Use(s.TenantContext())

	// -------- Catalog --------
	api.GET("/catalog", s.GetCatalog)

	// -------- Products --------
	api.GET("/products", s.ListProducts)
	api.POST("/products", s.CreateProduct)
	api.GET("/products/:id", s.GetProductByID)
	api.PATCH("/products/:id", s.UpdateProduct)
	api.POST("/products/:id/archive", s.ArchiveProduct)
	api.POST("/products/:id/stock-adjustments", s.AdjustProductStock)

	// -------- Clients --------
	api.GET("/clients", s.ListClients)
	api.POST("/clients", s.CreateClient)
	api.GET("/clients/:id", s.GetClientByID)

	// -------- Sales --------
	api.GET("/sales", s.ListSales)
	api.POST("/sales", s.SaleCommitRateLimit(), s.CommitSale)
	api.GET("/sales/:id", s.GetSaleByID)

	api.GET("/audit-logs", s.ListAuditLogs)
}
