// Package server exposes the HTTP API: reference CRUD, grants, fact
// ingestion, report queries, export downloads and schedule management.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vendwatch/vendwatch/internal/cache"
	"github.com/vendwatch/vendwatch/internal/config"
	"github.com/vendwatch/vendwatch/internal/export"
	"github.com/vendwatch/vendwatch/internal/geography"
	geographydomain "github.com/vendwatch/vendwatch/internal/geography/domain"
	"github.com/vendwatch/vendwatch/internal/identity"
	identitydomain "github.com/vendwatch/vendwatch/internal/identity/domain"
	"github.com/vendwatch/vendwatch/internal/impression"
	impressiondomain "github.com/vendwatch/vendwatch/internal/impression/domain"
	"github.com/vendwatch/vendwatch/internal/machine"
	machinedomain "github.com/vendwatch/vendwatch/internal/machine/domain"
	obslogger "github.com/vendwatch/vendwatch/internal/observability/logger"
	obsmetrics "github.com/vendwatch/vendwatch/internal/observability/metrics"
	"github.com/vendwatch/vendwatch/internal/product"
	productdomain "github.com/vendwatch/vendwatch/internal/product/domain"
	"github.com/vendwatch/vendwatch/internal/ratelimit"
	"github.com/vendwatch/vendwatch/internal/reporting"
	reportingdomain "github.com/vendwatch/vendwatch/internal/reporting/domain"
	"github.com/vendwatch/vendwatch/internal/sale"
	saledomain "github.com/vendwatch/vendwatch/internal/sale/domain"
	"github.com/vendwatch/vendwatch/internal/schedule"
	scheduledomain "github.com/vendwatch/vendwatch/internal/schedule/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	cache.Module,
	geography.Module,
	machine.Module,
	product.Module,
	identity.Module,
	sale.Module,
	impression.Module,
	reporting.Module,
	export.Module,
	schedule.Module,
	ratelimit.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log, obslogger.MiddlewareConfig{
		Debug:           cfg.Environment != "production",
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(cfg, log, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_ = ctx
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
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
	identitySvc   identitydomain.Service
	geographySvc  geographydomain.Service
	machineSvc    machinedomain.Service
	productSvc    productdomain.Service
	saleSvc       saledomain.Service
	impressionSvc impressiondomain.Service
	salesReports  reportingdomain.SalesReports
	impReports    reportingdomain.ImpressionReports
	scheduleSvc   scheduledomain.Service
	renderer      *export.Renderer
	metrics       *obsmetrics.Metrics
	ingestLimiter *ratelimit.IngestLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	IdentitySvc   identitydomain.Service
	GeographySvc  geographydomain.Service
	MachineSvc    machinedomain.Service
	ProductSvc    productdomain.Service
	SaleSvc       saledomain.Service
	ImpressionSvc impressiondomain.Service
	SalesReports  reportingdomain.SalesReports
	ImpReports    reportingdomain.ImpressionReports
	ScheduleSvc   scheduledomain.Service
	Renderer      *export.Renderer
	Metrics       *obsmetrics.Metrics      `optional:"true"`
	IngestLimiter *ratelimit.IngestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		identitySvc:   p.IdentitySvc,
		geographySvc:  p.GeographySvc,
		machineSvc:    p.MachineSvc,
		productSvc:    p.ProductSvc,
		saleSvc:       p.SaleSvc,
		impressionSvc: p.ImpressionSvc,
		salesReports:  p.SalesReports,
		impReports:    p.ImpReports,
		scheduleSvc:   p.ScheduleSvc,
		renderer:      p.Renderer,
		metrics:       p.Metrics,
		ingestLimiter: p.IngestLimiter,
	}

	s.registerIngestRoutes()
	s.registerAPIRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Vendor feeds authenticate upstream at the gateway; here they are only
// throttled per feed.
func (s *Server) registerIngestRoutes() {
	ingest := s.engine.Group("/api/ingest")

	ingest.POST("/nayax/sales", s.IngestRateLimit("nayax"), s.IngestNayaxSale)
	ingest.POST("/datajam/impressions", s.IngestRateLimit("datajam"), s.IngestDataJamImpression)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.ViewerRequired())

	// -------- Geographies --------
	api.GET("/geographies", s.ListGeographies)
	api.POST("/geographies", s.SuperuserRequired(), s.CreateGeography)
	api.GET("/geographies/:id", s.GetGeographyByID)
	api.PATCH("/geographies/:id", s.SuperuserRequired(), s.UpdateGeography)
	api.DELETE("/geographies/:id", s.SuperuserRequired(), s.DeleteGeography)

	// -------- Machines --------
	api.GET("/machines", s.ListMachines)
	api.POST("/machines", s.SuperuserRequired(), s.CreateMachine)
	api.GET("/machines/:id", s.GetMachineByID)
	api.PATCH("/machines/:id", s.SuperuserRequired(), s.UpdateMachine)
	api.DELETE("/machines/:id", s.SuperuserRequired(), s.DeleteMachine)
	api.POST("/machines/:id/devices", s.SuperuserRequired(), s.LinkDevice)
	api.DELETE("/machines/:id/devices/:device", s.SuperuserRequired(), s.UnlinkDevice)

	// -------- Products --------
	api.GET("/product-categories", s.ListProductCategories)
	api.POST("/product-categories", s.SuperuserRequired(), s.CreateProductCategory)
	api.GET("/products", s.ListProducts)
	api.POST("/products", s.SuperuserRequired(), s.CreateProduct)
	api.GET("/products/:id", s.GetProductByID)
	api.PATCH("/products/:id", s.SuperuserRequired(), s.UpdateProduct)
	api.DELETE("/products/:id", s.SuperuserRequired(), s.DeleteProduct)

	// -------- Users and grants --------
	api.POST("/users", s.SuperuserRequired(), s.CreateUser)
	api.GET("/users/:id", s.SuperuserRequired(), s.GetUserByID)
	api.GET("/users/:id/machine-grants", s.SuperuserRequired(), s.ListMachineGrants)
	api.POST("/users/:id/machine-grants/:targetId", s.SuperuserRequired(), s.GrantMachine)
	api.DELETE("/users/:id/machine-grants/:targetId", s.SuperuserRequired(), s.RevokeMachine)
	api.GET("/users/:id/product-grants", s.SuperuserRequired(), s.ListProductGrants)
	api.POST("/users/:id/product-grants/:targetId", s.SuperuserRequired(), s.GrantProduct)
	api.DELETE("/users/:id/product-grants/:targetId", s.SuperuserRequired(), s.RevokeProduct)

	// -------- Sales reports --------
	sales := api.Group("/reports/sales")
	sales.GET("/count-per-range", s.SalesCountPerRange)
	sales.GET("/revenue-per-range", s.SalesRevenuePerRange)
	sales.GET("/count-per-geography", s.SalesCountPerGeography)
	sales.GET("/count-per-category", s.SalesCountPerCategory)
	sales.GET("/count-per-machine", s.SalesCountPerMachine)
	sales.GET("/average-trend", s.SalesAverageWithTrend)
	sales.GET("/export", s.SalesExportPreview)

	// -------- Impression reports --------
	imps := api.Group("/reports/impressions")
	imps.GET("/count-per-range", s.ImpressionsCountPerRange)
	imps.GET("/seconds-per-range", s.ImpressionsSecondsPerRange)
	imps.GET("/playouts-per-range", s.ImpressionsPlayoutsPerRange)
	imps.GET("/per-geography", s.ImpressionsPerGeography)
	imps.GET("/per-venue", s.ImpressionsPerVenue)
	imps.GET("/per-venue-per-range", s.ImpressionsPerVenuePerRange)
	imps.GET("/per-zone", s.ImpressionsPerZone)
	imps.GET("/average-trend", s.ImpressionsAverageWithTrend)
	imps.GET("/playouts-average-trend", s.ImpressionsPlayoutsAverageWithTrend)
	imps.GET("/composite", s.ImpressionsComposite)
	imps.GET("/export", s.ImpressionsExportPreview)

	// -------- Export downloads --------
	api.GET("/exports/sales", s.DownloadSalesExport)
	api.GET("/exports/impressions", s.DownloadImpressionsExport)

	// -------- Report schedules --------
	api.GET("/schedules", s.ListSchedules)
	api.POST("/schedules", s.CreateSchedule)
	api.GET("/schedules/:id", s.GetScheduleByID)
	api.PATCH("/schedules/:id", s.UpdateSchedule)
	api.DELETE("/schedules/:id", s.DeleteSchedule)
}
