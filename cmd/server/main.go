package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bevanyudira/IPBB-sub000/internal/cache"
	"github.com/bevanyudira/IPBB-sub000/internal/config"
	"github.com/bevanyudira/IPBB-sub000/internal/database"
	"github.com/bevanyudira/IPBB-sub000/internal/handlers"
	"github.com/bevanyudira/IPBB-sub000/internal/logger"
	"github.com/bevanyudira/IPBB-sub000/internal/metrics"
	"github.com/bevanyudira/IPBB-sub000/internal/middleware"
	"github.com/bevanyudira/IPBB-sub000/internal/obligation"
	"github.com/bevanyudira/IPBB-sub000/internal/penalty"
	"github.com/bevanyudira/IPBB-sub000/internal/repository"
	"github.com/bevanyudira/IPBB-sub000/internal/services"
	"github.com/bevanyudira/IPBB-sub000/internal/taxrecords"
)

const (
	shutdownTimeout = 30 * time.Second
	startupTimeout  = 10 * time.Second
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Server.Env)
	log.Info("Starting PBB obligation API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
	})

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Penalty rules live in Postgres. Without it the built-in rules apply.
	var dbPinger database.Pinger
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Warn("Database unavailable, using built-in penalty rules", map[string]interface{}{
			"host":  cfg.Database.Host,
			"port":  cfg.Database.Port,
			"name":  cfg.Database.Name,
			"error": err.Error(),
		})
	} else {
		defer db.Close()
		dbPinger = db
		log.Info("Database connection established", map[string]interface{}{
			"host":     cfg.Database.Host,
			"database": cfg.Database.Name,
			"pool_min": cfg.Database.PoolMin,
			"pool_max": cfg.Database.PoolMax,
		})
	}

	calc := penalty.New(
		loadPenaltyRules(ctx, db, log),
		penalty.WithDefaultCap(cfg.Penalty.DefaultCapMonths),
		penalty.WithDefaultRate(cfg.Penalty.DefaultRate),
	)

	client, err := taxrecords.NewClientFromConfig(cfg.TaxRecords,
		taxrecords.WithMetrics(m),
		taxrecords.WithLogger(log),
	)
	if err != nil {
		log.Fatal("Invalid tax records configuration", err, map[string]interface{}{
			"base_url": cfg.TaxRecords.BaseURL,
		})
	}

	var (
		store       cache.Store
		cachePinger database.Pinger
	)
	if cfg.Redis.Enabled() {
		redisStore, err := cache.NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to redis", err, map[string]interface{}{
				"addr": cfg.Redis.Addr,
			})
		}
		defer redisStore.Close()
		store, cachePinger = redisStore, redisStore
		log.Info("Redis cache enabled", map[string]interface{}{
			"addr": cfg.Redis.Addr,
			"ttl":  cfg.Redis.TTL.String(),
		})
	} else {
		store = cache.NewMemoryStore()
	}
	fetcher := taxrecords.NewCachedClient(client, store, cfg.Redis.TTL, m, log)

	agg := obligation.New(fetcher, calc, log,
		obligation.WithBatchSize(cfg.Aggregator.BatchSize),
		obligation.WithFetchTimeout(cfg.TaxRecords.Timeout),
		obligation.WithMetrics(m),
	)
	tracker := obligation.NewTracker(agg, obligation.WithRetention(cfg.Aggregator.Retention))
	obligationService := services.NewObligationService(agg, tracker, calc, cfg.Aggregator.SettleTimeout, log)

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	healthHandler := handlers.NewHealthHandler(dbPinger, cachePinger, cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	nopHandler := handlers.NewNOPHandler(obligationService)
	penaltyHandler := handlers.NewPenaltyHandler(obligationService)
	obligationHandler := handlers.NewObligationHandler(obligationService)

	// Register API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/nop/:nop", nopHandler.Decode)
		v1.POST("/nop/encode", nopHandler.Encode)
		v1.GET("/penalty", penaltyHandler.Quote)

		obligations := v1.Group("/obligations")
		{
			obligations.GET("/:nop", obligationHandler.Summary)
			obligations.GET("/:nop/export.xlsx", obligationHandler.Export)
		}

		viewers := v1.Group("/viewers/:viewer/obligations")
		{
			viewers.POST("/:nop", obligationHandler.StartViewing)
			viewers.GET("", obligationHandler.CurrentView)
			viewers.DELETE("", obligationHandler.StopViewing)
		}

		v1.GET("/sessions/:id", obligationHandler.Session)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	// Stop populating sessions nobody can poll anymore.
	tracker.Close()

	log.Info("Server exited", nil)
}

// loadPenaltyRules reads the rule table, falling back to the built-in rules
// when the database is missing, fails, or holds no rules.
func loadPenaltyRules(ctx context.Context, db *database.Database, log *logger.Logger) []penalty.Rule {
	if db == nil {
		return penalty.DefaultRules()
	}

	rules, err := repository.NewPenaltyRuleRepository(db).ListActive(ctx)
	if err != nil {
		log.Warn("Failed to load penalty rules, using built-in rules", map[string]interface{}{
			"error": err.Error(),
		})
		return penalty.DefaultRules()
	}
	if len(rules) == 0 {
		log.Warn("Penalty rule table is empty, using built-in rules", nil)
		return penalty.DefaultRules()
	}

	log.Info("Penalty rules loaded", map[string]interface{}{
		"rules": len(rules),
	})
	return rules
}
