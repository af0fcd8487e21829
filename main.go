package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"resource-hub/config"
	"resource-hub/connectors"
	"resource-hub/connectors/dspace"
	"resource-hub/connectors/koha"
	"resource-hub/connectors/vufind"
	"resource-hub/services"
	"resource-hub/storage"
)

var reconciledCounter prometheus.Counter

func init() {
	reconciledCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciled_resources_total",
			Help: "Total number of resources checked by the reconciliation job.",
		},
	)
	prometheus.MustRegister(reconciledCounter)
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database
	db, err := storage.OpenDatabase(cfg)
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.", zap.String("driver", cfg.DBDriver))

	blobs, err := storage.NewBlobStore(cfg)
	if err != nil {
		logging.Fatal("Blob store creation failed", zap.Error(err))
	}

	// Setup Connectors
	catalog := koha.NewConnector(cfg.Koha, cfg.Breaker, logging)
	repository := dspace.NewConnector(cfg.DSpace, cfg.Breaker, logging)
	discovery := vufind.NewConnector(cfg.VuFind, cfg.Breaker, logging)
	conns := []connectors.Connector{catalog, repository, discovery}
	if repository.Simulated() {
		logging.Warn("Repository simulation mode is active: uploads are not written to DSpace")
	}

	// Setup Services
	store := services.NewResourceStore(db, logging)
	searchService := services.NewSearchService(conns, store, cfg.SearchTimeout, logging)
	publishService := services.NewPublishService(repository, catalog, discovery, store, blobs, logging)
	reconcileService := services.NewReconcileService(publishService, store, cfg.ReconcileBatchSize, logging)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = cfg.UploadMaxBytes
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup Routes
	setupResourceRoutes(router, &resourceAPI{
		cfg:     cfg,
		store:   store,
		search:  searchService,
		publish: publishService,
		blobs:   blobs,
		log:     logging,
	})
	setupSystemRoutes(router, conns, repository.Mode(), cfg.SearchTimeout, logging)

	// Setup Cron
	if cfg.ReconcileSchedule != "" {
		cronScheduler := cron.New()
		_, err := cronScheduler.AddFunc(cfg.ReconcileSchedule, func() {
			logging.Info("Running scheduled reconciliation job...")
			report, err := reconcileService.Run(context.Background())
			if err != nil {
				logging.Error("Cron job failed", zap.Error(err))
				return
			}
			logging.Info("Cron job completed", zap.Int("checked", report.Checked), zap.Int("failed", report.Failed))
			reconciledCounter.Add(float64(report.Checked))
		})
		if err != nil {
			logging.Fatal("Invalid reconcile schedule", zap.String("schedule", cfg.ReconcileSchedule), zap.Error(err))
		}
		cronScheduler.Start()
		defer cronScheduler.Stop()
	}

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}
