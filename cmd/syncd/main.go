package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"crmsync/internal/config"
	cronrunner "crmsync/internal/cron"
	"crmsync/internal/crypto"
	"crmsync/internal/db"
	"crmsync/internal/handler"
	"crmsync/internal/logger"
	"crmsync/internal/processor"
	"crmsync/internal/registry"
	"crmsync/internal/remote"
	gormrepository "crmsync/internal/repository/gorm"
	"crmsync/internal/service"

	_ "crmsync/docs"
)

func main() {
	cfgPath := os.Getenv("CRM_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("CRM_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	decryptor, err := crypto.NewAESDecryptor(cfg.Crypto.Key)
	if err != nil {
		logger.Fatal("credential key invalid", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	requester := remote.NewRequester(remote.RetryPolicy{
		MaxRetries:     cfg.Sync.MaxRetries,
		MinInterval:    cfg.Sync.MinInterval,
		NetworkBackoff: cfg.Sync.NetworkBackoff,
	}, logger)
	reg := registry.New(registry.Deps{
		HTTPClient: &http.Client{Timeout: cfg.HubSpot.Timeout},
		Requester:  requester,
		Decryptor:  decryptor,
		Logger:     logger,
	})
	syncService := &service.SyncService{
		Store:     store,
		Registry:  reg,
		Processor: &processor.Processor{Logger: logger},
		Logger:    logger,
	}
	monitor := service.NewHealthMonitor(store, reg, logger, cfg.Health.Interval)

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	integrationHandler := &handler.IntegrationHandler{
		Store:   store,
		Sync:    syncService,
		Monitor: monitor,
		Logger:  logger,
	}
	integrationHandler.Register(engine)
	platformHandler := &handler.PlatformHandler{Registry: reg, Monitor: monitor}
	platformHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Health.Enabled {
		monitor.Start(ctx)
		defer monitor.Stop()
	}

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err = cronRunner.Add(cfg.Cron.DueScan, func(ctx context.Context) {
			runDueSyncs(ctx, store, syncService, cfg.Sync, logger)
		})
		if err != nil {
			logger.Warn("cron register due scan failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// runDueSyncs runs one sync for every integration whose next_sync_at has
// passed. Integrations are synced sequentially; a failing one is logged and
// skipped, never aborting the scan.
func runDueSyncs(ctx context.Context, store *gormrepository.Store, syncService *service.SyncService, cfg config.SyncConfig, logger *zap.Logger) {
	due, err := store.ListDueIntegrations(ctx, time.Now().UTC())
	if err != nil {
		logger.Warn("due scan list failed", zap.Error(err))
		return
	}
	for i := range due {
		integration := &due[i]
		result, err := syncService.SyncIntegration(ctx, integration, service.SyncOptions{
			PageLimit: cfg.PageLimit,
			MaxPages:  cfg.MaxPages,
			Resume:    cfg.Resume,
		})
		if err != nil {
			logger.Warn("scheduled sync failed",
				zap.String("integration_id", integration.ID),
				zap.String("platform", integration.Platform),
				zap.Error(err),
			)
			continue
		}
		logger.Info("scheduled sync ok",
			zap.String("integration_id", integration.ID),
			zap.String("platform", integration.Platform),
			zap.Int("synced", result.SyncedCount),
			zap.Int("errors", result.ErrorCount),
			zap.Int64("duration_ms", result.DurationMs),
		)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
