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
	"go.uber.org/zap"

	"github.com/gundersenerik/swush-manager/internal/alert"
	"github.com/gundersenerik/swush-manager/internal/client/campaign"
	"github.com/gundersenerik/swush-manager/internal/client/partner"
	"github.com/gundersenerik/swush-manager/internal/config"
	cronrunner "github.com/gundersenerik/swush-manager/internal/cron"
	"github.com/gundersenerik/swush-manager/internal/db"
	"github.com/gundersenerik/swush-manager/internal/handler"
	"github.com/gundersenerik/swush-manager/internal/logger"
	gormrepository "github.com/gundersenerik/swush-manager/internal/repository/gorm"
	"github.com/gundersenerik/swush-manager/internal/service"
)

func main() {
	cfgPath := os.Getenv("SWUSH_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("SWUSH_ENV_ONLY"); envOnlyRaw != "" {
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

	partnerHTTP := &http.Client{Timeout: cfg.Partner.Timeout}
	partnerClient := partner.NewClient(partnerHTTP, cfg.Partner.BaseURL, cfg.Partner.APIKey)
	partnerClient.SetRetryPolicy(cfg.Partner.RetryBudget, cfg.Partner.RetryBackoff)
	campaignHTTP := &http.Client{Timeout: cfg.Campaign.Timeout}
	campaignClient := campaign.NewClient(campaignHTTP, cfg.Campaign.BaseURL, cfg.Campaign.Token)
	notifier := &alert.Notifier{
		WebhookURL: cfg.Alert.WebhookURL,
		HTTP:       &http.Client{Timeout: cfg.Alert.Timeout},
		Logger:     logger,
	}

	store := gormrepository.New(dbConn.Gorm)
	orchestrator := &service.SyncOrchestrator{
		Store:    store,
		Partner:  partnerClient,
		Alerts:   notifier,
		Logger:   logger,
		Config:   cfg.Sync,
		PageSize: cfg.Partner.PageSize,
	}
	scheduler := &service.SyncScheduler{
		Store:        store,
		Orchestrator: orchestrator,
		Logger:       logger,
		Config:       cfg.Sync,
	}
	evaluator := &service.TriggerEvaluator{
		Store:     store,
		Campaigns: campaignClient,
		Logger:    logger,
		Config:    cfg.Sync,
	}

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
	syncHandler := &handler.SyncHandler{
		Orchestrator: orchestrator,
		Scheduler:    scheduler,
		Evaluator:    evaluator,
		Logger:       logger,
	}
	syncHandler.Register(engine)
	gamesHandler := &handler.GamesHandler{Store: store, Partner: partnerClient}
	gamesHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err = cronRunner.Add(cfg.Cron.SyncPass, func(ctx context.Context) {
			summary, err := scheduler.RunDuePass(ctx)
			if err != nil {
				logger.Warn("cron sync pass failed", zap.Error(err))
				return
			}
			logger.Info("cron sync pass ok",
				zap.Int("due", summary.Due),
				zap.Int("synced", summary.Synced),
				zap.Int("failed", summary.Failed),
			)
		})
		if err != nil {
			logger.Warn("cron register sync pass failed", zap.Error(err))
		}

		_, err = cronRunner.Add(cfg.Cron.TriggerPass, func(ctx context.Context) {
			summary, err := evaluator.EvaluateAll(ctx, time.Now().UTC())
			if err != nil {
				logger.Warn("cron trigger pass failed", zap.Error(err))
				return
			}
			logger.Info("cron trigger pass ok",
				zap.Int("evaluated", summary.Evaluated),
				zap.Int("triggered", summary.Triggered),
				zap.Int("skipped", summary.Skipped),
				zap.Int("failed", summary.Failed),
			)
		})
		if err != nil {
			logger.Warn("cron register trigger pass failed", zap.Error(err))
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
