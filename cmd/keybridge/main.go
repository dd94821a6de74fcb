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

	"betledger/internal/config"
	cronrunner "betledger/internal/cron"
	"betledger/internal/db"
	"betledger/internal/keybridge"
	"betledger/internal/logger"
	gormrepository "betledger/internal/repository/gorm"
)

func main() {
	cfgPath := os.Getenv("BL_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("BL_ENV_ONLY"); envOnlyRaw != "" {
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
	if err := db.AutoMigrateKeyBridge(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	notifier := keybridge.NewHTTPNotifier(cfg.Bridge.LedgerWebhook, cfg.Bridge.Secret, cfg.Bridge.Timeout)
	svc := &keybridge.Service{
		Repo:     store,
		Notifier: notifier,
		Secret:   cfg.Bridge.Secret,
		PoolSize: cfg.KeyBridge.KeyPoolSize,
		Logger:   logger,
	}

	if inserted, err := svc.TopUpPool(context.Background()); err != nil {
		logger.Fatal("initial key pool fill failed", zap.Error(err))
	} else {
		logger.Info("key pool ready", zap.Int64("inserted", inserted))
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	bridgeHandler := &keybridge.Handler{Svc: svc}
	bridgeHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.KeyBridge.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err := cronRunner.Add(cfg.Cron.KeyPoolTopUp, func(ctx context.Context) {
			if _, err := svc.TopUpPool(ctx); err != nil {
				logger.Warn("key pool top-up failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Warn("cron register key pool top-up failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	errCh := make(chan error, 1)

	go func() {
		logger.Info("key bridge starting", zap.String("addr", cfg.KeyBridge.HTTPAddr))
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
