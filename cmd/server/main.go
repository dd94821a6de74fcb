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
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"betledger/internal/auth"
	"betledger/internal/client/bridge"
	"betledger/internal/config"
	cronrunner "betledger/internal/cron"
	"betledger/internal/db"
	"betledger/internal/handler"
	"betledger/internal/logger"
	"betledger/internal/ratelimit"
	gormrepository "betledger/internal/repository/gorm"
	"betledger/internal/service"
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
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	var limiter ratelimit.Limiter
	var memLimiter *ratelimit.MemoryLimiter
	if cfg.RateLimit.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.RateLimit.LoginMaxAttempts, cfg.RateLimit.LoginWindow)
		logger.Info("login rate limiting via redis", zap.String("addr", cfg.RateLimit.RedisAddr))
	} else {
		memLimiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.LoginMaxAttempts, cfg.RateLimit.LoginWindow)
		limiter = memLimiter
		logger.Info("login rate limiting in memory")
	}

	bridgeClient := bridge.NewClient(cfg.Bridge.VerifyURL, cfg.Bridge.Secret, cfg.Bridge.Timeout)

	accountSvc := &service.AccountService{
		Repo:           store,
		Tokens:         tokens,
		Limiter:        limiter,
		Logger:         logger,
		InitialBalance: decimal.NewFromFloat(cfg.Ledger.InitialBalance),
	}
	catalogSvc := &service.CatalogService{Repo: store, Logger: logger}
	bettingSvc := &service.BettingService{Repo: store, Logger: logger}
	settlementSvc := &service.SettlementService{Repo: store, Logger: logger}
	verificationSvc := &service.VerificationService{
		Repo:   store,
		Bridge: bridgeClient,
		Secret: cfg.Bridge.Secret,
		Bonus:  decimal.NewFromFloat(cfg.Ledger.VerificationBonus),
		Logger: logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn}
	healthHandler.Register(engine)
	accountHandler := &handler.AccountHandler{Accounts: accountSvc, Tokens: tokens}
	accountHandler.Register(engine)
	betsHandler := &handler.BetsHandler{Catalog: catalogSvc, Betting: bettingSvc, Tokens: tokens}
	betsHandler.Register(engine)
	adminHandler := &handler.AdminHandler{
		Catalog:    catalogSvc,
		Settlement: settlementSvc,
		Accounts:   accountSvc,
		AdminToken: cfg.Auth.AdminToken,
	}
	adminHandler.Register(engine)
	verificationHandler := &handler.VerificationHandler{Verification: verificationSvc, Tokens: tokens}
	verificationHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled && memLimiter != nil {
		_, err := cronRunner.Add(cfg.Cron.LimiterPrune, func(ctx context.Context) {
			memLimiter.Prune()
		})
		if err != nil {
			logger.Warn("cron register limiter prune failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	errCh := make(chan error, 1)

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
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Admin-Token")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
