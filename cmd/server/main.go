package main

import (
	"context"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"barbershop-service/internal/app"
	"barbershop-service/internal/config"
	"barbershop-service/internal/logger"
	"barbershop-service/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		zl.Fatal("failed to connect to db", zap.Error(err))
	}
	defer pool.Close()

	if err := app.RunMigrations(ctx, pool); err != nil {
		zl.Fatal("migrations failed", zap.Error(err))
	}
	zl.Info("database ready")

	store := app.NewPGStore(pool, cfg.SlotIntervalMinutes)

	cache := app.NoopCache()
	if cfg.CacheEnabled {
		rc, err := app.NewRedisSlotCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL, zl)
		if err != nil {
			// slots are always computable without the cache
			zl.Warn("redis unavailable, slot cache disabled", zap.Error(err))
		} else {
			defer func() { _ = rc.Close() }()
			cache = rc
		}
	}

	appInstance := &app.App{
		Store:             store,
		Cache:             cache,
		Log:               zl,
		Location:          cfg.Location(),
		JWTSecret:         cfg.JWTSecret,
		AdminPasswordHash: cfg.AdminPasswordHash,
	}
	if cfg.GoogleConfigured() {
		appInstance.Google = app.NewGoogleCalendarConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		appInstance.Calendar = &app.GoogleBusy{Google: appInstance.Google, Store: store, Location: cfg.Location()}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(app.Recovery(zl), app.RequestLogger(zl))

	corsCfg := cors.DefaultConfig()
	if origins := cfg.CORSOriginList(); len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", "X-Google-Token")
	router.Use(cors.New(corsCfg))

	auth := app.Authenticator{Secret: cfg.JWTSecret, StaticTokens: cfg.StaticTokenList()}
	appInstance.Routes(router, auth, app.RateLimit(cfg.MaxRequestsPerMin, zl))

	if err := server.Run(ctx, server.New(router, cfg.AppPort), zl); err != nil {
		zl.Error("server stopped", zap.Error(err))
	}
}
