package main

import (
	"context"

	"github.com/pulseapp/pulse-engine/internal/app"
	"github.com/pulseapp/pulse-engine/internal/cache"
	"github.com/pulseapp/pulse-engine/internal/config"
	"github.com/pulseapp/pulse-engine/internal/db"
	"github.com/pulseapp/pulse-engine/internal/logger"
	"github.com/pulseapp/pulse-engine/internal/server"
	"github.com/pulseapp/pulse-engine/internal/service/catalog"
	"github.com/pulseapp/pulse-engine/internal/service/discovery"
	"github.com/pulseapp/pulse-engine/internal/service/match"
	"github.com/pulseapp/pulse-engine/internal/service/message"
	"github.com/pulseapp/pulse-engine/internal/service/trust"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	appCtx := app.New(database, redisCache, log, cfg)

	trustSvc := trust.NewService(appCtx)
	matchSvc := match.NewService(appCtx, trustSvc)
	discoverySvc := discovery.NewService(appCtx, trustSvc)
	messageSvc := message.NewService(appCtx)
	catalogSvc := catalog.NewService(appCtx)

	registrars := []server.Registrar{
		catalog.NewRegistrar(appCtx, catalogSvc),
		discovery.NewRegistrar(appCtx, discoverySvc),
		match.NewRegistrar(appCtx, matchSvc),
		message.NewRegistrar(appCtx, messageSvc),
		trust.NewRegistrar(appCtx, trustSvc),
	}

	if cfg.App.Env == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting HTTP server", "addr", addr)

	if err := server.StartHTTPServer(cfg, registrars...); err != nil {
		log.Error("failed to start HTTP server", "err", err)
	}
}
