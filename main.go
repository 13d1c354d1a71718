package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"go.uber.org/zap"

	"impactacademy_backend/internals/configs"
	database "impactacademy_backend/internals/databases"
	"impactacademy_backend/internals/features/finance"
	"impactacademy_backend/internals/features/finance/scheduler"
	middlewares "impactacademy_backend/internals/middlewares"
	routes "impactacademy_backend/internals/route"
)

func main() {
	configs.LoadEnv()
	cfg := configs.LoadFinanceConfig()

	logger := configs.NewLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()

	app := fiber.New(fiber.Config{
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		DisableStartupMessage: true,
		ProxyHeader:           fiber.HeaderXForwardedFor,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           90 * time.Second,
	})

	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	app.Use(etag.New())
	middlewares.SetupMiddlewares(app, logger)

	// 🔌 DB connect + pool + migrate
	db, err := database.ConnectDB(cfg.DB, logger)
	if err != nil {
		logger.Fatal("database unavailable", zap.Error(err))
	}
	if err := database.TunePool(db); err != nil {
		logger.Warn("pool tuning failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
	database.WarmUp(db, logger)

	svc := finance.NewServices(cfg, db, logger)

	// ⏱ scheduler after the DB is ready
	sched, err := scheduler.New(cfg.Cron, svc.Jobs(), svc.Locker(context.Background()), logger)
	if err != nil {
		logger.Fatal("scheduler config invalid", zap.Error(err))
	}
	if cfg.Cron.Enabled {
		sched.Start()
	} else {
		logger.Info("in-process cron disabled (FINANCE_CRON_ENABLED=false)")
	}

	routes.SetupRoutes(app, svc, sched)

	go func() {
		logger.Info("✅ listening", zap.String("port", cfg.Port))
		if err := app.Listen("0.0.0.0:" + cfg.Port); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown: stop taking requests, let jobs finish, close the pool
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)
	sched.Stop(ctx)
	database.Close(db)
}
