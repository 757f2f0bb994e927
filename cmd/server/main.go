package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tslagan-sketch/IFT-401-Team-Project/configs"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/cache"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/handlers"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/logger"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/market"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/routes"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/seed"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/store"
	"github.com/tslagan-sketch/IFT-401-Team-Project/internal/trading"
)

func main() {
	godotenv.Load()

	logger.Init()
	defer logger.Log.Sync()

	configs.LoadConfig()
	store.NewDB()
	store.DBMigrate()
	seed.Run()

	cfg := configs.AppConfig

	calendar, err := market.NewCalendar(store.DB, cfg.Market.Open, cfg.Market.Close)
	if err != nil {
		logger.Log.Fatal("invalid market hours", zap.Error(err))
	}

	markets := market.NewService(
		store.DB,
		time.Duration(cfg.Market.MinTickSeconds)*time.Second,
		cfg.Market.MaxMovePct,
	)
	engine := trading.NewEngine(store.DB, calendar)

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Log.Warn("redis unavailable, snapshot cache disabled", zap.Error(err))
			rdb.Close()
			rdb = nil
		}
		cancel()
	}
	snapshots := cache.NewSnapshots(rdb, time.Duration(cfg.Redis.SnapshotTTLSeconds)*time.Second)

	handlers.Init(engine, markets, calendar, snapshots)
	router := routes.NewRoutes()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("graceful shutdown failed", zap.Error(err))
	}

	if rdb != nil {
		rdb.Close()
	}

	sqlDB, err := store.DB.DB()
	if err != nil {
		logger.Log.Error("db close skipped, reason:", zap.Error(err))
	} else {
		sqlDB.Close()
		logger.Log.Info("db closed")
	}

	logger.Log.Info("server stopped")
}
