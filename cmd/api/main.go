package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/parisgate/parisgate/internal/config"
	"github.com/parisgate/parisgate/internal/identity"
	"github.com/parisgate/parisgate/internal/infra"
	"github.com/parisgate/parisgate/internal/logging"
	"github.com/parisgate/parisgate/internal/metrics"
	"github.com/parisgate/parisgate/internal/routes"
	"github.com/parisgate/parisgate/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.AppName)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	deps := routes.Deps{
		Cfg:       cfg,
		Logger:    logger,
		Metrics:   metrics.New(),
		AccessLog: cfg.IsDevelopment(),
	}

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := infra.ApplySchema(ctx, db, identity.Schema); err != nil {
			logger.Error("apply schema", "error", err)
			os.Exit(1)
		}
		deps.DB = db
	} else {
		logger.Warn("DATABASE_URL not set, accounts are kept in memory")
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
		deps.Cache = cache
	} else {
		logger.Warn("REDIS_URL not set, idempotency and login rate limiting are disabled")
	}

	var mongoClient *mongo.Client
	if cfg.MongoURI != "" {
		mongoClient, err = infra.NewMongoClient(ctx, cfg.MongoURI)
		if err != nil {
			logger.Error("connect mongo", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := mongoClient.Disconnect(context.Background()); err != nil {
				logger.Warn("close mongo", "error", err)
			}
		}()
		deps.Mongo = mongoClient.Database(cfg.MongoDatabase)
	} else {
		logger.Warn("MONGO_URI not set, profiles are kept in memory")
	}

	srv, err := server.New(deps)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()
	logger.Info("server started", "addr", cfg.Address(), "env", cfg.AppEnv)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
