package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/rx_cart/auth-service/internal/config"
	h "github.com/fjod/rx_cart/auth-service/internal/http"
	"github.com/fjod/rx_cart/auth-service/internal/repository"
	"github.com/fjod/rx_cart/auth-service/internal/service"
	"github.com/fjod/rx_cart/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck
	zap.ReplaceGlobals(zlog)

	ctx := context.Background()
	db, err := repository.ConnectMongoDB(ctx, cfg.MongoURL, cfg.MongoDBName)
	if err != nil {
		zlog.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	zlog.Info("MongoDB connected", zap.String("database", cfg.MongoDBName))

	repo := repository.NewMongoRepository(db)
	if err := repo.CreateIndexes(ctx); err != nil {
		zlog.Fatal("failed to create indexes", zap.Error(err))
	}

	authService := service.NewAuthService(repo, cfg.BcryptCost, zlog)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h.NewRouter(h.NewAuthHandler(authService, cfg.RequestTimeout, zlog)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("auth service starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down auth service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}
	if err := db.Client().Disconnect(shutdownCtx); err != nil {
		zlog.Warn("mongo disconnect failed", zap.Error(err))
	}
	zlog.Info("auth service stopped")
}
