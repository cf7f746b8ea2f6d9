package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/rx_cart/pkg/logger"
	"github.com/fjod/rx_cart/storefront/internal/checkout"
	"github.com/fjod/rx_cart/storefront/internal/config"
	"github.com/fjod/rx_cart/storefront/internal/domain"
	"github.com/fjod/rx_cart/storefront/internal/fulfillment"
	h "github.com/fjod/rx_cart/storefront/internal/http"
	"github.com/fjod/rx_cart/storefront/internal/payment"
	"github.com/fjod/rx_cart/storefront/internal/repository"
	"github.com/fjod/rx_cart/storefront/internal/session"
	"github.com/fjod/rx_cart/storefront/internal/statuslog"
	"github.com/fjod/rx_cart/storefront/internal/storage"
	"github.com/fjod/rx_cart/storefront/internal/tracking"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStorage(ctx, cfg.Storage, zlog)
	if err != nil {
		zlog.Fatal("failed to open storage", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}
	defer closeStore()

	orders, closeOrders, err := openOrders(cfg.Orders, zlog)
	if err != nil {
		zlog.Fatal("failed to open order store", zap.String("backend", cfg.Orders.Backend), zap.Error(err))
	}
	defer closeOrders()

	sessions := session.NewRegistry(store, orders, zlog)

	var statusLog statuslog.Log
	if cfg.StatusLogURL != "" {
		statusLog = statuslog.NewClient(cfg.StatusLogURL, cfg.RequestTimeout, zlog)
		zlog.Info("status log configured", zap.String("url", cfg.StatusLogURL))
	} else {
		statusLog = statuslog.NewMemory()
		zlog.Warn("STATUS_LOG_URL not set, keeping order status records in memory")
	}

	var events checkout.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher := fulfillment.NewPublisher(zlog, cfg.KafkaBrokers...)
		defer publisher.Close()
		events = publisher

		consumer := fulfillment.NewConsumer(sessions, statusLog, zlog, cfg.KafkaBrokers...)
		defer consumer.Close()
		go consumer.Run(ctx)
		zlog.Info("fulfillment events enabled", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	orchestrator := checkout.NewOrchestrator(newGateway(cfg.Payment, zlog), statusLog, events, checkout.Config{
		Currency:    cfg.Store.Currency,
		DisplayName: cfg.Store.DisplayName,
		Description: cfg.Store.Description,
		Contact: domain.Contact{
			Name:            cfg.Store.ContactName,
			Email:           cfg.Store.ContactEmail,
			PhoneNumber:     cfg.Store.ContactPhone,
			DeliveryAddress: cfg.Store.DeliveryAddress,
		},
		Retention:  time.Hour,
		PendingTTL: 30 * time.Minute,
	}, zlog)
	go orchestrator.Run(ctx, time.Minute)

	projector := tracking.NewProjector(statusLog, tracking.Mode(cfg.Tracking.Mode), cfg.Tracking.StepInterval, zlog)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: h.NewRouter(h.Deps{
			Sessions:       sessions,
			Checkout:       orchestrator,
			Projector:      projector,
			RequestTimeout: cfg.RequestTimeout,
			Logger:         zlog,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("storefront starting", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	zlog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}
	zlog.Info("server exited")
}

func openStorage(ctx context.Context, cfg config.StorageConfig, zlog *zap.Logger) (storage.Store, func(), error) {
	switch cfg.Backend {
	case "sqlite":
		s, err := storage.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := s.RunMigrations(); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		zlog.Info("using sqlite storage", zap.String("path", cfg.SQLitePath))
		return s, func() { closeQuietly(zlog, "sqlite", s) }, nil

	case "mongo":
		db, err := storage.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		zlog.Info("using mongo storage", zap.String("database", cfg.MongoDBName))
		return storage.NewMongoStore(db), func() {
			if err := db.Client().Disconnect(context.Background()); err != nil {
				zlog.Warn("mongo disconnect failed", zap.Error(err))
			}
		}, nil

	default:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis ping failed: %w", err)
		}
		zlog.Info("using redis storage", zap.String("addr", cfg.RedisAddr))
		return storage.NewRedisStore(client), func() { closeQuietly(zlog, "redis", client) }, nil
	}
}

func openOrders(cfg config.OrdersConfig, zlog *zap.Logger) (session.OrderStoreFactory, func(), error) {
	if cfg.Backend != "postgres" {
		return session.KVOrders(zlog), func() {}, nil
	}

	pg, err := repository.NewPostgresOrders(&repository.Credentials{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
	}, zlog)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.RunMigrations(); err != nil {
		pg.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	zlog.Info("using postgres order store", zap.String("host", cfg.Database.Host))
	return session.PostgresOrders(pg), func() { closeQuietly(zlog, "postgres", pg) }, nil
}

func newGateway(cfg config.PaymentConfig, zlog *zap.Logger) payment.Gateway {
	switch cfg.Mode {
	case "sandbox":
		zlog.Warn("payments run against the sandbox gateway")
		return payment.Sandbox{Secret: cfg.SandboxSecret}
	case "disabled":
		zlog.Warn("payments are disabled")
		return payment.Disabled{}
	}
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		zlog.Warn("RAZORPAY_KEY_ID or RAZORPAY_KEY_SECRET not set, payments are disabled")
		return payment.Disabled{}
	}
	return payment.NewRazorpay(payment.RazorpayConfig{
		BaseURL:   cfg.APIURL,
		KeyID:     cfg.KeyID,
		KeySecret: cfg.KeySecret,
	}, zlog)
}

func closeQuietly(zlog *zap.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		zlog.Warn("close failed", zap.String("resource", name), zap.Error(err))
	}
}
