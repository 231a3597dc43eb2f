package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/clients"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/events"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/repository"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/server"
	"github.com/tm-acme-shop/acme-shop-storefront-bot/internal/service"

	_ "github.com/lib/pq"
)

func main() {
	cfg := config.Load()
	logging.SetLevel(cfg.LogLevel)

	logger := logging.NewLoggerV2("storefront-bot")

	db, err := initDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", logging.Fields{"error": err.Error()})
	}
	defer db.Close()

	ledger := repository.NewPostgresLedger(db, logging.NewLoggerV2("ledger"))
	if err := ledger.EnsureSchema(context.Background()); err != nil {
		logger.Fatal("Failed to prepare ledger schema", logging.Fields{"error": err.Error()})
	}

	sessions := repository.NewMemorySessionStore()

	var dedup repository.PaymentDedup = repository.NewMemoryPaymentDedup(cfg.Redis.DedupTTL)
	var redisDedup *repository.RedisPaymentDedup
	if cfg.Features.EnableRedisDedup {
		redisDedup = repository.NewRedisPaymentDedup(cfg.Redis)
		defer redisDedup.Close()
		dedup = redisDedup
	}

	invoiceClient := clients.NewNOWPaymentsClient(cfg.PaymentProcessor, cfg.Shop, logging.NewLoggerV2("nowpayments-client"))
	chatGateway := clients.NewHTTPChatGateway(cfg.ChatGateway, logging.NewLoggerV2("chat-gateway"))

	var publisher events.Publisher = events.NewNoopPublisher()
	if cfg.Features.EnableOrderEvents {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka, logging.NewLoggerV2("event-publisher"))
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	locks := service.NewKeyedLocker()
	orderMachine := service.NewOrderMachine(sessions, invoiceClient, chatGateway, locks, cfg.Shop)
	reconciler := service.NewReconciler(sessions, ledger, dedup, publisher, chatGateway, locks, cfg)

	h := handlers.NewHandlers(orderMachine, reconciler, invoiceClient, publisher, cfg)
	h.AddReadinessCheck("ledger", ledger.Ping)
	if redisDedup != nil {
		h.AddReadinessCheck("redis", redisDedup.Ping)
	}

	srv := server.New(h, cfg)

	go func() {
		logger.Info("Server starting", logging.Fields{
			"port":                cfg.Server.Port,
			"shop":                cfg.Shop.Name,
			"order_events":        cfg.Features.EnableOrderEvents,
			"payment_consumer":    cfg.Features.EnablePaymentConsumer,
			"redis_dedup":         cfg.Features.EnableRedisDedup,
			"manual_confirmation": cfg.Features.EnableManualConfirmation,
		})
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", logging.Fields{"error": err.Error()})
		}
	}()

	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()

	var consumer *events.KafkaConsumer
	if cfg.Features.EnablePaymentConsumer {
		consumer = events.NewKafkaConsumer(cfg.Kafka, reconciler, publisher, logging.NewLoggerV2("payment-consumer"))
		go func() {
			if err := consumer.Start(consumerCtx); err != nil && err != context.Canceled {
				logger.Error("Payment consumer failed", logging.Fields{"error": err.Error()})
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if consumer != nil {
		stopConsumer()
		consumer.Stop()
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", logging.Fields{"error": err.Error()})
	}

	logger.Info("Server exited")
}

func initDatabase(cfg *config.Config, logger *logging.LoggerV2) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Database connected", logging.Fields{
		"host": cfg.Database.Host,
		"name": cfg.Database.Name,
	})

	return db, nil
}
