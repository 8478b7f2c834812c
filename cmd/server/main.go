package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"settlement-service/config"
	"settlement-service/internal/api"
	"settlement-service/internal/broker"
	"settlement-service/internal/gateway"
	"settlement-service/internal/redisclient"
	"settlement-service/internal/service"
	"settlement-service/internal/store"
	"settlement-service/internal/util"
	"settlement-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting settlement service")

	tp, err := util.InitTracer("settlement-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		migrateCancel()
		log.Fatalf("Failed to run migrations: %v", err)
	}
	migrateCancel()
	log.Println("Schema migrated")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Business.VerifyKeyTTLSec)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicSettlement)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	var gwClient gateway.Client
	simulated := cfg.Gateway.Mode != "live"
	if simulated {
		gwClient = gateway.NewSimulatedClient()
		log.Println("Gateway running in simulated mode")
	} else {
		gwClient = gateway.NewHTTPClient(cfg.Gateway.BaseURL)
		log.Printf("Gateway client initialized: %s", cfg.Gateway.BaseURL)
	}

	credResolver := service.NewCredentialResolver(db)
	commissionService, err := service.NewCommissionService(db, cfg.Business.CommissionRate)
	if err != nil {
		log.Fatalf("Failed to initialize commission service: %v", err)
	}
	settlementService := service.NewSettlementService(db, credResolver, gwClient, eventPublisher, redisClient, cfg.Business.Currency)
	checkoutService := service.NewCheckoutService(db, commissionService, credResolver, gwClient, eventPublisher, simulated, cfg.Business.Currency)
	cartService := service.NewCartService(db, redisClient)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicSettlement, cfg.Kafka.ConsumerGroup)
	projectionWorker := worker.NewProjectionWorker(consumer, db, redisClient)
	go func() {
		if err := projectionWorker.Start(workerCtx); err != nil {
			log.Printf("Projection worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(settlementService, checkoutService, cartService, commissionService)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	projectionWorker.Stop()

	log.Println("Server exited")
}
