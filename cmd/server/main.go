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

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/backend"
	"storefront/internal/broker"
	"storefront/internal/cart"
	"storefront/internal/geo"
	"storefront/internal/redisclient"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/tracking"
	"storefront/internal/transport"
	"storefront/internal/util"
	"storefront/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront service")

	tp, err := util.InitTracer("storefront", cfg.Observ.JaegerEndpoint)
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

	var redisClient *redisclient.Client
	redisClient, err = redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		if cfg.CartSlot.Backend == "redis" {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		log.Printf("Redis unavailable, checkout deduplication disabled: %v", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Println("Redis connected")
	}

	var slot cart.Slot
	switch cfg.CartSlot.Backend {
	case "postgres":
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		log.Println("Database connected")
		slot = db
	case "memory":
		slot = cart.NewMemorySlot()
	default:
		if redisClient == nil {
			log.Fatalf("Cart backend %q requires Redis", cfg.CartSlot.Backend)
		}
		slot = redisClient
	}

	carts := cart.NewManager(slot)

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	hub := tracking.NewHub()

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	locationConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicLocation, cfg.Kafka.ConsumerGroup)
	locationWorker := worker.NewLocationWorker(locationConsumer, hub)
	go func() {
		if err := locationWorker.Start(workerCtx); err != nil {
			log.Printf("Location worker error: %v", err)
		}
	}()

	platform := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout)

	wsTransport := transport.NewWSTransport(cfg.Tracking.WSURL)
	defer wsTransport.Close()

	// Browsers send delivery coordinates with the checkout request; the
	// server itself has no position source.
	var geoProvider geo.Provider = geo.UnavailableProvider{}

	var idem service.IdempotencyStore
	if redisClient != nil {
		idem = redisClient
	}

	idemTTL := time.Duration(cfg.Business.IdempotencyTTLSeconds) * time.Second
	checkoutService := service.NewCheckoutService(carts, platform, idem, eventPublisher, geoProvider, idemTTL)
	orderService := service.NewOrderService(platform, wsTransport)
	paymentService := service.NewPaymentService(platform, cfg.Business.PaymentSuccessRate)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(carts, checkoutService, orderService, paymentService, hub)
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
	locationWorker.Stop()

	log.Println("Server exited")
}
