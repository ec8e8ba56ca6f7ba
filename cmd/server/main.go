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

	"auditgelap-service/config"
	"auditgelap-service/internal/ai"
	"auditgelap-service/internal/api"
	"auditgelap-service/internal/broker"
	"auditgelap-service/internal/payment"
	"auditgelap-service/internal/redisclient"
	"auditgelap-service/internal/service"
	"auditgelap-service/internal/store"
	"auditgelap-service/internal/util"
	"auditgelap-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting auditgelap service")

	tp, err := util.InitTracer("auditgelap-service", cfg.Observ.JaegerEndpoint)
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

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	model := ai.NewClient(cfg.Gemini)

	auditService := service.NewAuditService(db, redisClient, model, eventPublisher, cfg.Business)
	commandService := service.NewCommandService(db, model, eventPublisher)
	roastService := service.NewRoastService(db, model, eventPublisher)
	subscriptionService := service.NewSubscriptionService(db, redisClient)

	checkoutService := payment.NewCheckoutService(cfg.Midtrans, db, db)
	reconciler := payment.NewReconciler(
		cfg.Midtrans.ServerKey,
		cfg.Business.DefaultPaidTier,
		db, db,
		payment.WithSubscriptionEvents(eventPublisher),
		payment.WithCacheInvalidator(redisClient),
	)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	sweeper := worker.NewSweeperWorker(commandService, time.Duration(cfg.Business.SweepIntervalSecs)*time.Second)
	go func() {
		if err := sweeper.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Sweeper worker error: %v", err)
		}
	}()

	notifierConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
	notifier := worker.NewNotifierWorker(notifierConsumer, db)
	go func() {
		if err := notifier.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Notifier worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(auditService, commandService, roastService, subscriptionService, checkoutService, reconciler)
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
	notifier.Stop()

	log.Println("Server exited")
}
