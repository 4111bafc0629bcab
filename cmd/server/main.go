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

	"order-sync-service/config"
	"order-sync-service/internal/api"
	"order-sync-service/internal/broker"
	"order-sync-service/internal/catalog"
	"order-sync-service/internal/notifier"
	"order-sync-service/internal/redisclient"
	"order-sync-service/internal/service"
	"order-sync-service/internal/sheetsync"
	"order-sync-service/internal/store"
	"order-sync-service/internal/util"
	"order-sync-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting order sync service")

	tp, err := util.InitTracer("order-sync-service", cfg.Observ.JaegerEndpoint)
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

	proposalProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicProposal)
	defer proposalProducer.Close()
	notificationProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotification)
	defer notificationProducer.Close()
	log.Println("Kafka producers initialized")

	eventPublisher := broker.NewEventPublisher(proposalProducer)

	resolver := catalog.NewResolver(db)
	applier := service.NewChangeApplier(db, resolver, redisClient)
	acceptance := service.NewAcceptanceService(db, applier, resolver, eventPublisher)

	intakeClient := service.NewIntakeClient(
		cfg.Intake.AnalyzerURL,
		time.Duration(cfg.Intake.TimeoutSeconds)*time.Second,
	)
	reclassifier := service.NewReclassifier(db, db, db, intakeClient, eventPublisher)

	grid, err := sheetsync.NewSheetsGrid(
		context.Background(),
		cfg.Sheets.CredentialsFile,
		cfg.Sheets.SpreadsheetID,
		cfg.Sheets.SheetName,
	)
	if err != nil {
		log.Fatalf("Failed to initialize sheets client: %v", err)
	}
	sheetWriter := sheetsync.NewWriter(grid)

	acceptanceNotifier := notifier.NewNotifier(notificationProducer)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	proposalConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicProposal, cfg.Kafka.ConsumerGroup)
	syncWorker := worker.NewSheetSyncWorker(proposalConsumer, sheetWriter, db, acceptanceNotifier, eventPublisher)
	go func() {
		if err := syncWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Sheet sync worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(db, applier, acceptance, reclassifier, sheetWriter)
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
	syncWorker.Stop()

	log.Println("Server exited")
}
