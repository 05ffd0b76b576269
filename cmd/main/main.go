package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/antaracrm/messaging-pipeline/internal/config"
	"github.com/antaracrm/messaging-pipeline/internal/dlqworker"
	"github.com/antaracrm/messaging-pipeline/internal/ingestion"
	"github.com/antaracrm/messaging-pipeline/internal/ingestion/handler"
	"github.com/antaracrm/messaging-pipeline/internal/jetstream"
	"github.com/antaracrm/messaging-pipeline/internal/model"
	"github.com/antaracrm/messaging-pipeline/internal/observer"
	"github.com/antaracrm/messaging-pipeline/internal/storage"
	"github.com/antaracrm/messaging-pipeline/internal/transport"
	"github.com/antaracrm/messaging-pipeline/internal/usecase"
	"github.com/antaracrm/messaging-pipeline/internal/webhook"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
	"github.com/antaracrm/messaging-pipeline/pkg/utils"
)

func main() {
	// Set timezone to UTC
	time.Local = time.UTC

	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	observer.InitMetrics(cfg.Metrics.Enabled)

	logger.Log.Info("Starting CRM messaging pipeline",
		zap.String("environment", cfg.Environment),
		zap.String("organization_id", cfg.Organization.ID),
		zap.String("nats_url", cfg.NATS.URL),
	)

	postgresRepo, err := initPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize Postgres repository", zap.Error(err))
	}

	jsClient, err := initJetStreamClient(cfg.NATS.URL)
	if err != nil {
		logger.Log.Fatal("Failed to initialize JetStream client", zap.Error(err))
	}

	// Repository adapters
	contactRepo := storage.NewContactRepoAdapter(postgresRepo)
	conversationRepo := storage.NewConversationRepoAdapter(postgresRepo)
	messageRepo := storage.NewMessageRepoAdapter(postgresRepo)
	automationRepo := storage.NewAutomationRepoAdapter(postgresRepo)
	campaignRepo := storage.NewCampaignRepoAdapter(postgresRepo)
	segmentRepo := storage.NewSegmentRepoAdapter(postgresRepo)
	taskRepo := storage.NewTaskRepoAdapter(postgresRepo)
	forwardingRuleRepo := storage.NewForwardingRuleRepoAdapter(postgresRepo)
	deadLetterRepo := storage.NewDeadLetterRepoAdapter(postgresRepo)

	// Transport adapters
	chatSender := transport.NewWhatsAppClient(cfg.ChatProvider)
	emailClient := transport.NewEmailClient(cfg.EmailProvider)

	// Automation engine and worker pool
	automationEngine := usecase.NewAutomationEngine(
		automationRepo, contactRepo, messageRepo, taskRepo, chatSender, emailClient)
	automationWorker, err := usecase.NewAutomationWorker(cfg.WorkerPools.Automation, automationEngine, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to initialize automation worker pool", zap.Error(err))
	}

	service := usecase.NewPipelineService(
		contactRepo, conversationRepo, messageRepo, campaignRepo,
		segmentRepo, taskRepo, forwardingRuleRepo,
		chatSender, emailClient, emailClient,
		automationWorker,
		cfg.Organization.ID,
		cfg.Dispatch.SendInterval,
	)

	// Ingestion: router, handler, durable consumer
	router := ingestion.NewRouter()
	inboundHandler := handler.NewInboundHandler(service)
	router.Register(model.V1InboundMessage, inboundHandler.HandleEvent)
	router.Register(model.V1InboundStatus, inboundHandler.HandleEvent)

	consumer := ingestion.NewInboundConsumer(jsClient, router, cfg.NATS.Ingest, cfg.NATS.DLQSubject)
	if err := consumer.Setup(); err != nil {
		logger.Log.Fatal("Failed to set up ingestion consumer", zap.Error(err))
	}

	dlqWorker, err := dlqworker.NewWorker(cfg, logger.Log, jsClient, router, deadLetterRepo)
	if err != nil {
		logger.Log.Fatal("Failed to initialize DLQ worker", zap.Error(err))
	}

	sweeper := usecase.NewCampaignSweeper(service, cfg.Dispatch.SweepSchedule, logger.Log)
	if err := sweeper.Start(); err != nil {
		logger.Log.Fatal("Failed to start campaign sweeper", zap.Error(err))
	}

	httpServer := webhook.NewServer(cfg, jsClient, service, deadLetterRepo, logger.Log)

	if err := consumer.Start(); err != nil {
		logger.Log.Fatal("Failed to start ingestion consumer", zap.Error(err))
	}

	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()
	sigChan := make(chan os.Signal, 1)

	go func() {
		if err := dlqWorker.Start(mainCtx); err != nil {
			logger.Log.Error("DLQ worker failed, initiating shutdown", zap.Error(err))
			mainCancel()
			select {
			case sigChan <- syscall.SIGTERM:
			default:
			}
		}
	}()

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Log.Error("HTTP server failed, initiating shutdown", zap.Error(err))
			mainCancel()
			select {
			case sigChan <- syscall.SIGTERM:
			default:
			}
		}
	}()

	// Wait for termination signal
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))

	mainCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", 30*time.Second))

	var wg sync.WaitGroup
	wg.Add(6)

	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping HTTP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Error stopping HTTP server", zap.Error(err))
		}
	}, shutdownPanicHandler(&wg, "HTTP server"))

	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping ingestion consumer")
		consumer.Stop()
	}, shutdownPanicHandler(&wg, "ingestion consumer"))

	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping DLQ worker")
		dlqWorker.Stop()
	}, shutdownPanicHandler(&wg, "DLQ worker"))

	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping campaign sweeper")
		sweeper.Stop()
	}, shutdownPanicHandler(&wg, "campaign sweeper"))

	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping automation worker pool")
		automationWorker.Stop()
	}, shutdownPanicHandler(&wg, "automation worker pool"))

	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Closing PostgreSQL connection")
		if err := postgresRepo.Close(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Failed to close PostgreSQL connection", zap.Error(err))
		}
		logger.Log.Info("[shutdown] Closing JetStream connection")
		jsClient.Close()
	}, shutdownPanicHandler(&wg, "connections"))

	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Log.Info("[shutdown] All components stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Log.Warn("[shutdown] Graceful shutdown timed out, forcing exit")
	}

	logger.Log.Info("CRM messaging pipeline shutdown complete")
}

func shutdownPanicHandler(wg *sync.WaitGroup, component string) func(interface{}, []byte) {
	return func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping component",
			zap.String("component", component),
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	}
}

func initPostgresRepo(dsn string, autoMigrate bool) (*storage.PostgresRepo, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}
	repo, err := storage.NewPostgresRepo(dsn, autoMigrate)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres repository: %w", err)
	}
	logger.Log.Info("Initialized PostgreSQL repository")
	return repo, nil
}

func initJetStreamClient(url string) (*jetstream.Client, error) {
	client, err := jetstream.NewClient(url)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream client: %w", err)
	}
	return client, nil
}
