package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/radiology-ai-assistant/internal/analytics"
	"github.com/radiology-ai-assistant/internal/api"
	"github.com/radiology-ai-assistant/internal/config"
	"github.com/radiology-ai-assistant/internal/feedback"
	"github.com/radiology-ai-assistant/internal/learning"
	"github.com/radiology-ai-assistant/internal/service"
	"github.com/radiology-ai-assistant/pkg/dataset"
	"github.com/radiology-ai-assistant/pkg/vision"
	"github.com/radiology-ai-assistant/pkg/vocab"
)

func main() {
	// Load .env if present; real environment variables take precedence
	_ = godotenv.Load()

	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := configManager.NewLogger()
	logger.Infof("Starting Radiology AI Assistant on %s:%d", cfg.Server.Host, cfg.Server.Port)

	terms := vocab.DefaultTerms()
	if cfg.Ontology.TermsPath != "" {
		terms, err = vocab.Load(cfg.Ontology.TermsPath)
		if err != nil {
			log.Fatalf("Failed to load ontology terms: %v", err)
		}
	}

	labels, err := dataset.NewSource(cfg.Dataset, logger)
	if err != nil {
		log.Fatalf("Failed to initialize label source: %v", err)
	}

	store, err := feedback.NewJSONStore(cfg.Storage, logger)
	if err != nil {
		log.Fatalf("Failed to initialize feedback store: %v", err)
	}

	visionClient := vision.NewClient(cfg.Vision, logger)
	if !visionClient.Configured() {
		logger.Warn("Vision model API key not configured, report generation will fail")
	}

	learningEngine := learning.NewEngine(store, cfg.Learning, logger)
	analyticsEngine := analytics.NewEngine(store, logger)

	mapper := service.NewMapper(terms, vocab.ChexpertLabelPool)
	evaluator := service.NewEvaluator(terms)
	reports := service.NewReportService(visionClient, labels, mapper, evaluator, store, learningEngine, logger)

	server := api.NewServer(*cfg, reports, analyticsEngine, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}

	logger.Info("Server stopped")
}
