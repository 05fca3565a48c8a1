// docproc server - ingests documents, runs the OCR+LLM extraction workflow,
// and coordinates the human-review queue.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/docproc/pkg/api"
	"github.com/codeready-toolchain/docproc/pkg/config"
	"github.com/codeready-toolchain/docproc/pkg/database"
	"github.com/codeready-toolchain/docproc/pkg/extraction"
	"github.com/codeready-toolchain/docproc/pkg/llm"
	"github.com/codeready-toolchain/docproc/pkg/monitoring"
	"github.com/codeready-toolchain/docproc/pkg/ocr"
	"github.com/codeready-toolchain/docproc/pkg/output"
	"github.com/codeready-toolchain/docproc/pkg/queue"
	"github.com/codeready-toolchain/docproc/pkg/services"
	"github.com/codeready-toolchain/docproc/pkg/store"
	"github.com/codeready-toolchain/docproc/pkg/version"
	"github.com/codeready-toolchain/docproc/pkg/workflow"
	"github.com/codeready-toolchain/docproc/pkg/workflow/steps"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./configs"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	gin.SetMode(getEnv("GIN_MODE", "release"))

	slog.Info("Starting docproc", "version", version.Full(), "http_port", httpPort, "config_dir", *configDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Configuration (CONFIG_INVALID is fatal at startup)
	cfg, err := config.Initialize(*configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}

	// Database
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbClient.Close()
	slog.Info("Connected to PostgreSQL, schema up to date")

	stores := store.New(dbClient.Pool())

	// Providers
	textExtractor, err := ocr.NewTextractExtractor(ctx, cfg.OCR)
	if err != nil {
		log.Fatalf("Failed to initialize OCR provider: %v", err)
	}

	var structured extraction.StructuredExtractor
	if apiKey := os.Getenv(cfg.LLM.APIKeyEnv); apiKey != "" {
		structured, err = llm.NewGeminiExtractor(ctx, apiKey, cfg.LLM.Model)
		if err != nil {
			log.Fatalf("Failed to initialize LLM provider: %v", err)
		}
		slog.Info("LLM extractor ready", "model", cfg.LLM.Model)
	} else {
		slog.Warn("LLM API key not set, all documents will escalate to review", "env", cfg.LLM.APIKeyEnv)
		structured = llm.NullExtractor{}
	}

	// Workflow
	registry := workflow.NewRegistry()
	steps.RegisterAll(registry, steps.Deps{
		Text:       textExtractor,
		Structured: structured,
		Writer:     output.NewFileWriter(cfg.Output.Root),
		Validator:  extraction.NewValidator(cfg.Validation),
		Stores:     stores,
		Review:     cfg.Review,
	})
	runner, err := workflow.NewRunner(cfg.Workflow.Specs(), cfg.Workflow.StepOptions(), registry)
	if err != nil {
		log.Fatalf("Failed to build workflow runner: %v", err)
	}

	// Worker pool
	hostname, _ := os.Hostname()
	podID := fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])

	if err := queue.CleanupStartupOrphans(ctx, stores, cfg.Queue, podID); err != nil {
		slog.Error("Startup orphan cleanup failed", "error", err)
	}

	executor := queue.NewWorkflowExecutor(stores, runner)
	pool := queue.NewWorkerPool(podID, stores, cfg.Queue, executor)
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("Failed to start worker pool: %v", err)
	}

	// SLA evaluator
	evaluator := monitoring.NewEvaluator(cfg.SLA, monitoring.NewComputer(stores.Jobs, stores.Reviews))
	evaluator.Start(ctx)

	// Services + HTTP
	intakeService := services.NewIntakeService(stores, cfg.Queue.MaxTaskAttempts)
	jobService := services.NewJobService(stores)
	reviewService := services.NewReviewService(stores)

	server := api.NewServer(dbClient, intakeService, jobService, reviewService, pool)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", ":"+httpPort)
		errCh <- server.Start(":" + httpPort)
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("HTTP server stopped", "error", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	evaluator.Stop()
	pool.Stop()
	slog.Info("Shutdown complete")
}
