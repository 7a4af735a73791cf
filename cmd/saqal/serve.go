package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/faisalx96/saqal/internal/adapters/id"
	"github.com/faisalx96/saqal/internal/adapters/postgres"
	"github.com/faisalx96/saqal/internal/adapters/tracing"
	"github.com/faisalx96/saqal/internal/application/services"
	"github.com/faisalx96/saqal/internal/llm"
	"github.com/faisalx96/saqal/internal/refine"
	"github.com/faisalx96/saqal/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd starts the HTTP API server
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the Saqal HTTP API server.

The server provides REST endpoints for session management, batch
execution, feedback, prompt mutation, and export.

Required configuration:
  - PostgreSQL database (SAQAL_POSTGRES_URL)
  - LLM endpoint (SAQAL_LLM_URL)

Optional:
  - Reflection model (SAQAL_REFLECTION_URL, SAQAL_REFLECTION_MODEL)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

// runServer initializes and starts the HTTP API server
func runServer(ctx context.Context) error {
	reflectionCfg := cfg.ReflectionLLM()

	log.Println("Starting Saqal API server...")
	log.Printf("  HTTP:       http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("  LLM:        %s (%s)", cfg.LLM.URL, cfg.LLM.Model)
	log.Printf("  Reflection: %s (%s)", reflectionCfg.URL, reflectionCfg.Model)
	log.Println()

	// Initialize OpenTelemetry tracing
	log.Println("Initializing OpenTelemetry tracing...")
	shutdown, err := tracing.InitTracer("saqal-api")
	if err != nil {
		log.Printf("Warning: Failed to initialize tracing: %v", err)
	} else {
		defer func() {
			if err := shutdown(ctx); err != nil {
				log.Printf("Error shutting down tracer: %v", err)
			}
		}()
		log.Println("OpenTelemetry tracing initialized")
	}

	// Validate required configuration
	if cfg.Database.PostgresURL == "" {
		return fmt.Errorf("server mode requires PostgreSQL. Set SAQAL_POSTGRES_URL")
	}

	// Initialize database connection pool
	log.Println("Connecting to PostgreSQL...")
	pool, err := initDB(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Println("Database connection established")

	// Initialize repositories
	sessionRepo := postgres.NewSessionRepository(pool)
	inputRepo := postgres.NewInputRepository(pool)
	versionRepo := postgres.NewPromptVersionRepository(pool)
	resultRepo := postgres.NewRunResultRepository(pool)
	frontierRepo := postgres.NewFrontierRepository(pool)

	// Initialize ID generator
	idGen := id.New()

	// Initialize transaction manager
	txManager := postgres.NewTransactionManager(pool)

	// Initialize LLM services. The reflection model proposes mutations and
	// may differ from the model under refinement.
	llmService := llm.NewBreakerService(llm.NewService(llmClient))
	reflectionClient := llm.NewClient(reflectionCfg.URL, reflectionCfg.APIKey, reflectionCfg.Model)
	reflectionService := llm.NewService(reflectionClient)
	log.Println("LLM services initialized")

	mutator := refine.NewMutator(reflectionService, reflectionCfg.Temperature, reflectionCfg.MaxTokens)

	// Initialize application services
	logger := slog.Default()
	lineageService := services.NewLineageService(versionRepo, frontierRepo, idGen, txManager)
	sessionService := services.NewSessionService(sessionRepo, inputRepo, versionRepo, resultRepo, frontierRepo, lineageService, idGen, txManager)
	runService := services.NewRunService(sessionRepo, inputRepo, versionRepo, resultRepo, llmService, idGen, logger)
	runService.SetWorkers(cfg.Batch.Workers)
	workflowService := services.NewWorkflowService(sessionRepo, inputRepo, resultRepo, lineageService, runService, mutator, logger)
	exportService := services.NewExportService(sessionRepo, inputRepo, versionRepo, resultRepo, lineageService)
	log.Println("Application services initialized")

	// Create HTTP server
	srv := server.NewServer(cfg, pool, sessionService, workflowService, runService, lineageService, exportService)

	// Set up graceful shutdown
	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		log.Printf("HTTP server listening on %s:%d", cfg.Server.Host, cfg.Server.Port)
		serverErrors <- srv.Start()
	}()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Wait for interrupt signal or server error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
		log.Println("Shutting down gracefully...")

		shutdownCtx, shutdownCancel := context.WithTimeout(serverCtx, 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		log.Println("Server stopped")
		return nil
	}
}
