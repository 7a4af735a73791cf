package main

import (
	"context"
	"fmt"

	"github.com/faisalx96/saqal/internal/adapters/id"
	"github.com/faisalx96/saqal/internal/adapters/postgres"
	"github.com/faisalx96/saqal/internal/application/services"
	"github.com/faisalx96/saqal/internal/config"
	"github.com/faisalx96/saqal/internal/llm"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Version information (set via ldflags)
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// Shared global variables
var (
	cfg       *config.Config
	llmClient *llm.Client
)

// initDB initializes a database connection pool for CLI commands
func initDB(ctx context.Context) (*pgxpool.Pool, error) {
	if cfg.Database.PostgresURL == "" {
		return nil, fmt.Errorf("PostgreSQL connection required. Set SAQAL_POSTGRES_URL")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Force UTC timezone to prevent timezone-related issues with TIMESTAMP columns
	poolConfig.ConnConfig.RuntimeParams["timezone"] = "UTC"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return pool, nil
}

// newSessionService builds the session service and its lineage dependency
// on top of an existing pool. Used by the CLI commands that only touch
// sessions and inputs.
func newSessionService(pool *pgxpool.Pool) *services.SessionService {
	sessionRepo := postgres.NewSessionRepository(pool)
	inputRepo := postgres.NewInputRepository(pool)
	versionRepo := postgres.NewPromptVersionRepository(pool)
	resultRepo := postgres.NewRunResultRepository(pool)
	frontierRepo := postgres.NewFrontierRepository(pool)
	idGen := id.New()
	txManager := postgres.NewTransactionManager(pool)

	lineageService := services.NewLineageService(versionRepo, frontierRepo, idGen, txManager)
	return services.NewSessionService(sessionRepo, inputRepo, versionRepo, resultRepo, frontierRepo, lineageService, idGen, txManager)
}

// maskSecret masks a secret string for display
func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "(set)"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
