package main

import (
	"fmt"
	"os"

	"github.com/faisalx96/saqal/internal/config"
	"github.com/faisalx96/saqal/internal/llm"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "saqal",
		Short: "Saqal - iterative prompt refinement",
		Long: `Saqal refines a prompt against a fixed set of test inputs.
Each round runs the current prompt over the inputs, collects your
judgments, and proposes a revised prompt from the feedback.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			llmClient = llm.NewClient(
				cfg.LLM.URL,
				cfg.LLM.APIKey,
				cfg.LLM.Model,
			)

			return nil
		},
	}

	rootCmd.AddCommand(
		newCmd(),
		listCmd(),
		showCmd(),
		deleteCmd(),
		inputCmd(),
		exportCmd(),
		configCmd(),
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configCmd shows current configuration
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			reflection := cfg.ReflectionLLM()

			fmt.Println("Current configuration:")
			fmt.Println()

			fmt.Println("LLM:")
			fmt.Printf("  URL:         %s\n", cfg.LLM.URL)
			fmt.Printf("  Model:       %s\n", cfg.LLM.Model)
			fmt.Printf("  Max Tokens:  %d\n", cfg.LLM.MaxTokens)
			fmt.Printf("  Temperature: %.2f\n", cfg.LLM.Temperature)
			fmt.Printf("  API Key:     %s\n", maskSecret(cfg.LLM.APIKey))
			fmt.Println()

			fmt.Println("Reflection LLM:")
			fmt.Printf("  URL:         %s\n", reflection.URL)
			fmt.Printf("  Model:       %s\n", reflection.Model)
			fmt.Printf("  Max Tokens:  %d\n", reflection.MaxTokens)
			fmt.Printf("  Temperature: %.2f\n", reflection.Temperature)
			fmt.Printf("  API Key:     %s\n", maskSecret(reflection.APIKey))
			fmt.Println()

			fmt.Println("Database:")
			fmt.Printf("  PostgreSQL: %s\n", maskSecret(cfg.Database.PostgresURL))
			fmt.Println()

			fmt.Println("Server:")
			fmt.Printf("  Host: %s\n", cfg.Server.Host)
			fmt.Printf("  Port: %d\n", cfg.Server.Port)
			fmt.Println()

			fmt.Println("Batch:")
			fmt.Printf("  Workers:    %d\n", cfg.Batch.Workers)
			fmt.Printf("  Batch Size: %d\n", cfg.Batch.DefaultBatchSize)
			fmt.Println()

			fmt.Println("Environment variables:")
			fmt.Println("  SAQAL_LLM_URL, SAQAL_LLM_API_KEY, SAQAL_LLM_MODEL")
			fmt.Println("  SAQAL_REFLECTION_URL, SAQAL_REFLECTION_API_KEY, SAQAL_REFLECTION_MODEL")
			fmt.Println("  SAQAL_POSTGRES_URL")
			fmt.Println("  SAQAL_SERVER_HOST, SAQAL_SERVER_PORT, SAQAL_CORS_ORIGINS")
			fmt.Println("  SAQAL_BATCH_WORKERS, SAQAL_DEFAULT_BATCH_SIZE")

			return nil
		},
	}
}

// versionCmd shows version information
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Saqal %s\n", version)
			fmt.Printf("  Commit:     %s\n", commit)
			fmt.Printf("  Build Date: %s\n", buildDate)
		},
	}
}
