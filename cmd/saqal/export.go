package main

import (
	"context"
	"fmt"
	"os"

	"github.com/faisalx96/saqal/internal/adapters/id"
	"github.com/faisalx96/saqal/internal/adapters/postgres"
	"github.com/faisalx96/saqal/internal/application/services"
	"github.com/spf13/cobra"
)

// exportCmd exports a session as Markdown or JSON
func exportCmd() *cobra.Command {
	var (
		format    string
		versionID string
		outFile   string
	)

	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export a session",
		Long: `Export a prompt version as Markdown, or the whole session graph as
JSON. Markdown exports the current version unless --version is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			sessionID := args[0]

			pool, err := initDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			sessionRepo := postgres.NewSessionRepository(pool)
			inputRepo := postgres.NewInputRepository(pool)
			versionRepo := postgres.NewPromptVersionRepository(pool)
			resultRepo := postgres.NewRunResultRepository(pool)
			frontierRepo := postgres.NewFrontierRepository(pool)
			idGen := id.New()
			txManager := postgres.NewTransactionManager(pool)

			lineageService := services.NewLineageService(versionRepo, frontierRepo, idGen, txManager)
			exportService := services.NewExportService(sessionRepo, inputRepo, versionRepo, resultRepo, lineageService)

			var data []byte
			switch format {
			case "markdown", "md":
				markdown, err := exportService.ExportMarkdown(ctx, sessionID, versionID)
				if err != nil {
					return fmt.Errorf("failed to export session: %w", err)
				}
				data = []byte(markdown)
			case "json":
				data, err = exportService.ExportJSON(ctx, sessionID)
				if err != nil {
					return fmt.Errorf("failed to export session: %w", err)
				}
			default:
				return fmt.Errorf("unknown export format: %s (use markdown or json)", format)
			}

			if outFile == "" {
				fmt.Print(string(data))
				return nil
			}

			if err := os.WriteFile(outFile, data, 0o644); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			fmt.Printf("Exported session %s to %s\n", sessionID, outFile)

			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "Export format (markdown or json)")
	cmd.Flags().StringVar(&versionID, "version", "", "Version to export (markdown only, defaults to current)")
	cmd.Flags().StringVarP(&outFile, "out", "O", "", "Write to a file instead of stdout")

	return cmd
}
