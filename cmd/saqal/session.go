package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/faisalx96/saqal/internal/adapters/id"
	"github.com/faisalx96/saqal/internal/adapters/postgres"
	"github.com/faisalx96/saqal/internal/application/services"
	"github.com/spf13/cobra"
)

// newCmd creates a new refinement session
func newCmd() *cobra.Command {
	var (
		task        string
		output      string
		provider    string
		model       string
		temperature float64
		batchSize   int
		prompt      string
		promptFile  string
	)

	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Create a new refinement session",
		Long: `Create a new session with an initial prompt. The initial prompt
becomes version 1 and stays current until a mutation supersedes it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if promptFile != "" {
				data, err := os.ReadFile(promptFile)
				if err != nil {
					return fmt.Errorf("failed to read prompt file: %w", err)
				}
				prompt = string(data)
			}

			pool, err := initDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			sessionService := newSessionService(pool)

			if model == "" {
				model = cfg.LLM.Model
			}
			if batchSize <= 0 {
				batchSize = cfg.Batch.DefaultBatchSize
			}

			session, version, err := sessionService.CreateSession(ctx, services.CreateSessionParams{
				Name:              args[0],
				TaskDescription:   task,
				OutputDescription: output,
				ModelProvider:     provider,
				ModelName:         model,
				ModelTemperature:  temperature,
				BatchSize:         batchSize,
				InitialPrompt:     prompt,
			})
			if err != nil {
				return fmt.Errorf("failed to create session: %w", err)
			}

			fmt.Printf("Created session: %s\n", session.ID)
			fmt.Printf("Name:  %s\n", session.Name)
			fmt.Printf("Model: %s\n", session.ModelName)
			fmt.Printf("Initial version: %s (v%d)\n", version.ID, version.VersionNumber)

			return nil
		},
	}

	cmd.Flags().StringVarP(&task, "task", "t", "", "What the prompt is supposed to accomplish (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Description of the desired output shape")
	cmd.Flags().StringVar(&provider, "provider", "openai", "Model provider")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model to run the prompt against (defaults to the configured LLM model)")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.7, "Sampling temperature for prompt runs")
	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", 0, "Inputs per review round (defaults to the configured batch size)")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Initial prompt text")
	cmd.Flags().StringVar(&promptFile, "prompt-file", "", "Read the initial prompt from a file")

	return cmd
}

// listCmd lists sessions
func listCmd() *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Long:  `List sessions with their ID, name, stage, and creation date.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := initDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			sessionService := newSessionService(pool)

			sessions, err := sessionService.ListSessions(ctx, status, limit, 0)
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}

			if len(sessions) == 0 {
				fmt.Println("No sessions found.")
				return nil
			}

			fmt.Printf("%-30s %-30s %-10s %-10s %s\n", "ID", "Name", "Status", "Stage", "Created")
			fmt.Println(strings.Repeat("-", 100))

			for _, session := range sessions {
				createdAt := session.CreatedAt.Format("2006-01-02 15:04")
				fmt.Printf("%-30s %-30s %-10s %-10s %s\n", session.ID, session.Name, session.Status, session.Stage, createdAt)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by status (active, completed, archived)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 50, "Maximum number of sessions to list")

	return cmd
}

// showCmd shows a session with its version history
func showCmd() *cobra.Command {
	var showPrompts bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session and its version history",
		Args:  cobra.ExactArgs(1),
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
			frontierRepo := postgres.NewFrontierRepository(pool)
			idGen := id.New()
			txManager := postgres.NewTransactionManager(pool)
			lineageService := services.NewLineageService(versionRepo, frontierRepo, idGen, txManager)

			session, err := sessionRepo.GetByID(ctx, sessionID)
			if err != nil {
				return fmt.Errorf("session not found: %s", sessionID)
			}

			inputs, err := inputRepo.GetBySession(ctx, sessionID)
			if err != nil {
				return fmt.Errorf("failed to get inputs: %w", err)
			}

			history, err := lineageService.History(ctx, sessionID)
			if err != nil {
				return fmt.Errorf("failed to get version history: %w", err)
			}

			current, err := lineageService.Current(ctx, sessionID)
			if err != nil {
				return fmt.Errorf("failed to resolve current version: %w", err)
			}

			fmt.Printf("Session: %s\n", session.Name)
			fmt.Printf("ID:      %s\n", session.ID)
			fmt.Printf("Status:  %s (%s)\n", session.Status, session.Stage)
			fmt.Printf("Model:   %s (temperature %.2f)\n", session.ModelName, session.ModelTemperature)
			fmt.Printf("Task:    %s\n", session.TaskDescription)
			fmt.Printf("Inputs:  %d\n", len(inputs))
			fmt.Println()

			fmt.Printf("Versions (%d, current v%d):\n", len(history), current.VersionNumber)
			for _, version := range history {
				marker := " "
				if version.ID == current.ID {
					marker = "*"
				}
				fmt.Printf("%s v%-3d %-30s %-9s %s\n", marker, version.VersionNumber, version.ID, version.Status, version.CreatedAt.Format("2006-01-02 15:04"))
				if version.MutationExplanation != "" {
					fmt.Printf("        %s\n", version.MutationExplanation)
				}
				if showPrompts {
					fmt.Println()
					fmt.Println(indent(version.PromptText, "        "))
					fmt.Println()
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&showPrompts, "prompts", "p", false, "Include the full prompt text of every version")

	return cmd
}

// deleteCmd deletes a session
func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			sessionID := args[0]

			pool, err := initDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			sessionService := newSessionService(pool)

			if err := sessionService.DeleteSession(ctx, sessionID); err != nil {
				return fmt.Errorf("failed to delete session: %w", err)
			}

			fmt.Printf("Deleted session: %s\n", sessionID)
			return nil
		},
	}
}

// inputCmd manages the test inputs of a session
func inputCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "input",
		Short: "Manage the test inputs of a session",
	}

	cmd.AddCommand(inputAddCmd(), inputListCmd(), inputRemoveCmd())

	return cmd
}

func inputAddCmd() *cobra.Command {
	var groundTruth string
	var fromFile string

	cmd := &cobra.Command{
		Use:   "add <session-id> [content]",
		Short: "Add a test input to a session",
		Long: `Add a test input. Pass the content as an argument, or use --file to
add one input per non-empty line of a file.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			sessionID := args[0]

			pool, err := initDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			sessionService := newSessionService(pool)

			if fromFile != "" {
				data, err := os.ReadFile(fromFile)
				if err != nil {
					return fmt.Errorf("failed to read input file: %w", err)
				}
				var contents []string
				for _, line := range strings.Split(string(data), "\n") {
					if strings.TrimSpace(line) != "" {
						contents = append(contents, line)
					}
				}
				inputs, err := sessionService.AddInputs(ctx, sessionID, contents)
				if err != nil {
					return fmt.Errorf("failed to add inputs: %w", err)
				}
				fmt.Printf("Added %d inputs to session %s\n", len(inputs), sessionID)
				return nil
			}

			if len(args) < 2 {
				return fmt.Errorf("input content required (or use --file)")
			}

			input, err := sessionService.AddInput(ctx, sessionID, args[1], groundTruth, "")
			if err != nil {
				return fmt.Errorf("failed to add input: %w", err)
			}

			fmt.Printf("Added input: %s\n", input.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&groundTruth, "ground-truth", "g", "", "Known-good output for this input")
	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "Add one input per non-empty line of this file")

	return cmd
}

func inputListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <session-id>",
		Short: "List the test inputs of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := initDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			sessionService := newSessionService(pool)

			inputs, err := sessionService.GetInputs(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to list inputs: %w", err)
			}

			if len(inputs) == 0 {
				fmt.Println("No inputs found.")
				return nil
			}

			for _, input := range inputs {
				fmt.Printf("%-30s %s\n", input.ID, truncate(input.Content, 70))
			}

			return nil
		},
	}
}

func inputRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <input-id>",
		Short: "Remove a test input (setup stage only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := initDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			sessionService := newSessionService(pool)

			if err := sessionService.DeleteInput(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to remove input: %w", err)
			}

			fmt.Printf("Removed input: %s\n", args[0])
			return nil
		},
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
