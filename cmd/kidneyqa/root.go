package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ckd-chatbot/backend/pkg/config"
	"github.com/ckd-chatbot/backend/pkg/logger"
)

var (
	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "kidneyqa",
	Short: "Kidney health question answering service",
	Long: `kidneyqa answers kidney health questions from a Neo4j knowledge
graph, composing a detailed answer and a short outline with an LLM.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command and cancels it on SIGINT or SIGTERM.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(loaded.Logging.Level, loaded.Logging.Format, loaded.Logging.OutputPath); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg = loaded
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config.yaml")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
}
