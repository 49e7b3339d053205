package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taskpilot/internal/config"
	"taskpilot/internal/logging"
	"taskpilot/internal/store"
)

var (
	cfgPath   string
	projectID string
	verbose   bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "taskpilot",
	Short: "taskpilot - AI project management assistant",
	Long: `taskpilot is a project management assistant driven by an LLM agent.

It answers questions from ingested project documents, proposes tasks and
multi-step plans for your approval, and manages the resulting task board.
Nothing is created without an explicit confirmation step.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := logging.Initialize(cfg.Logging.Debug || verbose); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "taskpilot.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVarP(&projectID, "project", "p", "default", "project id")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(historyCmd)
}

func openStore() (*store.Store, error) {
	return store.Open(cfg.Storage.DatabasePath)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
