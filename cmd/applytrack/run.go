package main

import (
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/noah-isme/applytrack-api/internal/models"
)

var (
	runUserID string
	runAll    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run automation once for one user or for every user",
	Long: `Evaluates the stored rules against current applications and persists the resulting status changes.

Use --user for a single tenant or --all for a full sweep. The run is recorded in the run history with trigger "cli".`,
	RunE: runAutomation,
}

func init() {
	runCmd.Flags().StringVarP(&runUserID, "user", "u", "", "User ID to run automation for")
	runCmd.Flags().BoolVar(&runAll, "all", false, "Run automation for every user with active applications")
	runCmd.MarkFlagsMutuallyExclusive("user", "all")
	rootCmd.AddCommand(runCmd)
}

func runAutomation(cmd *cobra.Command, _ []string) error {
	if runUserID == "" && !runAll {
		return errors.New("either --user or --all is required")
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	if runAll {
		result, err := a.scheduler.RunAll(ctx, models.RunTriggerCLI)
		if result != nil {
			if encErr := enc.Encode(result); encErr != nil {
				return encErr
			}
		}
		return err
	}

	result, err := a.automation.RunForUser(ctx, runUserID, models.RunTriggerCLI)
	if err != nil {
		return err
	}
	return enc.Encode(result)
}
