package main

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	exportUserID string
	exportRunID  string
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render an automation run log to stdout",
	Long: `Renders the items of one automation run as CSV or PDF and writes it to stdout,
for example: applytrack export --user u1 --run r1 --format pdf > run.pdf`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportUserID, "user", "u", "", "Owner of the run")
	exportCmd.Flags().StringVar(&exportRunID, "run", "", "Run ID to export")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "Export format: csv or pdf")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	if exportUserID == "" || exportRunID == "" {
		return errors.New("--user and --run are required")
	}
	a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	file, err := a.automation.ExportRun(cmd.Context(), exportUserID, exportRunID, exportFormat)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(file.Body)
	return err
}
