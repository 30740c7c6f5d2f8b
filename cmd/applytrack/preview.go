package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"
)

var previewUserID string

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show how many applications each rule would match, without changing anything",
	RunE:  runPreview,
}

func init() {
	previewCmd.Flags().StringVarP(&previewUserID, "user", "u", "", "User ID to preview")
	rootCmd.AddCommand(previewCmd)
}

func runPreview(cmd *cobra.Command, _ []string) error {
	if previewUserID == "" {
		return errors.New("--user is required")
	}
	a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	preview, err := a.automation.Preview(cmd.Context(), previewUserID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(preview)
}
