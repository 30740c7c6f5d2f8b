package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// @title ApplyTrack Automation API
// @version 1.0.0
// @description Rule engine that advances job applications through the hiring pipeline
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

var rootCmd = &cobra.Command{
	Use:           "applytrack",
	Short:         "ApplyTrack automation service",
	Long:          "Serves the automation API, runs the periodic rule sweep and exposes one-off maintenance commands.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
