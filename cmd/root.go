// Package cmd implements the obrafin server and maintenance commands.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/obrafin/obrafin/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:   "obrafin",
	Short: "Construction budget and receipt reconciliation service",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return setupLogging()
	},
	RunE: runServe,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "./config/application.yaml", "Path to the YAML configuration file")
}

func setupLogging() error {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		log.SetLevel(log.InfoLevel)
		return nil
	}
	logrusLevel, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(logrusLevel)
	return nil
}

func loadConfig() (config.Application, error) {
	return config.Load(flagConfig)
}
