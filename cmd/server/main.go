package main

import (
	"os"

	"github.com/spf13/cobra"

	"askme/internal/config"
	"askme/internal/logging"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:           "askme",
	Short:         "Question and answer API server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file to load before reading the environment")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log, _ := logging.New("info", "text", nil)
		log.WithError(err).Error("askme exited")
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(envFile)
}
