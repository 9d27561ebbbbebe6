package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "echoendpoint",
	Short: "Webhook inspection relay",
	Long: `echoendpoint exposes an unguessable capture URL per endpoint,
records every request sent to it, streams live notifications to
observers, and answers with an operator-configurable response.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Missing .env is fine; environment wins over file anyway.
		godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.AddCommand(serveCmd)
}
