package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chative",
	Short: "Multi-turn dialogue manager for subscriber support",
	Long: `chative answers subscriber questions about invoices, incidents and account data.
It tracks slots across turns, routes each utterance to an agent policy and
answers with the formatted result of the tool provider.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.AddCommand(serveCmd, chatCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
