package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "smartplanner",
	Short: "Task planner with a Telegram bot, an HTTP API and AI scheduling",
	Long: `smartplanner keeps categorized tasks, breaks large ones into steps,
drafts multi-day schedules and suggests new tasks with a language model.`,
	SilenceUsage: true,
}

var cfgFile string

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file (environment PLANNER_* overrides it)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(planCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
