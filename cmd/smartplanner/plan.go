package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"smart-planner/internal/config"
	"smart-planner/internal/model"
	"smart-planner/internal/service"
)

var planDays int

var planCmd = &cobra.Command{
	Use:   "plan <description>",
	Short: "Draft a schedule and print it without saving anything",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{ConfigFile: cfgFile})
		if err != nil {
			return err
		}
		setupLogger(cfg.LogLevel)

		ctx := cmd.Context()
		schedule := service.NewScheduleService(newCompleter(ctx, cfg.LLM))
		items, err := schedule.Generate(ctx, strings.Join(args, " "), planDays)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		start := model.Day(time.Now())
		day := 0
		for _, item := range items {
			if item.Day != day {
				day = item.Day
				fmt.Fprintf(out, "\nDay %d (%s)\n", day, service.ScheduleDate(start, day).Format("Mon, 02 Jan"))
			}
			if item.Time != "" {
				fmt.Fprintf(out, "  %s  %s\n", item.Time, item.Title)
			} else {
				fmt.Fprintf(out, "         %s\n", item.Title)
			}
		}
		return nil
	},
}

func init() {
	planCmd.Flags().IntVarP(&planDays, "days", "d", 3, "number of days to plan (1-14)")
}
