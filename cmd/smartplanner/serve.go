package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"smart-planner/internal/bot"
	"smart-planner/internal/config"
	"smart-planner/internal/llm"
	"smart-planner/internal/repository"
	"smart-planner/internal/server"
	"smart-planner/internal/service"
	"smart-planner/internal/session"
)

var (
	serveBot bool
	serveAPI bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot, the HTTP API and the scheduled jobs",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveBot, "bot", true, "run the Telegram bot")
	serveCmd.Flags().BoolVar(&serveAPI, "api", true, "run the HTTP API")
}

func runServe(cmd *cobra.Command, _ []string) error {
	if !serveBot && !serveAPI {
		return errors.New("nothing to run: both --bot and --api are disabled")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.Options{ConfigFile: cfgFile, EnableBot: serveBot})
	if err != nil {
		return err
	}
	setupLogger(cfg.LogLevel)

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("db handle: %w", err)
	}
	defer sqlDB.Close()

	taskRepo := repository.NewTaskRepository(db)
	userRepo := repository.NewUserRepository(db)

	completer := newCompleter(ctx, cfg.LLM)

	tasks := service.NewTaskService(taskRepo, service.NewClassificationService(completer))
	categories := service.NewCategoryService(repository.NewCategoryRepository(db))
	schedule := service.NewScheduleService(completer)
	breakdown := service.NewBreakdownService(completer)
	suggestions := service.NewSuggestionService(completer)
	applier := service.NewApplier(tasks)

	schedulePacing := service.Pacing{Pace: cfg.Apply.SchedulePace, Settle: cfg.Apply.ScheduleSettle}
	breakdownPacing := service.Pacing{Pace: cfg.Apply.BreakdownPace, Settle: cfg.Apply.BreakdownSettle}

	group, ctx := errgroup.WithContext(ctx)

	if serveAPI {
		srv := server.New(server.Deps{
			Tasks:       tasks,
			Categories:  categories,
			Schedule:    schedule,
			Breakdown:   breakdown,
			Suggestions: suggestions,
			Applier:     applier,
		}, server.Options{
			Addr:            cfg.HTTPAddr,
			AllowedOrigins:  cfg.AllowedOrigins,
			SchedulePacing:  schedulePacing,
			BreakdownPacing: breakdownPacing,
		})
		group.Go(func() error { return srv.Start(ctx) })
	}

	if serveBot {
		telegram, err := bot.New(cfg.TelegramToken, bot.Deps{
			Users:       userRepo,
			Tasks:       tasks,
			Categories:  categories,
			Reminders:   service.NewReminderService(taskRepo),
			Schedule:    schedule,
			Breakdown:   breakdown,
			Suggestions: suggestions,
			Applier:     applier,
			Sessions:    session.NewManager(),
		}, bot.Options{
			SchedulePacing:  schedulePacing,
			BreakdownPacing: breakdownPacing,
			Debounce:        cfg.Debounce,
		})
		if err != nil {
			return fmt.Errorf("bot: %w", err)
		}

		scheduler := service.NewSchedulerService(time.Local)
		if _, err := scheduler.ScheduleInterval("reports", cfg.ReportInterval, telegram.SendDailyReports); err != nil {
			return fmt.Errorf("schedule reports: %w", err)
		}
		if _, err := scheduler.ScheduleDaily("suggestions", cfg.SuggestDailyAt, telegram.SendDailySuggestions); err != nil {
			return fmt.Errorf("schedule suggestions: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()

		group.Go(func() error { return telegram.Start(ctx) })
	}

	slog.Info("smart planner started", "bot", serveBot, "api", serveAPI, "llm", cfg.LLM.Provider)

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}

// newCompleter builds the model client. Without one, every AI call reports a
// transport error and the services fall back to their offline answers.
func newCompleter(ctx context.Context, cfg config.LLMConfig) llm.Completer {
	completer, err := llm.New(ctx, llm.Config{
		Provider: llm.Provider(cfg.Provider),
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		slog.Warn("llm unavailable, AI features will use fallbacks", "provider", cfg.Provider, "error", err)
		return llm.CompleterFunc(func(context.Context, string) (string, error) {
			return "", fmt.Errorf("%w: %v", llm.ErrTransport, err)
		})
	}
	return completer
}

func setupLogger(level slog.Level) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
